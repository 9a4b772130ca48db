package testutil

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync"
	"unicode"

	"github.com/hupe1980/facetgo/lexical"
)

// Vocabulary is the word list catalog texts are drawn from.
var Vocabulary = []string{
	"shirt", "sweater", "scarf", "jacket", "coat", "dress", "skirt", "jeans",
	"cotton", "wool", "linen", "silk", "denim", "leather", "fleece", "cashmere",
	"classic", "slim", "relaxed", "striped", "plain", "vintage", "light", "warm",
}

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Zipf returns a Zipfian-distributed value in [0, n).
// P(k) ∝ 1/k^s where s is the skew parameter; s=1.5 gives a heavy head.
func (r *RNG) Zipf(n int, s float64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.zipfLocked(n, s)
}

// zipfLocked is the internal implementation (caller must hold lock).
func (r *RNG) zipfLocked(n int, s float64) int {
	if n <= 1 {
		return 0
	}

	var hns float64
	for i := 1; i <= n; i++ {
		hns += 1.0 / math.Pow(float64(i), s)
	}

	u := r.rand.Float64() * hns
	var cumulative float64
	for k := 1; k <= n; k++ {
		cumulative += 1.0 / math.Pow(float64(k), s)
		if u <= cumulative {
			return k - 1
		}
	}
	return n - 1
}

// FieldSpec describes one generated keyword field.
type FieldSpec struct {
	Name string
	// Cardinality is the number of distinct values.
	Cardinality int
	// Skew is the Zipf exponent of the value distribution; 0 is uniform.
	Skew float64
	// MissingRate is the probability that a document lacks the field.
	MissingRate float64
	// MaxValues is the maximum number of values per document. Default: 1.
	MaxValues int
}

// Value returns the k-th value of the field.
func (f FieldSpec) Value(k int) string {
	return fmt.Sprintf("%s-%03d", f.Name, k)
}

// Catalog generates n documents with ids "doc-000000".. and texts of three
// to eight Vocabulary words.
func (r *RNG) Catalog(n int, fields ...FieldSpec) []lexical.Document {
	r.mu.Lock()
	defer r.mu.Unlock()

	docs := make([]lexical.Document, n)
	for i := range docs {
		words := make([]string, 3+r.rand.Intn(6))
		for j := range words {
			words[j] = Vocabulary[r.zipfLocked(len(Vocabulary), 1.0)]
		}

		doc := lexical.Document{
			ID:   fmt.Sprintf("doc-%06d", i),
			Text: strings.Join(words, " "),
		}

		for _, f := range fields {
			if r.rand.Float64() < f.MissingRate {
				continue
			}
			count := 1
			if f.MaxValues > 1 {
				count = 1 + r.rand.Intn(f.MaxValues)
			}

			var values []string
			for range count {
				var k int
				if f.Skew > 0 {
					k = r.zipfLocked(f.Cardinality, f.Skew)
				} else {
					k = r.rand.Intn(f.Cardinality)
				}
				v := f.Value(k)
				if !contains(values, v) {
					values = append(values, v)
				}
			}

			if doc.Fields == nil {
				doc.Fields = make(map[string][]string, len(fields))
			}
			doc.Fields[f.Name] = values
		}
		docs[i] = doc
	}
	return docs
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

// HasTerm reports whether the document text contains term as a whole word,
// case-insensitively.
func HasTerm(doc lexical.Document, term string) bool {
	tokens := strings.FieldsFunc(strings.ToLower(doc.Text), func(c rune) bool {
		return !unicode.IsLetter(c) && !unicode.IsNumber(c)
	})
	return contains(tokens, strings.ToLower(term))
}

// ExpectedCounts counts, by brute force, how many documents accepted by match
// carry each value of field.
func ExpectedCounts(docs []lexical.Document, field string, match func(lexical.Document) bool) map[string]uint64 {
	counts := make(map[string]uint64)
	for _, d := range docs {
		if !match(d) {
			continue
		}
		for _, v := range d.Fields[field] {
			counts[v]++
		}
	}
	return counts
}
