package memory

// termIterator walks the posting list of one query term.
type termIterator struct {
	postings []posting
	idx      int
	idf      float64
}

// doc returns the current document id, or max uint32 once exhausted.
func (it *termIterator) doc() uint32 {
	if it.idx >= len(it.postings) {
		return ^uint32(0)
	}
	return it.postings[it.idx].doc
}

// count returns the term frequency in the current document.
func (it *termIterator) count() uint32 {
	if it.idx >= len(it.postings) {
		return 0
	}
	return it.postings[it.idx].count
}

func (it *termIterator) next() {
	it.idx++
}

type candidate struct {
	doc   uint32
	score float64
}

// worse orders candidates by ascending score, then descending id.
func worse(a, c candidate) bool {
	if a.score != c.score {
		return a.score < c.score
	}
	return a.doc > c.doc
}

// candidateHeap is a bounded min-heap keeping the best candidates seen.
type candidateHeap []candidate

func (h *candidateHeap) push(c candidate) {
	*h = append(*h, c)
	h.up(len(*h) - 1)
}

func (h *candidateHeap) pop() candidate {
	old := *h
	n := len(old) - 1
	old[0], old[n] = old[n], old[0]
	h.down(0, n)
	c := old[n]
	*h = old[:n]
	return c
}

func (h candidateHeap) up(j int) {
	for {
		i := (j - 1) / 2
		if i == j || !worse(h[j], h[i]) {
			break
		}
		h[i], h[j] = h[j], h[i]
		j = i
	}
}

func (h candidateHeap) down(i0, n int) {
	i := i0
	for {
		j1 := 2*i + 1
		if j1 >= n || j1 < 0 {
			break
		}
		j := j1
		if j2 := j1 + 1; j2 < n && worse(h[j2], h[j1]) {
			j = j2
		}
		if !worse(h[j], h[i]) {
			break
		}
		h[i], h[j] = h[j], h[i]
		i = j
	}
}
