package memory

import (
	"strings"

	"github.com/hupe1980/facetgo/lexical"
)

// clause is one query term. An empty field means the analyzed text.
type clause struct {
	field string
	term  string
}

// parseQuery splits q at whitespace. A token of the form field:value matches
// the keyword value exactly; any other token is analyzed like document text.
func parseQuery(q string) []clause {
	var out []clause
	for _, tok := range strings.Fields(q) {
		if field, value, ok := strings.Cut(tok, ":"); ok && field != "" && value != "" {
			if field != lexical.TextField {
				out = append(out, clause{field: field, term: value})
				continue
			}
			tok = value
		}
		for _, t := range tokenize(tok) {
			out = append(out, clause{term: t})
		}
	}
	return out
}
