package search

import "strings"

// Predicate is a single metadata.<key>:<value> (or bare <key>:<value>)
// constraint extracted from a query string.
type Predicate struct {
	Key   string
	Value string
}

// ParsedQuery splits a raw query into metadata predicates and the
// remaining keyword terms.
type ParsedQuery struct {
	Predicates []Predicate
	Keywords   []string
}

// ParseQuery tokenizes on whitespace. A token containing a colon is a
// predicate of the form <key>:<value> or metadata.<key>:<value>; the
// "metadata." prefix is stripped before storing the key. Any other
// token is a keyword term.
func ParseQuery(query string) ParsedQuery {
	var parsed ParsedQuery
	for _, tok := range strings.Fields(query) {
		idx := strings.Index(tok, ":")
		if idx <= 0 || idx == len(tok)-1 {
			parsed.Keywords = append(parsed.Keywords, tok)
			continue
		}
		key := strings.TrimPrefix(tok[:idx], "metadata.")
		value := tok[idx+1:]
		parsed.Predicates = append(parsed.Predicates, Predicate{Key: key, Value: value})
	}
	return parsed
}

// IsEmpty reports whether the query carried no predicates and no
// keyword terms, so the engine must return an empty result set
// without scanning anything.
func (p ParsedQuery) IsEmpty() bool {
	return len(p.Predicates) == 0 && len(p.Keywords) == 0
}
