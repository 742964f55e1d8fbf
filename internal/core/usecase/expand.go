package usecase

import (
	"strings"
)

// QueryExpander produces query variants from a domain synonym table.
// Pure and allocation-light: it sits on the hot path of every query.
type QueryExpander struct {
	synonyms map[string][]string
}

func NewQueryExpander(synonyms map[string][]string) *QueryExpander {
	normalized := make(map[string][]string, len(synonyms))
	for term, subs := range synonyms {
		key := strings.ToLower(strings.TrimSpace(term))
		if key == "" || len(subs) == 0 {
			continue
		}
		kept := make([]string, 0, len(subs))
		for _, sub := range subs {
			sub = strings.TrimSpace(sub)
			if sub != "" {
				kept = append(kept, sub)
			}
		}
		if len(kept) > 0 {
			normalized[key] = kept
		}
	}
	return &QueryExpander{synonyms: normalized}
}

// Expand looks up each whitespace token of query case-insensitively in the
// synonym table and emits one variant per substitute with that token
// replaced, surrounding text untouched. Output is de-duplicated and capped
// at maxExpansions variants plus the original when includeOriginal is set.
func (e *QueryExpander) Expand(query string, maxExpansions int, includeOriginal bool) []string {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	if maxExpansions < 0 {
		maxExpansions = 0
	}

	out := make([]string, 0, maxExpansions+1)
	seen := make(map[string]struct{}, maxExpansions+1)
	add := func(variant string) bool {
		if _, ok := seen[variant]; ok {
			return false
		}
		seen[variant] = struct{}{}
		out = append(out, variant)
		return true
	}

	if includeOriginal {
		add(query)
	}
	if len(e.synonyms) == 0 || maxExpansions == 0 {
		return out
	}

	// Mark the original as seen even when excluded so a substitution that
	// reproduces it never counts as an expansion.
	seen[query] = struct{}{}

	tokens := strings.Fields(query)
	variants := 0
	for i, token := range tokens {
		subs, ok := e.synonyms[strings.ToLower(token)]
		if !ok {
			continue
		}
		for _, sub := range subs {
			if variants >= maxExpansions {
				return out
			}
			variant := replaceToken(tokens, i, sub)
			if add(variant) {
				variants++
			}
		}
	}
	return out
}

func replaceToken(tokens []string, idx int, substitute string) string {
	var b strings.Builder
	for i, token := range tokens {
		if i > 0 {
			b.WriteByte(' ')
		}
		if i == idx {
			b.WriteString(substitute)
		} else {
			b.WriteString(token)
		}
	}
	return b.String()
}
