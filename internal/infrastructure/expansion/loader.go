// Package expansion loads the synonym table that drives query
// expansion. The table is a flat YAML mapping of term to one or more
// substitutes, maintained by hand for the German legal and
// administrative corpus.
package expansion

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadSynonymTable reads a YAML file mapping a term to a substitute or
// a list of substitutes. Keys are lowercased so lookup is
// case-insensitive; entries with a blank side or a multi-word key are
// rejected rather than silently producing no-op expansions.
func LoadSynonymTable(path string) (map[string][]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read synonym table: %w", err)
	}
	return ParseSynonymTable(raw)
}

func ParseSynonymTable(raw []byte) (map[string][]string, error) {
	var parsed map[string]any
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse synonym table: %w", err)
	}

	table := make(map[string][]string, len(parsed))
	for term, value := range parsed {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" {
			return nil, fmt.Errorf("synonym table: blank term")
		}
		if strings.ContainsAny(term, " \t") {
			return nil, fmt.Errorf("synonym table: term %q must be a single token", term)
		}
		if _, ok := table[term]; ok {
			return nil, fmt.Errorf("synonym table: duplicate entries for %q", term)
		}

		substitutes, err := substituteList(term, value)
		if err != nil {
			return nil, err
		}
		table[term] = substitutes
	}
	return table, nil
}

func substituteList(term string, value any) ([]string, error) {
	switch v := value.(type) {
	case string:
		sub := strings.TrimSpace(v)
		if sub == "" {
			return nil, fmt.Errorf("synonym table: blank substitute for %q", term)
		}
		return []string{sub}, nil
	case []any:
		if len(v) == 0 {
			return nil, fmt.Errorf("synonym table: empty substitute list for %q", term)
		}
		out := make([]string, 0, len(v))
		for _, item := range v {
			sub, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("synonym table: non-string substitute for %q", term)
			}
			sub = strings.TrimSpace(sub)
			if sub == "" {
				return nil, fmt.Errorf("synonym table: blank substitute for %q", term)
			}
			out = append(out, sub)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("synonym table: substitute for %q must be a string or list", term)
	}
}
