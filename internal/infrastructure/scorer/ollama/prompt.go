package ollama

import (
	"fmt"
	"strings"

	"github.com/makr-code/VCC-Veritas-sub003/internal/core/domain"
)

const maxExcerptLen = 2000

func buildScoringPrompt(query string, excerpts []string, mode domain.ScoringMode) string {
	var excerptBuilder strings.Builder
	for idx, excerpt := range excerpts {
		if len(excerpt) > maxExcerptLen {
			excerpt = excerpt[:maxExcerptLen]
		}
		fmt.Fprintf(&excerptBuilder, "[%d]\n%s\n\n", idx+1, excerpt)
	}

	return fmt.Sprintf(`You grade text excerpts against a search query.
%s
Return strict JSON object with keys:
scores (array of %d numbers from 0 to 1, one per excerpt, in order), confidence (number from 0 to 1).
No markdown, no extra keys.

Query:
%s

Excerpts:
%s`, modeInstruction(mode), len(excerpts), query, excerptBuilder.String())
}

func modeInstruction(mode domain.ScoringMode) string {
	switch mode {
	case domain.ModeInformativeness:
		return "Grade each excerpt by how much substantive, self-contained information it carries, regardless of topical match."
	case domain.ModeCombined:
		return "Grade each excerpt by both topical relevance to the query and how much substantive information it carries."
	default:
		return "Grade each excerpt by topical relevance to the query."
	}
}
