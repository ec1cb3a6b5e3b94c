package ollama

import (
	"fmt"
	"strings"

	"github.com/wastewise/disposal-assistant/internal/core/domain"
)

func buildAnswerPrompt(question string, docs []domain.FusedDocument, citations []domain.Citation) string {
	const maxExcerpt = 1200

	var contextBuilder strings.Builder
	for i, entry := range docs {
		excerpt := entry.Document.Excerpt
		if len(excerpt) > maxExcerpt {
			excerpt = excerpt[:maxExcerpt]
		}
		contextBuilder.WriteString(fmt.Sprintf(
			"[%d] %s (region=%s, source=%s)\n%s\n\n",
			i+1,
			entry.Document.Title,
			entry.Document.Region.String(),
			entry.Document.Locator,
			excerpt,
		))
	}

	var citationBuilder strings.Builder
	for _, c := range citations {
		citationBuilder.WriteString(fmt.Sprintf("[%d] %s — %s\n", c.Rank, c.Title, c.Reference))
	}

	if contextBuilder.Len() == 0 {
		return fmt.Sprintf(`You are a waste-disposal assistant.
No reference material was found for the question below.
Say directly that no relevant disposal guidance was found and suggest contacting the local waste authority.
Do not invent rules.

Question:
%s`, question)
	}

	return fmt.Sprintf(`You are a waste-disposal assistant. Answer only from the numbered context below.
Cite every claim with its bracketed number, for example [1].
If the context does not cover the question, say so directly.
Do not invent rules and do not cite numbers that are not listed.

Question:
%s

Context:
%s
Citations:
%s`, question, contextBuilder.String(), citationBuilder.String())
}
