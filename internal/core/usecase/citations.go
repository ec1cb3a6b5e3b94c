package usecase

import "github.com/wastewise/disposal-assistant/internal/core/domain"

// ResolveCitations maps every fused entry, in order, to a user-facing
// citation. Documents without a public locator are kept with a
// best-effort identifier; dropping any entry would desynchronize citation
// numbering from in-answer reference markers.
func ResolveCitations(fused domain.FusedResult, resolvedRegion domain.Region) []domain.Citation {
	out := make([]domain.Citation, 0, len(fused.Documents))
	for i, entry := range fused.Documents {
		doc := entry.Document

		title := doc.Title
		if title == "" {
			title = doc.ID
		}
		reference := doc.Locator
		if reference == "" {
			reference = "doc://" + doc.ID
		}
		region := doc.Region
		if !region.Known() {
			region = resolvedRegion
		}

		out = append(out, domain.Citation{
			DocumentID: doc.ID,
			Title:      title,
			Reference:  reference,
			Rank:       i + 1,
			Region:     region,
		})
	}
	return out
}
