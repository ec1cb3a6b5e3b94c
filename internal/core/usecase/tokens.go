package usecase

import (
	"strings"
	"unicode"
)

// splitAlphaNumLower breaks text into lowercase alphanumeric tokens. It is
// the shared text primitive behind region cue matching, paraphrase
// deduplication and MMR content similarity.
func splitAlphaNumLower(s string) []string {
	if s == "" {
		return nil
	}

	tokens := make([]string, 0, 16)
	var b strings.Builder
	for _, r := range s {
		r = unicode.ToLower(r)
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		tokens = append(tokens, b.String())
	}
	return tokens
}

func toTokenSet(s string) map[string]struct{} {
	tokens := splitAlphaNumLower(s)
	out := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		out[token] = struct{}{}
	}
	return out
}

// normalizedKey joins the token stream back into a canonical form, so two
// paraphrases differing only in case or punctuation compare equal.
func normalizedKey(s string) string {
	return strings.Join(splitAlphaNumLower(s), " ")
}

// tokenSimilarity is Jaccard overlap between the token sets of two texts,
// in [0,1].
func tokenSimilarity(a, b string) float64 {
	setA := toTokenSet(a)
	setB := toTokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersect := 0
	for token := range setA {
		if _, ok := setB[token]; ok {
			intersect++
		}
	}
	union := len(setA) + len(setB) - intersect
	if union == 0 {
		return 0
	}
	return float64(intersect) / float64(union)
}
