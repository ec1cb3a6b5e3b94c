package usecase

import (
	"log/slog"
	"strings"

	"github.com/wastewise/disposal-assistant/internal/core/domain"
)

// Cue lexicons for deterministic region inference. Tokens are matched
// against the lowercase alphanumeric token stream of the query.
var (
	usRegionCues = map[string]struct{}{
		"us": {}, "usa": {}, "america": {}, "american": {},
		"trash": {}, "garbage": {}, "curbside": {}, "epa": {},
		"california": {}, "texas": {}, "newyork": {}, "seattle": {},
		"portland": {}, "chicago": {}, "county": {},
	}
	deRegionCues = map[string]struct{}{
		"de": {}, "germany": {}, "german": {}, "deutschland": {},
		"berlin": {}, "hamburg": {}, "munich": {}, "muenchen": {},
		"restmuell": {}, "gelber": {}, "sack": {}, "biotonne": {},
		"altglas": {}, "pfand": {}, "wertstoff": {}, "muell": {},
	}
)

// RegionRouter resolves the regulatory region for a turn. An explicit user
// selection is authoritative; otherwise a keyword heuristic runs and an
// inconclusive result degrades to the configured fallback. The router is a
// pure function of its inputs and never fails.
type RegionRouter struct {
	fallback domain.Region
	logger   *slog.Logger
}

func NewRegionRouter(fallback domain.Region, logger *slog.Logger) *RegionRouter {
	if !fallback.Known() {
		fallback = domain.RegionUS
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RegionRouter{fallback: fallback, logger: logger}
}

func (r *RegionRouter) Fallback() domain.Region {
	return r.fallback
}

func (r *RegionRouter) Resolve(query domain.Query, explicit domain.Region) domain.Region {
	if explicit.Known() {
		return explicit
	}

	usScore, deScore := scoreRegionCues(query.Text)
	switch {
	case usScore > deScore:
		return domain.RegionUS
	case deScore > usScore:
		return domain.RegionDE
	}

	r.logger.Warn("region_inference_inconclusive",
		"turn_index", query.TurnIndex,
		"fallback", r.fallback.String(),
	)
	return r.fallback
}

func scoreRegionCues(text string) (usScore, deScore int) {
	for _, token := range splitAlphaNumLower(text) {
		if _, ok := usRegionCues[token]; ok {
			usScore++
		}
		if _, ok := deRegionCues[token]; ok {
			deScore++
		}
		// 5-digit runs read as US zip codes.
		if len(token) == 5 && strings.IndexFunc(token, func(r rune) bool { return r < '0' || r > '9' }) < 0 {
			usScore++
		}
	}
	if containsGermanDiacritics(text) {
		deScore++
	}
	return usScore, deScore
}

func containsGermanDiacritics(text string) bool {
	return strings.ContainsAny(text, "äöüÄÖÜß")
}
