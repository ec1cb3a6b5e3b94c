package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/wastewise/disposal-assistant/internal/core/domain"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("WEB_SEARCH_MODE", "")
	t.Setenv("REGION_FALLBACK", "")
	t.Setenv("FUSION_RRF_K", "")
	t.Setenv("MMR_LAMBDA", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.WebSearchMode != "threshold" {
		t.Fatalf("default web search mode = %q, want threshold", cfg.WebSearchMode)
	}
	if cfg.WebSearchMinConfidence != 0.55 {
		t.Fatalf("default min confidence = %v, want 0.55", cfg.WebSearchMinConfidence)
	}
	if cfg.RegionFallback != "us" {
		t.Fatalf("default region fallback = %q, want us", cfg.RegionFallback)
	}
	if cfg.FusionRRFK != 60 {
		t.Fatalf("default rrf k = %d, want 60", cfg.FusionRRFK)
	}
	if cfg.MMRLambda != 0.6 {
		t.Fatalf("default mmr lambda = %v, want 0.6", cfg.MMRLambda)
	}
	if cfg.FinalResultSize != 5 {
		t.Fatalf("default final result size = %d, want 5", cfg.FinalResultSize)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("WEB_SEARCH_MODE", "always")
	t.Setenv("REGION_FALLBACK", "de")
	t.Setenv("FUSION_RRF_K", "75")
	t.Setenv("MMR_LAMBDA", "0.8")
	t.Setenv("RETRIEVAL_TOP_K", "15")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.WebSearchMode != "always" {
		t.Fatalf("web search mode override lost, got %q", cfg.WebSearchMode)
	}
	if cfg.RegionFallback != "de" {
		t.Fatalf("region fallback override lost, got %q", cfg.RegionFallback)
	}
	if cfg.FusionRRFK != 75 || cfg.MMRLambda != 0.8 || cfg.RetrievalTopK != 15 {
		t.Fatalf("numeric overrides lost: %+v", cfg)
	}
}

func TestLoadFileOverlayWithEnvPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "web_search_mode: never\nregion_fallback: de\nfusion_rrf_k: 90\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("WEB_SEARCH_MODE", "threshold") // env beats file
	t.Setenv("REGION_FALLBACK", "")
	t.Setenv("FUSION_RRF_K", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.WebSearchMode != "threshold" {
		t.Fatalf("environment must win over file, got %q", cfg.WebSearchMode)
	}
	if cfg.RegionFallback != "de" || cfg.FusionRRFK != 90 {
		t.Fatalf("file values lost: fallback=%q k=%d", cfg.RegionFallback, cfg.FusionRRFK)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name  string
		key   string
		value string
	}{
		{"bad_region", "REGION_FALLBACK", "fr"},
		{"bad_mode", "WEB_SEARCH_MODE", "sometimes"},
		{"bad_lambda", "MMR_LAMBDA", "1.5"},
		{"bad_confidence", "WEB_SEARCH_MIN_CONFIDENCE", "-0.1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("CONFIG_FILE", "")
			t.Setenv(tc.key, tc.value)
			if _, err := Load(); !domain.IsKind(err, domain.ErrInvalidConfig) {
				t.Fatalf("expected invalid config error, got %v", err)
			}
		})
	}
}

func TestLoadMissingConfigFileFails(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); !domain.IsKind(err, domain.ErrInvalidConfig) {
		t.Fatalf("expected invalid config error for a missing file, got %v", err)
	}
}
