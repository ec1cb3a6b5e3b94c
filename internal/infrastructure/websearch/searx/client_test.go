package searx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/wastewise/disposal-assistant/internal/core/domain"
)

func TestSearchSetsLanguageAndDerivesScores(t *testing.T) {
	var gotQuery map[string][]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			http.NotFound(w, r)
			return
		}
		gotQuery = r.URL.Query()
		_, _ = w.Write([]byte(`{"results":[
			{"url":"https://berlin.de/abfall","title":"Abfall ABC","content":"Restmüll und Wertstoffe"},
			{"url":"https://example.de/pfand","title":"Pfandsystem","content":"Einwegpfand"},
			{"url":"","title":"broken entry","content":""}
		]}`))
	}))
	defer server.Close()

	client := New(server.URL, nil)
	hits, err := client.Search(context.Background(), "wohin mit restmüll", domain.RegionDE, 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if got := gotQuery["language"]; len(got) != 1 || got[0] != "de-DE" {
		t.Fatalf("language = %v, want de-DE", got)
	}
	if got := gotQuery["format"]; len(got) != 1 || got[0] != "json" {
		t.Fatalf("format = %v, want json", got)
	}

	if len(hits) != 2 {
		t.Fatalf("expected url-less results skipped, got %d hits", len(hits))
	}
	if hits[0].Score != 1.0 || hits[1].Score != 0.5 {
		t.Fatalf("rank-derived scores = %v, %v, want 1.0, 0.5", hits[0].Score, hits[1].Score)
	}
	if hits[0].Document.ID != "https://berlin.de/abfall" || hits[0].Document.Locator != hits[0].Document.ID {
		t.Fatalf("url must serve as id and locator: %+v", hits[0].Document)
	}
}

func TestSearchTruncatesToTopK(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"results":[
			{"url":"https://a.example","title":"a"},
			{"url":"https://b.example","title":"b"},
			{"url":"https://c.example","title":"c"}
		]}`))
	}))
	defer server.Close()

	client := New(server.URL, nil)
	hits, err := client.Search(context.Background(), "glass recycling", domain.RegionUS, 2)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected topK truncation to 2, got %d", len(hits))
	}
}

func TestSearchErrorIncludesBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := New(server.URL, nil)
	_, err := client.Search(context.Background(), "anything", domain.RegionUS, 5)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "rate limited") {
		t.Fatalf("expected body in error, got %v", err)
	}
}
