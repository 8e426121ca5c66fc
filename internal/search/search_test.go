package search

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// readTestdata reads a file from the testdata directory
func readTestdata(t *testing.T, filename string) string {
	t.Helper()
	path := filepath.Join("testdata", filename)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read testdata %s: %v", filename, err)
	}
	return string(data)
}

func TestExtractCandidates_Google_PrimaryStrategy(t *testing.T) {
	html := readTestdata(t, "google_results.html")

	candidates := ExtractCandidates(html, PlatformGoogle, 10, "iphone 15")

	if len(candidates) != 3 {
		t.Fatalf("expected 3 candidates (duplicate and own-domain dropped), got %d: %v", len(candidates), candidates)
	}

	if candidates[0].URL != "https://shopee.vn/product/123456" {
		t.Errorf("first candidate = %q", candidates[0].URL)
	}
	if candidates[0].Platform != "shopee" {
		t.Errorf("first candidate platform = %q, want shopee", candidates[0].Platform)
	}
	if candidates[1].Platform != "lazada" {
		t.Errorf("second candidate platform = %q, want lazada", candidates[1].Platform)
	}
	if candidates[2].Platform != "tiki" {
		t.Errorf("third candidate platform = %q, want tiki", candidates[2].Platform)
	}

	for _, c := range candidates {
		if strings.Contains(c.URL, "google.com") {
			t.Errorf("candidate must not point back at the search engine: %q", c.URL)
		}
		if c.Title == "" {
			t.Errorf("candidate %q has empty title", c.URL)
		}
	}
}

func TestExtractCandidates_Google_DuplicatesCollapse(t *testing.T) {
	html := readTestdata(t, "google_results.html")

	candidates := ExtractCandidates(html, PlatformGoogle, 10, "iphone 15")

	seen := map[string]int{}
	for _, c := range candidates {
		seen[c.URL]++
	}
	for u, n := range seen {
		if n > 1 {
			t.Errorf("URL %q appears %d times, want 1", u, n)
		}
	}

	// first occurrence wins
	if candidates[0].Title != "iPhone 15 128GB chinh hang" {
		t.Errorf("duplicate should keep first occurrence, got title %q", candidates[0].Title)
	}
}

func TestExtractCandidates_Google_MaxResults(t *testing.T) {
	html := readTestdata(t, "google_results.html")

	candidates := ExtractCandidates(html, PlatformGoogle, 2, "iphone 15")
	if len(candidates) != 2 {
		t.Errorf("expected exactly maxResults=2 candidates, got %d", len(candidates))
	}
}

func TestExtractCandidates_Google_AnchorScanFallback(t *testing.T) {
	html := readTestdata(t, "google_fallback.html")

	candidates := ExtractCandidates(html, PlatformGoogle, 10, "iphone 15")

	if len(candidates) != 2 {
		t.Fatalf("fallback should yield 2 candidates, got %d: %v", len(candidates), candidates)
	}
	for _, c := range candidates {
		if strings.Contains(c.URL, "google.com") {
			t.Errorf("fallback must still exclude the engine's own domain: %q", c.URL)
		}
	}
}

func TestExtractCandidates_Shopee(t *testing.T) {
	html := readTestdata(t, "shopee_results.html")

	candidates := ExtractCandidates(html, PlatformShopee, 10, "iphone 15")

	if len(candidates) != 3 {
		t.Fatalf("expected 3 product candidates, got %d: %v", len(candidates), candidates)
	}

	if candidates[0].URL != "https://shopee.vn/product/1001/iphone-15" {
		t.Errorf("relative href should resolve against shopee origin, got %q", candidates[0].URL)
	}
	if candidates[0].Title != "iPhone 15 chinh hang VN/A" {
		t.Errorf("title = %q", candidates[0].Title)
	}
	// untitled product anchor gets the placeholder title
	if candidates[2].Title != "Shopee Product" {
		t.Errorf("untitled candidate title = %q, want placeholder", candidates[2].Title)
	}
	for _, c := range candidates {
		if c.Platform != "shopee" {
			t.Errorf("platform = %q, want shopee", c.Platform)
		}
		if !strings.Contains(c.URL, "/product/") {
			t.Errorf("non-product URL leaked through: %q", c.URL)
		}
	}
}

func TestExtractCandidates_Lazada(t *testing.T) {
	html := readTestdata(t, "lazada_results.html")

	candidates := ExtractCandidates(html, PlatformLazada, 10, "iphone 15")

	if len(candidates) != 2 {
		t.Fatalf("expected 2 product candidates, got %d: %v", len(candidates), candidates)
	}
	if candidates[0].URL != "https://www.lazada.vn/products/iphone-15-i2001.html" {
		t.Errorf("scheme-relative href should complete to https, got %q", candidates[0].URL)
	}
	if candidates[1].Title != "Apple iPhone 15 Pro" {
		t.Errorf("title = %q", candidates[1].Title)
	}
}

func TestExtractCandidates_EmptyInputs(t *testing.T) {
	if got := ExtractCandidates("", PlatformGoogle, 5, "query"); got != nil {
		t.Errorf("empty HTML should yield nil, got %v", got)
	}
	if got := ExtractCandidates("<html></html>", PlatformGoogle, 0, "query"); got != nil {
		t.Errorf("maxResults=0 should yield nil, got %v", got)
	}
	if got := ExtractCandidates("<html><body><p>nothing</p></body></html>", PlatformShopee, 5, "query"); len(got) != 0 {
		t.Errorf("no matches should yield empty, got %v", got)
	}
}

func TestPageURL(t *testing.T) {
	u, err := PageURL(PlatformGoogle, "iphone 15 pro")
	if err != nil {
		t.Fatalf("PageURL() error = %v", err)
	}
	if u != "https://www.google.com/search?q=iphone+15+pro" {
		t.Errorf("PageURL() = %q", u)
	}

	if _, err := PageURL("myspace", "q"); err == nil {
		t.Error("expected error for unknown platform")
	}
}

func TestDetectPlatform(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://shopee.vn/product/1", "shopee"},
		{"https://www.lazada.vn/products/x.html", "lazada"},
		{"https://tiki.vn/p/1", "tiki"},
		{"https://www.sendo.vn/x", "sendo"},
		{"https://www.amazon.com/dp/B000", "amazon"},
		{"https://someshop.example/p/1", "other"},
	}
	for _, tt := range tests {
		if got := DetectPlatform(tt.url); got != tt.want {
			t.Errorf("DetectPlatform(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}
