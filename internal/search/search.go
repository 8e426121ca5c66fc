// Package search extracts ranked product candidates from rendered
// search-engine and marketplace result pages.
package search

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/samber/lo"

	"github.com/pricewatch/pricewatch/internal/logger"
)

// Known platforms.
const (
	PlatformGoogle = "google"
	PlatformShopee = "shopee"
	PlatformLazada = "lazada"
)

// Candidate is one product link found on a results page. Transient: consumed
// by the crawl runner and discarded if the job fails.
type Candidate struct {
	URL      string `json:"url"`
	Title    string `json:"title"`
	Platform string `json:"platform"`
}

var searchEngines = map[string]string{
	PlatformGoogle: "https://www.google.com/search?q=",
	PlatformShopee: "https://shopee.vn/search?keyword=",
	PlatformLazada: "https://www.lazada.vn/catalog/?q=",
}

// PageURL builds the search results URL for a platform.
func PageURL(platform, query string) (string, error) {
	base, ok := searchEngines[platform]
	if !ok {
		return "", fmt.Errorf("unknown search platform: %s", platform)
	}
	return base + url.QueryEscape(query), nil
}

// Platforms lists the supported search platforms.
func Platforms() []string {
	return []string{PlatformGoogle, PlatformShopee, PlatformLazada}
}

// DetectPlatform classifies a destination URL into a known marketplace
// identifier, or "other".
func DetectPlatform(rawURL string) string {
	switch {
	case strings.Contains(rawURL, "shopee"):
		return "shopee"
	case strings.Contains(rawURL, "lazada"):
		return "lazada"
	case strings.Contains(rawURL, "tiki"):
		return "tiki"
	case strings.Contains(rawURL, "sendo"):
		return "sendo"
	case strings.Contains(rawURL, "amazon"):
		return "amazon"
	default:
		return "other"
	}
}

// strategy is one element-selection approach for a platform. Strategies are
// tried in order; the first yielding at least one usable candidate wins.
type strategy struct {
	name    string
	extract func(doc *goquery.Document, base *url.URL) []Candidate
}

// ExtractCandidates pulls product candidates out of a rendered results page.
// Duplicate URLs collapse to the first occurrence, output never exceeds
// maxResults, and an empty result is not an error. For the general
// web-search platform a relaxed anchor scan keyed on the query term runs
// when every strategy came up empty, since engine markup changes
// unpredictably and silent zero results are worse than noisy ones.
func ExtractCandidates(html, platform string, maxResults int, query string) []Candidate {
	if maxResults <= 0 || html == "" {
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		logger.Warn("unparseable results page", "platform", platform, "error", err)
		return nil
	}

	base, _ := url.Parse(searchEngines[platform])

	var candidates []Candidate
	for _, st := range strategiesFor(platform) {
		candidates = st.extract(doc, base)
		if len(candidates) > 0 {
			logger.Debug("selector strategy matched", "platform", platform, "strategy", st.name, "candidates", len(candidates))
			break
		}
	}

	if len(candidates) == 0 && platform == PlatformGoogle {
		candidates = anchorScanFallback(doc, base, query)
		if len(candidates) > 0 {
			logger.Debug("anchor-scan fallback matched", "candidates", len(candidates))
		}
	}

	candidates = lo.UniqBy(candidates, func(c Candidate) string { return c.URL })
	if len(candidates) > maxResults {
		candidates = candidates[:maxResults]
	}
	return candidates
}

func strategiesFor(platform string) []strategy {
	switch platform {
	case PlatformShopee:
		return shopeeStrategies
	case PlatformLazada:
		return lazadaStrategies
	default:
		return googleStrategies
	}
}

// resolveHref makes an href absolute against the platform's base URL.
func resolveHref(href string, base *url.URL) string {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	if !u.IsAbs() && base != nil {
		u = base.ResolveReference(u)
	}
	return u.String()
}

// usable enforces the candidate contract: absolute http URL, not the search
// engine's own domain, non-empty title.
func usable(candidateURL, title string) bool {
	if !strings.HasPrefix(candidateURL, "http") {
		return false
	}
	if strings.Contains(candidateURL, "google.com") {
		return false
	}
	return strings.TrimSpace(title) != ""
}

// --- google ---

var googleStrategies = []strategy{
	{"result-titles", googleTitled("div.g a h3")},
	{"data-ved-titles", googleTitled("div[data-ved] a h3")},
	{"result-blocks", googleLinks(".yuRUbf a")},
	{"any-result-link", googleLinks(`#search div.g a[href^="http"]`)},
	{"marketplace-direct", googleLinks(`a[href*="shopee"], a[href*="lazada"], a[href*="tiki"], a[href*="sendo"]`)},
}

// googleTitled extracts from result title headings, walking up to the
// enclosing anchor.
func googleTitled(selector string) func(*goquery.Document, *url.URL) []Candidate {
	return func(doc *goquery.Document, base *url.URL) []Candidate {
		var out []Candidate
		doc.Find(selector).Each(func(_ int, h *goquery.Selection) {
			link := h.Closest("a")
			href, ok := link.Attr("href")
			if !ok {
				return
			}
			candidateURL := resolveHref(href, base)
			title := strings.TrimSpace(h.Text())
			if usable(candidateURL, title) {
				out = append(out, Candidate{URL: candidateURL, Title: title, Platform: DetectPlatform(candidateURL)})
			}
		})
		return out
	}
}

// googleLinks extracts from anchor elements directly, preferring an inner
// heading for the title.
func googleLinks(selector string) func(*goquery.Document, *url.URL) []Candidate {
	return func(doc *goquery.Document, base *url.URL) []Candidate {
		var out []Candidate
		doc.Find(selector).Each(func(_ int, link *goquery.Selection) {
			href, ok := link.Attr("href")
			if !ok {
				return
			}
			candidateURL := resolveHref(href, base)
			title := strings.TrimSpace(link.Find("h3").First().Text())
			if title == "" {
				title = strings.TrimSpace(link.Text())
			}
			if usable(candidateURL, title) {
				out = append(out, Candidate{URL: candidateURL, Title: title, Platform: DetectPlatform(candidateURL)})
			}
		})
		return out
	}
}

// anchorScanFallback accepts any anchor whose href or visible text contains
// the query term, case-insensitive.
func anchorScanFallback(doc *goquery.Document, base *url.URL, query string) []Candidate {
	term := strings.ToLower(strings.TrimSpace(query))
	if term == "" {
		return nil
	}

	var out []Candidate
	doc.Find("a[href]").Each(func(i int, link *goquery.Selection) {
		href, _ := link.Attr("href")
		if strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") {
			return
		}
		candidateURL := resolveHref(href, base)
		text := strings.TrimSpace(link.Text())
		if !strings.Contains(strings.ToLower(candidateURL), term) &&
			!strings.Contains(strings.ToLower(text), term) {
			return
		}
		title := text
		if title == "" {
			title = fmt.Sprintf("Result %d", i+1)
		}
		if usable(candidateURL, title) {
			out = append(out, Candidate{URL: candidateURL, Title: title, Platform: DetectPlatform(candidateURL)})
		}
	})
	return out
}

// --- shopee ---

var shopeeStrategies = []strategy{
	{"search-item-result", marketplaceLinks(".shopee-search-item-result__item a", "/product/", `[data-sqe="name"], .item-name`, "Shopee Product", "https://shopee.vn")},
	{"grid-cells", marketplaceLinks(".col-xs-2-4 a", "/product/", `[data-sqe="name"], .item-name`, "Shopee Product", "https://shopee.vn")},
	{"sqe-links", marketplaceLinks(`[data-sqe="link"]`, "/product/", `[data-sqe="name"], .item-name`, "Shopee Product", "https://shopee.vn")},
}

// --- lazada ---

var lazadaStrategies = []strategy{
	{"qa-product-items", marketplaceLinks(`[data-qa-locator="product-item"] a`, "/products/", `[data-qa-locator="product-name"], .title`, "Lazada Product", "https://www.lazada.vn")},
	{"grid-items", marketplaceLinks(".gridItem a", "/products/", `[data-qa-locator="product-name"], .title`, "Lazada Product", "https://www.lazada.vn")},
	{"product-items", marketplaceLinks(".product-item a", "/products/", `[data-qa-locator="product-name"], .title`, "Lazada Product", "https://www.lazada.vn")},
}

// marketplaceLinks extracts anchors whose href carries the platform's
// product path marker, scheme-completing relative hrefs against origin.
func marketplaceLinks(selector, pathMarker, titleSelector, fallbackTitle, origin string) func(*goquery.Document, *url.URL) []Candidate {
	return func(doc *goquery.Document, _ *url.URL) []Candidate {
		var out []Candidate
		doc.Find(selector).Each(func(_ int, link *goquery.Selection) {
			href, ok := link.Attr("href")
			if !ok || !strings.Contains(href, pathMarker) {
				return
			}

			candidateURL := href
			if !strings.HasPrefix(candidateURL, "http") {
				switch {
				case strings.HasPrefix(candidateURL, "//"):
					candidateURL = "https:" + candidateURL
				case strings.HasPrefix(candidateURL, "/"):
					candidateURL = origin + candidateURL
				default:
					candidateURL = origin + "/" + candidateURL
				}
			}

			title := strings.TrimSpace(link.Find(titleSelector).First().Text())
			if title == "" {
				title = fallbackTitle
			}

			out = append(out, Candidate{URL: candidateURL, Title: title, Platform: DetectPlatform(candidateURL)})
		})
		return out
	}
}
