package vision

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pricewatch/pricewatch/internal/logger"
	"github.com/pricewatch/pricewatch/internal/pricing"
)

var codeFences = regexp.MustCompile("```json\n?|\n?```")

// Client extracts product facts from screenshot artifacts. Extract never
// returns an error: model misbehavior and API failures degrade the payload
// instead, so one bad response cannot drop a crawl job.
type Client struct {
	provider        Provider
	timeout         time.Duration
	defaultCurrency string
}

// ClientConfig holds extraction client settings.
type ClientConfig struct {
	Timeout         time.Duration
	DefaultCurrency string
}

// NewClient creates an extraction client around a provider.
func NewClient(provider Provider, cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultProviderConfig().Timeout
	}
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = "VND"
	}
	return &Client{
		provider:        provider,
		timeout:         cfg.Timeout,
		defaultCurrency: cfg.DefaultCurrency,
	}
}

// Extract reads the screenshot at path, asks the model for structured
// product facts, and maps the reply. Handling cascade:
//
//  1. strip code fences the model may have wrapped the JSON in
//  2. strict parse: map fields, normalize price, default gaps to "unknown"
//  3. parse failure: text-mine the reply for a plausible price
//  4. read/API failure: synthetic product flagging the error, price 0
func (c *Client) Extract(ctx context.Context, screenshotPath string) Product {
	image, err := os.ReadFile(screenshotPath)
	if err != nil {
		logger.Error("reading screenshot failed", "path", screenshotPath, "error", err)
		return c.errorProduct(err)
	}

	logger.Debug("requesting vision extraction",
		"provider", c.provider.Name(),
		"screenshot", screenshotPath,
		"image_bytes", len(image))

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	reply, err := c.provider.Describe(callCtx, extractionPrompt, image)
	if err != nil {
		logger.Error("vision provider call failed", "provider", c.provider.Name(), "error", err)
		return c.errorProduct(err)
	}

	cleaned := strings.TrimSpace(codeFences.ReplaceAllString(reply, ""))

	var fields map[string]any
	if err := json.Unmarshal([]byte(cleaned), &fields); err != nil {
		logger.Warn("model reply is not valid JSON, falling back to text mining", "error", err)
		return c.minedProduct(reply)
	}

	return c.mapReply(fields, reply)
}

// mapReply builds a Product from a parsed model reply.
func (c *Client) mapReply(fields map[string]any, raw string) Product {
	return Product{
		Name:           fieldOr(fields, "name", "Unknown Product"),
		SKU:            fieldOr(fields, "sku", Unknown),
		Price:          pricing.Normalize(field(fields, "price")),
		Currency:       fieldOr(fields, "currency", c.defaultCurrency),
		Availability:   fieldOr(fields, "availability", Unknown),
		Seller:         fieldOr(fields, "seller", Unknown),
		Description:    fieldOr(fields, "description", Unknown),
		Specifications: fieldOr(fields, "specifications", Unknown),
		ImagesCount:    fieldOr(fields, "images_count", Unknown),
		Rating:         fieldOr(fields, "rating", Unknown),
		ReviewsCount:   fieldOr(fields, "reviews_count", Unknown),
		RawResponse:    raw,
	}
}

// minedProduct recovers what it can from a non-JSON reply.
func (c *Client) minedProduct(raw string) Product {
	description := raw
	if len(description) > 200 {
		description = description[:200]
	}
	return Product{
		Name:           "Product from page",
		SKU:            Unknown,
		Price:          pricing.MinePrice(raw),
		Currency:       c.defaultCurrency,
		Availability:   Unknown,
		Seller:         Unknown,
		Description:    description,
		Specifications: Unknown,
		ImagesCount:    Unknown,
		Rating:         Unknown,
		ReviewsCount:   Unknown,
		RawResponse:    raw,
	}
}

// errorProduct is the synthetic result for infrastructure failures.
func (c *Client) errorProduct(err error) Product {
	return Product{
		Name:           "Error extracting data",
		SKU:            Unknown,
		Price:          0,
		Currency:       c.defaultCurrency,
		Availability:   Unknown,
		Seller:         Unknown,
		Description:    fmt.Sprintf("Error: %v", err),
		Specifications: Unknown,
		ImagesCount:    Unknown,
		Rating:         Unknown,
		ReviewsCount:   Unknown,
	}
}

// field reads a reply field as text, tolerating models that return numbers
// where strings were asked for.
func field(fields map[string]any, key string) string {
	v, ok := fields[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// fieldOr reads a reply field, substituting def for missing/empty values.
func fieldOr(fields map[string]any, key, def string) string {
	if s := strings.TrimSpace(field(fields, key)); s != "" {
		return s
	}
	return def
}
