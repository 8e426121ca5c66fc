// Package storage persists products, crawl targets, and price history in
// Postgres, with a Redis-backed cooldown cache for crawl suppression.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pricewatch/pricewatch/internal/crawler"
	"github.com/pricewatch/pricewatch/internal/logger"
	"github.com/pricewatch/pricewatch/internal/pricing"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// Store wraps a Postgres connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to Postgres and verifies the connection.
func New(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing database DSN: %w", err)
	}
	cfg.MaxConns = 10

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	logger.Info("connected to database", "max_conns", cfg.MaxConns)
	return &Store{pool: pool}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Migrate creates the schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS products (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			sku         TEXT NOT NULL DEFAULT '',
			own_price   DOUBLE PRECISION NOT NULL DEFAULT 0,
			currency    TEXT NOT NULL DEFAULT 'VND',
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS crawl_targets (
			id          TEXT PRIMARY KEY,
			product_id  TEXT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
			url         TEXT NOT NULL,
			competitor  TEXT NOT NULL DEFAULT '',
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (product_id, url)
		)`,
		`CREATE TABLE IF NOT EXISTS crawl_records (
			id              BIGSERIAL PRIMARY KEY,
			target_id       TEXT NOT NULL REFERENCES crawl_targets(id) ON DELETE CASCADE,
			name            TEXT NOT NULL,
			sku             TEXT NOT NULL,
			price           DOUBLE PRECISION NOT NULL,
			currency        TEXT NOT NULL,
			availability    TEXT NOT NULL,
			seller          TEXT NOT NULL,
			screenshot_path TEXT NOT NULL,
			raw_response    TEXT NOT NULL DEFAULT '',
			crawled_at      TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_crawl_records_target_time
			ON crawl_records (target_id, crawled_at DESC)`,
		`CREATE TABLE IF NOT EXISTS search_results (
			id            BIGSERIAL PRIMARY KEY,
			query         TEXT NOT NULL,
			platform      TEXT NOT NULL,
			url           TEXT NOT NULL,
			title         TEXT NOT NULL,
			discovered_at TIMESTAMPTZ NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("running migration: %w", err)
		}
	}
	logger.Debug("schema migrated")
	return nil
}

// Product is a tracked own-catalog item.
type Product struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	SKU       string    `json:"sku"`
	OwnPrice  float64   `json:"own_price"`
	Currency  string    `json:"currency"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateProduct inserts a product, assigning an ID when absent.
func (s *Store) CreateProduct(ctx context.Context, p Product) (Product, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Currency == "" {
		p.Currency = "VND"
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO products (id, name, sku, own_price, currency)
		 VALUES ($1, $2, $3, $4, $5) RETURNING created_at`,
		p.ID, p.Name, p.SKU, p.OwnPrice, p.Currency).Scan(&p.CreatedAt)
	if err != nil {
		return Product{}, fmt.Errorf("inserting product: %w", err)
	}
	return p, nil
}

// GetProduct fetches one product by ID.
func (s *Store) GetProduct(ctx context.Context, id string) (Product, error) {
	var p Product
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, sku, own_price, currency, created_at FROM products WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.SKU, &p.OwnPrice, &p.Currency, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	if err != nil {
		return Product{}, fmt.Errorf("fetching product: %w", err)
	}
	return p, nil
}

// ListProducts returns all products, newest first.
func (s *Store) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, sku, own_price, currency, created_at FROM products ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.SKU, &p.OwnPrice, &p.Currency, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeleteProduct removes a product and, by cascade, its targets and records.
func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateTarget registers a competitor URL for a product.
func (s *Store) CreateTarget(ctx context.Context, t crawler.Target) (crawler.Target, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO crawl_targets (id, product_id, url, competitor) VALUES ($1, $2, $3, $4)`,
		t.ID, t.ProductID, t.URL, t.Competitor)
	if err != nil {
		return crawler.Target{}, fmt.Errorf("inserting target: %w", err)
	}
	return t, nil
}

// DeleteTarget removes one crawl target.
func (s *Store) DeleteTarget(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM crawl_targets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting target: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// TargetsForProduct lists the crawl targets registered for one product.
func (s *Store) TargetsForProduct(ctx context.Context, productID string) ([]crawler.Target, error) {
	return s.queryTargets(ctx,
		`SELECT id, product_id, url, competitor FROM crawl_targets WHERE product_id = $1 ORDER BY created_at`,
		productID)
}

// AllTargets lists every registered crawl target.
func (s *Store) AllTargets(ctx context.Context) ([]crawler.Target, error) {
	return s.queryTargets(ctx,
		`SELECT id, product_id, url, competitor FROM crawl_targets ORDER BY created_at`)
}

func (s *Store) queryTargets(ctx context.Context, sql string, args ...any) ([]crawler.Target, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("listing targets: %w", err)
	}
	defer rows.Close()

	var out []crawler.Target
	for rows.Next() {
		var t crawler.Target
		if err := rows.Scan(&t.ID, &t.ProductID, &t.URL, &t.Competitor); err != nil {
			return nil, fmt.Errorf("scanning target: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// AppendRecord stores one crawl record in the price history.
func (s *Store) AppendRecord(ctx context.Context, r crawler.Record) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO crawl_records
			(target_id, name, sku, price, currency, availability, seller, screenshot_path, raw_response, crawled_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		r.TargetID, r.Product.Name, r.Product.SKU, r.Product.Price, r.Product.Currency,
		r.Product.Availability, r.Product.Seller, r.ScreenshotPath, r.Product.RawResponse, r.CrawledAt)
	if err != nil {
		return fmt.Errorf("inserting crawl record: %w", err)
	}
	return nil
}

// LatestRecordFor returns the newest crawl record for a target.
func (s *Store) LatestRecordFor(ctx context.Context, targetID string) (crawler.Record, error) {
	records, err := s.HistoryFor(ctx, targetID, 1)
	if err != nil {
		return crawler.Record{}, err
	}
	if len(records) == 0 {
		return crawler.Record{}, ErrNotFound
	}
	return records[0], nil
}

// HistoryFor returns up to limit crawl records for a target, newest first.
func (s *Store) HistoryFor(ctx context.Context, targetID string, limit int) ([]crawler.Record, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT target_id, name, sku, price, currency, availability, seller, screenshot_path, raw_response, crawled_at
		 FROM crawl_records WHERE target_id = $1 ORDER BY crawled_at DESC LIMIT $2`,
		targetID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var out []crawler.Record
	for rows.Next() {
		var r crawler.Record
		if err := rows.Scan(&r.TargetID, &r.Product.Name, &r.Product.SKU, &r.Product.Price,
			&r.Product.Currency, &r.Product.Availability, &r.Product.Seller,
			&r.ScreenshotPath, &r.Product.RawResponse, &r.CrawledAt); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// LatestQuotesFor gathers the newest record per target of a product, shaped
// for price-alert checks.
func (s *Store) LatestQuotesFor(ctx context.Context, productID string) ([]pricing.CompetitorQuote, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT ON (r.target_id)
			r.target_id, t.competitor, t.url, r.name, r.price, r.currency, r.crawled_at
		 FROM crawl_records r
		 JOIN crawl_targets t ON t.id = r.target_id
		 WHERE t.product_id = $1
		 ORDER BY r.target_id, r.crawled_at DESC`,
		productID)
	if err != nil {
		return nil, fmt.Errorf("querying latest quotes: %w", err)
	}
	defer rows.Close()

	var out []pricing.CompetitorQuote
	for rows.Next() {
		var q pricing.CompetitorQuote
		if err := rows.Scan(&q.TargetID, &q.Competitor, &q.URL, &q.ProductName, &q.Price, &q.Currency, &q.CrawledAt); err != nil {
			return nil, fmt.Errorf("scanning quote: %w", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// AppendSearchResults stores discovered competitor listings.
func (s *Store) AppendSearchResults(ctx context.Context, results []crawler.SearchResult) error {
	for _, r := range results {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO search_results (query, platform, url, title, discovered_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			r.Query, r.Platform, r.Candidate.URL, r.Candidate.Title, r.DiscoveredAt)
		if err != nil {
			return fmt.Errorf("inserting search result: %w", err)
		}
	}
	return nil
}

// SearchResultRow is one stored discovery row.
type SearchResultRow struct {
	ID           int64     `json:"id"`
	Query        string    `json:"query"`
	Platform     string    `json:"platform"`
	URL          string    `json:"url"`
	Title        string    `json:"title"`
	DiscoveredAt time.Time `json:"discovered_at"`
}

// RecentSearchResults lists stored discoveries, newest first.
func (s *Store) RecentSearchResults(ctx context.Context, limit int) ([]SearchResultRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, query, platform, url, title, discovered_at
		 FROM search_results ORDER BY discovered_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying search results: %w", err)
	}
	defer rows.Close()

	var out []SearchResultRow
	for rows.Next() {
		var r SearchResultRow
		if err := rows.Scan(&r.ID, &r.Query, &r.Platform, &r.URL, &r.Title, &r.DiscoveredAt); err != nil {
			return nil, fmt.Errorf("scanning search result: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
