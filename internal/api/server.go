// Package api exposes the tracker over HTTP: product and target
// management, crawl triggers, price history, discovery search, and alerts.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pricewatch/pricewatch/internal/crawler"
	"github.com/pricewatch/pricewatch/internal/pricing"
	"github.com/pricewatch/pricewatch/internal/scheduler"
	"github.com/pricewatch/pricewatch/internal/storage"
)

// Store is the persistence surface the API needs.
type Store interface {
	CreateProduct(ctx context.Context, p storage.Product) (storage.Product, error)
	GetProduct(ctx context.Context, id string) (storage.Product, error)
	ListProducts(ctx context.Context) ([]storage.Product, error)
	DeleteProduct(ctx context.Context, id string) error

	CreateTarget(ctx context.Context, t crawler.Target) (crawler.Target, error)
	DeleteTarget(ctx context.Context, id string) error
	TargetsForProduct(ctx context.Context, productID string) ([]crawler.Target, error)
	AllTargets(ctx context.Context) ([]crawler.Target, error)

	AppendRecord(ctx context.Context, r crawler.Record) error
	LatestRecordFor(ctx context.Context, targetID string) (crawler.Record, error)
	HistoryFor(ctx context.Context, targetID string, limit int) ([]crawler.Record, error)
	LatestQuotesFor(ctx context.Context, productID string) ([]pricing.CompetitorQuote, error)

	AppendSearchResults(ctx context.Context, results []crawler.SearchResult) error
	RecentSearchResults(ctx context.Context, limit int) ([]storage.SearchResultRow, error)
}

// BatchRunner runs crawl batches.
type BatchRunner interface {
	RunBatch(ctx context.Context, targets []crawler.Target) <-chan crawler.Outcome
}

// Discoverer runs search-and-crawl discovery.
type Discoverer interface {
	SearchAndCrawl(ctx context.Context, query string, platforms []string) ([]crawler.SearchResult, error)
}

// Control is the scheduler surface the API needs.
type Control interface {
	Start(ctx context.Context)
	Stop()
	SetInterval(ctx context.Context, interval time.Duration)
	Status() scheduler.Status
}

// Server holds handler dependencies.
type Server struct {
	store      Store
	batches    BatchRunner
	discoverer Discoverer
	control    Control
	staleAfter time.Duration
}

// ServerConfig holds API settings.
type ServerConfig struct {
	AlertStaleAfter time.Duration
}

// NewServer creates the API server. control may be nil when no scheduler
// is configured.
func NewServer(store Store, batches BatchRunner, discoverer Discoverer, control Control, cfg ServerConfig) *Server {
	return &Server{
		store:      store,
		batches:    batches,
		discoverer: discoverer,
		control:    control,
		staleAfter: cfg.AlertStaleAfter,
	}
}

// Router builds the HTTP routing table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"http://localhost:*", "https://localhost:*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Get("/", s.handleListProducts)
			r.Post("/", s.handleCreateProduct)
			r.Get("/{id}", s.handleGetProduct)
			r.Delete("/{id}", s.handleDeleteProduct)
			r.Get("/{id}/targets", s.handleListTargets)
			r.Post("/{id}/targets", s.handleCreateTarget)
			r.Post("/{id}/crawl", s.handleCrawlProduct)
			r.Get("/{id}/alerts", s.handleAlerts)
		})

		r.Delete("/targets/{id}", s.handleDeleteTarget)
		r.Get("/targets/{id}/latest", s.handleLatestRecord)
		r.Get("/targets/{id}/history", s.handleHistory)

		r.Post("/crawl", s.handleCrawlAll)
		r.Post("/search", s.handleSearch)
		r.Get("/search/results", s.handleSearchResults)

		r.Route("/scheduler", func(r chi.Router) {
			r.Get("/", s.handleSchedulerStatus)
			r.Post("/start", s.handleSchedulerStart)
			r.Post("/stop", s.handleSchedulerStop)
			r.Post("/interval", s.handleSchedulerInterval)
		})
	})

	return r
}
