package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pricewatch/pricewatch/internal/crawler"
	"github.com/pricewatch/pricewatch/internal/logger"
	"github.com/pricewatch/pricewatch/internal/pricing"
	"github.com/pricewatch/pricewatch/internal/storage"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- products ---

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.store.ListProducts(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if products == nil {
		products = []storage.Product{}
	}
	s.respondJSON(w, http.StatusOK, products)
}

func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var p storage.Product
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if p.Name == "" {
		s.respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	created, err := s.store.CreateProduct(r.Context(), p)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := s.store.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, storage.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "product not found")
		return
	}
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, product)
}

func (s *Server) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	err := s.store.DeleteProduct(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, storage.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "product not found")
		return
	}
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- targets ---

func (s *Server) handleListTargets(w http.ResponseWriter, r *http.Request) {
	targets, err := s.store.TargetsForProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if targets == nil {
		targets = []crawler.Target{}
	}
	s.respondJSON(w, http.StatusOK, targets)
}

func (s *Server) handleCreateTarget(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "id")
	if _, err := s.store.GetProduct(r.Context(), productID); errors.Is(err, storage.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "product not found")
		return
	} else if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var t crawler.Target
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if t.URL == "" {
		s.respondError(w, http.StatusBadRequest, "url is required")
		return
	}
	t.ProductID = productID

	created, err := s.store.CreateTarget(r.Context(), t)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleDeleteTarget(w http.ResponseWriter, r *http.Request) {
	err := s.store.DeleteTarget(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, storage.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "target not found")
		return
	}
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- crawling ---

type crawlAck struct {
	Accepted bool `json:"accepted"`
	Targets  int  `json:"targets"`
}

func (s *Server) handleCrawlProduct(w http.ResponseWriter, r *http.Request) {
	targets, err := s.store.TargetsForProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.startBatch(w, targets)
}

func (s *Server) handleCrawlAll(w http.ResponseWriter, r *http.Request) {
	targets, err := s.store.AllTargets(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.startBatch(w, targets)
}

// startBatch kicks off a crawl in the background and acknowledges
// immediately. Batches run minutes, not request-scoped seconds.
func (s *Server) startBatch(w http.ResponseWriter, targets []crawler.Target) {
	if len(targets) == 0 {
		s.respondError(w, http.StatusConflict, "no crawl targets registered")
		return
	}

	go func() {
		ctx := context.Background()
		for outcome := range s.batches.RunBatch(ctx, targets) {
			if outcome.Err != nil || outcome.Record == nil {
				continue
			}
			if err := s.store.AppendRecord(ctx, *outcome.Record); err != nil {
				logger.Error("persisting crawl record failed", "target", outcome.Target.ID, "error", err)
			}
		}
	}()

	s.respondJSON(w, http.StatusAccepted, crawlAck{Accepted: true, Targets: len(targets)})
}

// --- records ---

func (s *Server) handleLatestRecord(w http.ResponseWriter, r *http.Request) {
	record, err := s.store.LatestRecordFor(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, storage.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "no records for target")
		return
	}
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, record)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	records, err := s.store.HistoryFor(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if records == nil {
		records = []crawler.Record{}
	}
	s.respondJSON(w, http.StatusOK, records)
}

// --- alerts ---

type alertsResponse struct {
	Product storage.Product `json:"product"`
	Alerts  []pricing.Alert `json:"alerts"`
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	product, err := s.store.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, storage.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "product not found")
		return
	}
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	quotes, err := s.store.LatestQuotesFor(r.Context(), product.ID)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	alerts := pricing.CheckAlerts(pricing.OwnProduct{
		ID:    product.ID,
		Name:  product.Name,
		Price: product.OwnPrice,
	}, quotes, s.staleAfter, time.Now())
	pricing.SortAlerts(alerts)
	if alerts == nil {
		alerts = []pricing.Alert{}
	}

	s.respondJSON(w, http.StatusOK, alertsResponse{Product: product, Alerts: alerts})
}

// --- search ---

type searchRequest struct {
	Query     string   `json:"query"`
	Platforms []string `json:"platforms,omitempty"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		s.respondError(w, http.StatusBadRequest, "query is required")
		return
	}

	results, err := s.discoverer.SearchAndCrawl(r.Context(), req.Query, req.Platforms)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if err := s.store.AppendSearchResults(r.Context(), results); err != nil {
		logger.Error("persisting search results failed", "query", req.Query, "error", err)
	}

	if results == nil {
		results = []crawler.SearchResult{}
	}
	s.respondJSON(w, http.StatusOK, results)
}

func (s *Server) handleSearchResults(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	rows, err := s.store.RecentSearchResults(r.Context(), limit)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rows == nil {
		rows = []storage.SearchResultRow{}
	}
	s.respondJSON(w, http.StatusOK, rows)
}

// --- scheduler ---

func (s *Server) handleSchedulerStatus(w http.ResponseWriter, _ *http.Request) {
	if s.control == nil {
		s.respondError(w, http.StatusNotFound, "scheduler not configured")
		return
	}
	s.respondJSON(w, http.StatusOK, s.control.Status())
}

func (s *Server) handleSchedulerStart(w http.ResponseWriter, _ *http.Request) {
	if s.control == nil {
		s.respondError(w, http.StatusNotFound, "scheduler not configured")
		return
	}
	s.control.Start(context.Background())
	s.respondJSON(w, http.StatusOK, s.control.Status())
}

func (s *Server) handleSchedulerStop(w http.ResponseWriter, _ *http.Request) {
	if s.control == nil {
		s.respondError(w, http.StatusNotFound, "scheduler not configured")
		return
	}
	s.control.Stop()
	s.respondJSON(w, http.StatusOK, s.control.Status())
}

type intervalRequest struct {
	Interval string `json:"interval"`
}

func (s *Server) handleSchedulerInterval(w http.ResponseWriter, r *http.Request) {
	if s.control == nil {
		s.respondError(w, http.StatusNotFound, "scheduler not configured")
		return
	}

	var req intervalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	interval, err := time.ParseDuration(req.Interval)
	if err != nil || interval <= 0 {
		s.respondError(w, http.StatusBadRequest, "interval must be a positive duration")
		return
	}

	s.control.SetInterval(context.Background(), interval)
	s.respondJSON(w, http.StatusOK, s.control.Status())
}

// --- responses ---

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("writing response failed", "error", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
