package pricing

import (
	"sort"
	"time"
)

// OwnProduct is the seller's own product being tracked.
type OwnProduct struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// CompetitorQuote is the most recent crawled price for one competitor target.
type CompetitorQuote struct {
	TargetID    string    `json:"target_id"`
	Competitor  string    `json:"competitor"`
	URL         string    `json:"url"`
	ProductName string    `json:"product_name"`
	Price       float64   `json:"price"`
	Currency    string    `json:"currency"`
	CrawledAt   time.Time `json:"crawled_at"`
}

// Alert fires when a competitor undercuts the seller's own price.
type Alert struct {
	Product           OwnProduct      `json:"product"`
	Competitor        CompetitorQuote `json:"competitor"`
	PriceDifference   float64         `json:"price_difference"`
	PercentDifference float64         `json:"percent_difference"`
}

// CheckAlerts compares own price against the latest quote per competitor.
// Quotes with a zero price (degraded extractions) are ignored. Quotes older
// than staleAfter are excluded: an undercut observed days ago says nothing
// about the competitor's current price. staleAfter <= 0 disables the check.
func CheckAlerts(product OwnProduct, quotes []CompetitorQuote, staleAfter time.Duration, now time.Time) []Alert {
	var alerts []Alert
	for _, q := range quotes {
		if q.Price <= 0 {
			continue
		}
		if staleAfter > 0 && now.Sub(q.CrawledAt) > staleAfter {
			continue
		}
		if q.Price >= product.Price {
			continue
		}
		diff := product.Price - q.Price
		var pct float64
		if product.Price > 0 {
			pct = diff / product.Price * 100
		}
		alerts = append(alerts, Alert{
			Product:           product,
			Competitor:        q,
			PriceDifference:   diff,
			PercentDifference: pct,
		})
	}
	return alerts
}

// SortAlerts orders alerts by absolute price difference, largest first.
func SortAlerts(alerts []Alert) {
	sort.SliceStable(alerts, func(i, j int) bool {
		return alerts[i].PriceDifference > alerts[j].PriceDifference
	})
}
