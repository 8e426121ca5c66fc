package pricing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCheckAlerts_CompetitorUndercuts(t *testing.T) {
	now := time.Now()
	product := OwnProduct{ID: "p1", Name: "Widget", Price: 100}
	quotes := []CompetitorQuote{
		{TargetID: "t10", Competitor: "shop-a", Price: 80, CrawledAt: now},
		{TargetID: "t11", Competitor: "shop-b", Price: 120, CrawledAt: now},
		{TargetID: "t12", Competitor: "shop-c", Price: 100, CrawledAt: now},
	}

	alerts := CheckAlerts(product, quotes, 24*time.Hour, now)

	assert.Len(t, alerts, 1)
	assert.Equal(t, "t10", alerts[0].Competitor.TargetID)
	assert.Equal(t, float64(20), alerts[0].PriceDifference)
	assert.InDelta(t, 20.0, alerts[0].PercentDifference, 0.001)
}

func TestCheckAlerts_StaleQuoteExcluded(t *testing.T) {
	now := time.Now()
	product := OwnProduct{ID: "p1", Price: 100}
	quotes := []CompetitorQuote{
		{TargetID: "t10", Price: 50, CrawledAt: now.Add(-48 * time.Hour)},
	}

	assert.Empty(t, CheckAlerts(product, quotes, 24*time.Hour, now))

	// staleness check disabled
	assert.Len(t, CheckAlerts(product, quotes, 0, now), 1)
}

func TestCheckAlerts_ZeroPriceQuoteIgnored(t *testing.T) {
	now := time.Now()
	product := OwnProduct{ID: "p1", Price: 100}
	quotes := []CompetitorQuote{
		{TargetID: "t10", Price: 0, CrawledAt: now},
	}

	assert.Empty(t, CheckAlerts(product, quotes, 24*time.Hour, now))
}

func TestSortAlerts_LargestDifferenceFirst(t *testing.T) {
	alerts := []Alert{
		{PriceDifference: 5},
		{PriceDifference: 50},
		{PriceDifference: 20},
	}

	SortAlerts(alerts)

	assert.Equal(t, float64(50), alerts[0].PriceDifference)
	assert.Equal(t, float64(20), alerts[1].PriceDifference)
	assert.Equal(t, float64(5), alerts[2].PriceDifference)
}
