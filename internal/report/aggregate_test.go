package report

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjannette/watchtower-backend/internal/models"
)

func rec(rank int, edge, alpha, conf float64, recommendation string) models.MarketRecord {
	return models.MarketRecord{
		Rank:           rank,
		Question:       "Question " + strings.Repeat("x", rank),
		Edge:           edge,
		AlphaScore:     alpha,
		Confidence:     conf,
		Recommendation: recommendation,
	}
}

func sampleRecords() []models.MarketRecord {
	return []models.MarketRecord{
		rec(1, 0.15, 0.20, 0.8, "STRONG BUY YES"),
		rec(2, 0.05, 0.50, 0.5, "BUY NO"),
		rec(3, -0.05, 0.10, 0.61, "weak"),
		rec(4, 0.45, 0.50, 0.6, "STRONG BUY NO"),
		rec(5, 0.25, 0.05, 0.95, "hold"),
	}
}

func TestAggregates_Empty(t *testing.T) {
	var none []models.MarketRecord

	counts := CategoryCounts(none)
	for name, n := range counts {
		assert.Zero(t, n, name)
	}
	assert.Contains(t, counts, FilterAll)

	s := Summarize(none)
	assert.Equal(t, Summary{}, s)

	assert.Empty(t, TopByAlpha(none, TopN))
	assert.Empty(t, TopMarketsChart(none, TopN))
	assert.Empty(t, RecommendationDistribution(none))

	for _, b := range EdgeHistogram(none) {
		assert.Zero(t, b.Count)
	}
	for _, b := range ConfidenceHistogram(none) {
		assert.Zero(t, b.Count)
	}
}

func TestCategoryCounts(t *testing.T) {
	records := sampleRecords()
	counts := CategoryCounts(records)

	assert.Equal(t, 5, counts[FilterAll])
	assert.Equal(t, 1, counts["STRONG BUY YES"])
	assert.Equal(t, 1, counts["BUY NO"])
	assert.Equal(t, 1, counts["WEAK"])
	assert.Equal(t, 1, counts["UNKNOWN"])
	assert.Equal(t, 0, counts["MODERATE"])
	assert.Len(t, counts, len(Categories)+1)

	sum := 0
	for name, n := range counts {
		if name != FilterAll {
			sum += n
		}
	}
	assert.Equal(t, len(records), sum)

	for _, r := range records {
		assert.Contains(t, counts, Classify(r.Recommendation).String())
	}
}

func TestEdgeHistogram(t *testing.T) {
	h := EdgeHistogram(sampleRecords())
	require.Len(t, h, 5)

	labels := make([]string, len(h))
	for i, b := range h {
		labels[i] = b.Label
	}
	assert.Equal(t, []string{"0-10%", "10-20%", "20-30%", "30-40%", "40%+"}, labels)

	// 0.05 and -0.05 both land in the first bucket
	assert.Equal(t, 2, h[0].Count)
	assert.Equal(t, 1, h[1].Count)
	assert.Equal(t, 1, h[2].Count)
	assert.Equal(t, 0, h[3].Count)
	assert.Equal(t, 1, h[4].Count)
}

func TestEdgeHistogram_NegativeEdge(t *testing.T) {
	h := EdgeHistogram([]models.MarketRecord{rec(1, -0.05, 0, 0, "")})
	assert.Equal(t, 1, h[0].Count)
	assert.Equal(t, "0-10%", h[0].Label)
}

func TestConfidenceHistogram(t *testing.T) {
	h := ConfidenceHistogram(sampleRecords())
	require.Len(t, h, 5)
	assert.Equal(t, "80-100%", h[4].Label)

	// 0.5 → 40-60, 0.6 and 0.61 → 60-80, 0.8 and 0.95 → 80-100
	assert.Equal(t, 0, h[0].Count)
	assert.Equal(t, 0, h[1].Count)
	assert.Equal(t, 1, h[2].Count)
	assert.Equal(t, 2, h[3].Count)
	assert.Equal(t, 2, h[4].Count)
}

func TestTopByAlpha(t *testing.T) {
	records := sampleRecords()
	top := TopByAlpha(records, 3)
	require.Len(t, top, 3)

	// ties keep input order
	assert.Equal(t, 2, top[0].Rank)
	assert.Equal(t, 4, top[1].Rank)
	assert.Equal(t, 1, top[2].Rank)

	assert.Equal(t, 1, records[0].Rank, "input must not be reordered")
	assert.Len(t, TopByAlpha(records, 50), 5)
	assert.Empty(t, TopByAlpha(records, -1))
}

func TestSummarize(t *testing.T) {
	s := Summarize(sampleRecords())
	assert.Equal(t, 5, s.TotalMarkets)
	assert.InDelta(t, 0.17, s.AvgEdge, 1e-9)
	// 0.6 is not strictly greater than the threshold
	assert.Equal(t, 3, s.HighConfidence)
	assert.Equal(t, 2, s.StrongBuys)
}

func TestFilter(t *testing.T) {
	records := sampleRecords()

	assert.Len(t, Filter(records, FilterAll), 5)
	assert.Len(t, Filter(records, ""), 5)

	got := Filter(records, "strong_buy_no")
	require.Len(t, got, 1)
	assert.Equal(t, 4, got[0].Rank)

	got = Filter(records, "UNKNOWN")
	require.Len(t, got, 1)
	assert.Equal(t, 5, got[0].Rank)

	assert.Empty(t, Filter(records, "sell"))
}

func TestRecommendationDistribution(t *testing.T) {
	records := append(sampleRecords(), rec(6, 0.1, 0.1, 0.1, "STRONG BUY YES"))
	dist := RecommendationDistribution(records)
	require.Len(t, dist, 5)

	assert.Equal(t, Slice{Name: "YES", FullName: "STRONG BUY YES", Value: 2}, dist[0])
	assert.Equal(t, Slice{Name: "NO", FullName: "BUY NO", Value: 1}, dist[1])
	assert.Equal(t, Slice{Name: "WEAK", FullName: "WEAK", Value: 1}, dist[2])
	assert.Equal(t, Slice{Name: "NO", FullName: "STRONG BUY NO", Value: 1}, dist[3])
	assert.Equal(t, Slice{Name: "UNKNOWN", FullName: "UNKNOWN", Value: 1}, dist[4])
}

func TestTopMarketsChart(t *testing.T) {
	records := []models.MarketRecord{
		{Rank: 7, Question: "Will the long question be truncated at thirty runes?", AlphaScore: 0.1234, Edge: 0.0567},
		{Rank: 8, Question: "Short?", AlphaScore: 0.05, Edge: -0.01},
	}
	chart := TopMarketsChart(records, TopN)
	require.Len(t, chart, 2)

	assert.Equal(t, 7, chart[0].Rank)
	assert.Equal(t, "Will the long question be trun...", chart[0].Question)
	assert.InDelta(t, 12.3, chart[0].Alpha, 1e-9)
	assert.InDelta(t, 5.7, chart[0].Edge, 1e-9)

	assert.Equal(t, "Short?...", chart[1].Question)
	assert.InDelta(t, -1.0, chart[1].Edge, 1e-9)
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "15.3%", FormatPercent(0.153))
	assert.Equal(t, "-5.0%", FormatPercent(-0.05))
	assert.Equal(t, "12.0h", FormatHours(12))
	assert.Equal(t, "2.0 days", FormatHours(48))
	assert.Equal(t, "1.5 months", FormatHours(1080))
}
