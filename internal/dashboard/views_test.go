package dashboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjannette/watchtower-backend/internal/models"
)

func mixed() *Snapshot {
	return &Snapshot{Source: SourceUpload, Records: []models.MarketRecord{
		{Rank: 1, Question: "A", Edge: 0.2, AlphaScore: 0.3, Confidence: 0.9, Recommendation: "STRONG BUY YES"},
		{Rank: 2, Question: "B", Edge: 0.1, AlphaScore: 0.1, Confidence: 0.4, Recommendation: "BUY NO"},
		{Rank: 3, Question: "C", Edge: 0.0, AlphaScore: 0.2, Confidence: 0.5, Recommendation: "BUY NO"},
	}}
}

func TestValidFilter(t *testing.T) {
	assert.True(t, ValidFilter(""))
	assert.True(t, ValidFilter("all"))
	assert.True(t, ValidFilter("buy_no"))
	assert.False(t, ValidFilter("sell"))
}

func TestMarkets(t *testing.T) {
	v := Markets(mixed(), "BUY NO")
	assert.Equal(t, 3, v.Total)
	assert.Equal(t, 2, v.Count)
	assert.Equal(t, "BUY NO", v.Filter)

	v = Markets(mixed(), "")
	assert.Equal(t, "all", v.Filter)
	assert.Equal(t, 3, v.Count)
}

func TestStats(t *testing.T) {
	v := Stats(mixed())
	assert.Equal(t, 3, v.TotalMarkets)
	assert.Equal(t, 1, v.StrongBuys)
	assert.Equal(t, 1, v.HighConfidence)
	assert.Equal(t, "10.0%", v.AvgEdgeDisplay)
	assert.Equal(t, 2, v.FilterCounts["BUY NO"])
	assert.Equal(t, 3, v.FilterCounts["all"])
	assert.Equal(t, SourceUpload, v.Snapshot.Source)
}

func TestCharts(t *testing.T) {
	v := Charts(mixed())
	require.Len(t, v.Recommendations, 2)
	assert.Equal(t, 2, v.Recommendations[1].Value)
	require.Len(t, v.TopMarkets, 3)
	assert.Equal(t, 1, v.TopMarkets[0].Rank)
	assert.Equal(t, 3, v.TopMarkets[1].Rank)
	assert.Len(t, v.EdgeBuckets, 5)
	assert.Len(t, v.Confidence, 5)
}

func TestFindByRank(t *testing.T) {
	m, ok := FindByRank(mixed(), 2)
	require.True(t, ok)
	assert.Equal(t, "B", m.Question)

	_, ok = FindByRank(mixed(), 9)
	assert.False(t, ok)
}
