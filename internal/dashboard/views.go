package dashboard

import (
	"strings"

	"github.com/kjannette/watchtower-backend/internal/models"
	"github.com/kjannette/watchtower-backend/internal/report"
)

type MarketsView struct {
	Filter  string                `json:"filter"`
	Total   int                   `json:"total"`
	Count   int                   `json:"count"`
	Markets []models.MarketRecord `json:"markets"`
}

type StatsView struct {
	report.Summary
	AvgEdgeDisplay string         `json:"avgEdgeDisplay"`
	FilterCounts   map[string]int `json:"filterCounts"`
	Snapshot       *Snapshot      `json:"snapshot"`
}

type ChartsView struct {
	Recommendations []report.Slice     `json:"recommendations"`
	EdgeBuckets     []report.Bucket    `json:"edgeBuckets"`
	Confidence      []report.Bucket    `json:"confidenceBuckets"`
	TopMarkets      []report.TopMarket `json:"topMarkets"`
}

// ValidFilter reports whether filter names "all" or a known category.
func ValidFilter(filter string) bool {
	if filter == "" || strings.EqualFold(filter, report.FilterAll) {
		return true
	}
	_, ok := report.ParseCategory(filter)
	return ok
}

func Markets(snap *Snapshot, filter string) MarketsView {
	if filter == "" {
		filter = report.FilterAll
	}
	selected := report.Filter(snap.Records, filter)
	return MarketsView{
		Filter:  filter,
		Total:   len(snap.Records),
		Count:   len(selected),
		Markets: selected,
	}
}

func Stats(snap *Snapshot) StatsView {
	s := report.Summarize(snap.Records)
	return StatsView{
		Summary:        s,
		AvgEdgeDisplay: report.FormatPercent(s.AvgEdge),
		FilterCounts:   report.CategoryCounts(snap.Records),
		Snapshot:       snap,
	}
}

func Charts(snap *Snapshot) ChartsView {
	return ChartsView{
		Recommendations: report.RecommendationDistribution(snap.Records),
		EdgeBuckets:     report.EdgeHistogram(snap.Records),
		Confidence:      report.ConfidenceHistogram(snap.Records),
		TopMarkets:      report.TopMarketsChart(snap.Records, report.TopN),
	}
}

// FindByRank returns the first record with the given rank.
func FindByRank(snap *Snapshot, rank int) (models.MarketRecord, bool) {
	for _, m := range snap.Records {
		if m.Rank == rank {
			return m, true
		}
	}
	return models.MarketRecord{}, false
}
