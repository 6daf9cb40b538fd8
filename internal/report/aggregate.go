package report

import (
	"math"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/kjannette/watchtower-backend/internal/models"
)

// FilterAll selects every record.
const FilterAll = "all"

// TopN is the size of the top-markets chart.
const TopN = 10

// HighConfidenceThreshold is exclusive: confidence must be strictly greater.
const HighConfidenceThreshold = 0.6

// Bucket is one bar of a histogram.
type Bucket struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

type Summary struct {
	TotalMarkets   int     `json:"totalMarkets"`
	AvgEdge        float64 `json:"avgEdge"`
	HighConfidence int     `json:"highConfidence"`
	StrongBuys     int     `json:"strongBuys"`
}

// Slice is one segment of the recommendation distribution chart.
type Slice struct {
	Name     string `json:"name"`
	FullName string `json:"fullName"`
	Value    int    `json:"value"`
}

// TopMarket is one row of the top-markets-by-alpha chart, in percent.
type TopMarket struct {
	Rank     int     `json:"rank"`
	Question string  `json:"question"`
	Alpha    float64 `json:"alpha"`
	Edge     float64 `json:"edge"`
}

// CategoryCounts counts records per category name. Every category is present,
// and the "all" entry holds the total.
func CategoryCounts(records []models.MarketRecord) map[string]int {
	counts := make(map[string]int, len(Categories)+1)
	for _, c := range Categories {
		counts[c.String()] = 0
	}
	for i := range records {
		counts[Classify(records[i].Recommendation).String()]++
	}
	counts[FilterAll] = len(records)
	return counts
}

var (
	edgeLabels       = []string{"0-10%", "10-20%", "20-30%", "30-40%", "40%+"}
	edgeBounds       = []float64{10, 20, 30, 40}
	confidenceLabels = []string{"0-20%", "20-40%", "40-60%", "60-80%", "80-100%"}
	confidenceBounds = []float64{20, 40, 60, 80}
)

// EdgeHistogram buckets edge in percentage points. There is no lower bound:
// a negative edge lands in the first bucket.
func EdgeHistogram(records []models.MarketRecord) []Bucket {
	return histogram(records, edgeLabels, edgeBounds, func(m *models.MarketRecord) float64 { return m.Edge })
}

// ConfidenceHistogram buckets confidence in percentage points, same rules as EdgeHistogram.
func ConfidenceHistogram(records []models.MarketRecord) []Bucket {
	return histogram(records, confidenceLabels, confidenceBounds, func(m *models.MarketRecord) float64 { return m.Confidence })
}

func histogram(records []models.MarketRecord, labels []string, bounds []float64, value func(*models.MarketRecord) float64) []Bucket {
	out := make([]Bucket, len(labels))
	for i, l := range labels {
		out[i].Label = l
	}
	for i := range records {
		out[bucketIndex(value(&records[i])*100, bounds)].Count++
	}
	return out
}

// bucketIndex walks a less-than chain; anything failing every comparison
// (including NaN) goes to the last bucket.
func bucketIndex(pct float64, bounds []float64) int {
	for i, b := range bounds {
		if pct < b {
			return i
		}
	}
	return len(bounds)
}

// TopByAlpha returns up to n records with the highest alpha score. Ties keep
// their original order.
func TopByAlpha(records []models.MarketRecord, n int) []models.MarketRecord {
	sorted := slices.Clone(records)
	slices.SortStableFunc(sorted, func(a, b models.MarketRecord) int {
		switch {
		case a.AlphaScore > b.AlphaScore:
			return -1
		case a.AlphaScore < b.AlphaScore:
			return 1
		}
		return 0
	})
	if n < 0 {
		n = 0
	}
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// Summarize computes the dashboard stat cards.
func Summarize(records []models.MarketRecord) Summary {
	s := Summary{TotalMarkets: len(records)}
	var sum float64
	for i := range records {
		m := &records[i]
		sum += m.Edge
		if m.Confidence > HighConfidenceThreshold {
			s.HighConfidence++
		}
		if Classify(m.Recommendation).IsStrongBuy() {
			s.StrongBuys++
		}
	}
	if s.TotalMarkets > 0 {
		s.AvgEdge = sum / float64(s.TotalMarkets)
	}
	if math.IsNaN(s.AvgEdge) {
		s.AvgEdge = 0
	}
	return s
}

// Filter returns the records whose category matches filter. FilterAll (or an
// empty filter) returns the input unchanged; an unknown name matches nothing.
func Filter(records []models.MarketRecord, filter string) []models.MarketRecord {
	if filter == "" || strings.EqualFold(filter, FilterAll) {
		return records
	}
	want, ok := ParseCategory(filter)
	if !ok {
		return []models.MarketRecord{}
	}
	out := make([]models.MarketRecord, 0, len(records))
	for _, m := range records {
		if Classify(m.Recommendation) == want {
			out = append(out, m)
		}
	}
	return out
}

// RecommendationDistribution lists the categories present in records, in
// order of first appearance.
func RecommendationDistribution(records []models.MarketRecord) []Slice {
	var out []Slice
	index := make(map[Category]int)
	for i := range records {
		c := Classify(records[i].Recommendation)
		if j, ok := index[c]; ok {
			out[j].Value++
			continue
		}
		index[c] = len(out)
		out = append(out, Slice{Name: shortLabel(c.String()), FullName: c.String(), Value: 1})
	}
	if out == nil {
		out = []Slice{}
	}
	return out
}

func shortLabel(name string) string {
	name = strings.Replace(name, "STRONG BUY ", "", 1)
	return strings.Replace(name, "BUY ", "", 1)
}

// TopMarketsChart is TopByAlpha shaped for the bar chart.
func TopMarketsChart(records []models.MarketRecord, n int) []TopMarket {
	top := TopByAlpha(records, n)
	out := make([]TopMarket, len(top))
	for i, m := range top {
		out[i] = TopMarket{
			Rank:     m.Rank,
			Question: truncate(m.Question, 30) + "...",
			Alpha:    roundTenth(m.AlphaScore * 100),
			Edge:     roundTenth(m.Edge * 100),
		}
	}
	return out
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}
