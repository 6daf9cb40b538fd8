package models

// MarketRecord is one row of an opportunities report.
type MarketRecord struct {
	Rank            int     `json:"Rank"`
	Platform        string  `json:"Platform"`
	Question        string  `json:"Market_Question"`
	URL             string  `json:"Market_URL"`
	MarketPrice     float64 `json:"Market_Price"`
	ModelEstimate   float64 `json:"Model_Estimate"`
	Edge            float64 `json:"Edge"`
	AlphaScore      float64 `json:"Alpha_Score"`
	Confidence      float64 `json:"Confidence"`
	KellyFraction   float64 `json:"Kelly_Fraction"`
	Recommendation  string  `json:"Recommendation"`
	MentionCount    int     `json:"Num_Prob_Mentions"`
	ArticleCount    int     `json:"Num_Articles"`
	HoursUntilClose float64 `json:"Hours_Until_Close"`
	Validated       string  `json:"Validated"`
}
