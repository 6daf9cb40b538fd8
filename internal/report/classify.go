package report

import "strings"

// Category is the closed set of recommendation labels shown on the dashboard.
type Category int

const (
	Unknown Category = iota
	StrongBuyYes
	BuyYes
	StrongBuyNo
	BuyNo
	Moderate
	Weak
)

// Categories lists every category in display order.
var Categories = []Category{StrongBuyYes, BuyYes, StrongBuyNo, BuyNo, Moderate, Weak, Unknown}

var categoryNames = map[Category]string{
	StrongBuyYes: "STRONG BUY YES",
	BuyYes:       "BUY YES",
	StrongBuyNo:  "STRONG BUY NO",
	BuyNo:        "BUY NO",
	Moderate:     "MODERATE",
	Weak:         "WEAK",
	Unknown:      "UNKNOWN",
}

func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return categoryNames[Unknown]
}

// IsStrongBuy reports whether the category is one of the "STRONG BUY" labels.
func (c Category) IsStrongBuy() bool {
	return strings.Contains(c.String(), "STRONG BUY")
}

// classification is evaluated top to bottom; the first contained phrase wins.
// The STRONG variants must precede their plain counterparts.
var classification = []struct {
	phrase   string
	category Category
}{
	{"STRONG BUY YES", StrongBuyYes},
	{"BUY YES", BuyYes},
	{"STRONG BUY NO", StrongBuyNo},
	{"BUY NO", BuyNo},
	{"MODERATE", Moderate},
	{"WEAK", Weak},
}

// Classify maps free-text recommendation to a Category.
func Classify(recommendation string) Category {
	rec := strings.ToUpper(recommendation)
	if rec == "" {
		return Unknown
	}
	for _, c := range classification {
		if strings.Contains(rec, c.phrase) {
			return c.category
		}
	}
	return Unknown
}

// ParseCategory resolves a category name as used in filter parameters.
// Matching ignores case and accepts underscores or dashes in place of spaces.
func ParseCategory(name string) (Category, bool) {
	norm := strings.ToUpper(strings.TrimSpace(name))
	norm = strings.NewReplacer("_", " ", "-", " ").Replace(norm)
	norm = strings.Join(strings.Fields(norm), " ")
	for _, c := range Categories {
		if c.String() == norm {
			return c, true
		}
	}
	return Unknown, false
}
