package warehouse

import (
	"time"

	"github.com/onurkisa/eurozone-ecommerce-sql-data-warehouse/internal/transform"
)

// Price tiers relative to the run's average unit price.
const (
	TierPremium  = "PREMIUM"  // >= 1.5x average
	TierStandard = "STANDARD" // >= 0.75x average
	TierBudget   = "BUDGET"
)

func productSpec() transform.Spec {
	return transform.Spec{
		Name:   "products",
		Source: "products",
		RawColumns: []string{
			"product_id", "product_name", "category", "unit_price",
			"cost", "rating", "review_count", RawLoadColumn,
		},
		Rules: map[string]transform.FieldRule{
			"product_id":   keyRule(),
			"product_name": textRule(),
			"category":     upperRule(),
			"unit_price":   moneyRule(),
			"cost":         moneyRule(),
			"rating": {
				Kind: transform.RuleFloat,
				Min:  transform.Bound(0),
				Max:  transform.Bound(5),
			},
			"review_count": countRule(),
			RawLoadColumn:  tsRule(),
		},
		NaturalKey: []string{"product_id"},
		RankBy:     RawLoadColumn,
		DerivedColumns: []string{
			"profit_amount", "profit_margin", "price_tier",
		},
		Prepare: productPrepare,
		Derive:  deriveProduct,
		Table: silverTable(TableProducts, []string{"product_id"},
			col("product_id", typeKey),
			col("product_name", typeText),
			col("category", typeKey),
			col("unit_price", typeMoney),
			col("cost", typeMoney),
			col("rating", typeMoney),
			col("review_count", typeInt),
			col("profit_amount", typeMoney),
			col("profit_margin", typeMoney),
			col("price_tier", typeKey),
		),
	}
}

// productPrepare computes the average unit price across the deduplicated
// dataset. The tiering in deriveProduct stays a pure function of the row
// given that constant.
func productPrepare(ds *transform.Dataset, _ time.Time) transform.PrepareContext {
	var sum float64
	var n int
	for i := 0; i < ds.Len(); i++ {
		if p, ok := ds.Row(i).Float("unit_price"); ok {
			sum += p
			n++
		}
	}
	pc := transform.PrepareContext{}
	if n > 0 {
		pc["avg_unit_price"] = sum / float64(n)
	}
	return pc
}

func deriveProduct(r transform.Row, pc transform.PrepareContext) {
	price, hasPrice := r.Float("unit_price")
	cost, hasCost := r.Float("cost")

	if hasPrice && hasCost {
		profit := price - cost
		r.Set("profit_amount", profit)
		if price > 0 {
			r.Set("profit_margin", profit/price)
		}
	}

	avg, hasAvg := pc["avg_unit_price"].(float64)
	if hasPrice && hasAvg && avg > 0 {
		switch {
		case price >= 1.5*avg:
			r.Set("price_tier", TierPremium)
		case price >= 0.75*avg:
			r.Set("price_tier", TierStandard)
		default:
			r.Set("price_tier", TierBudget)
		}
	}
}
