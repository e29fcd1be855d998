package warehouse

import (
	"math"

	"github.com/onurkisa/eurozone-ecommerce-sql-data-warehouse/internal/transform"
)

// AmountTolerance is the absolute tolerance used when comparing a reported
// monetary amount against its recalculation.
const AmountTolerance = 0.01

func orderDetailSpec() transform.Spec {
	key := []string{"order_detail_id", "order_id"}
	return transform.Spec{
		Name:   "order_details",
		Source: "order_details",
		RawColumns: []string{
			"order_detail_id", "order_id", "product_id", "quantity",
			"unit_price", "discount_amount", "sales_amount", RawLoadColumn,
		},
		Rules: map[string]transform.FieldRule{
			"order_detail_id": keyRule(),
			"order_id":        keyRule(),
			"product_id":      keyRule(),
			"quantity":        countRule(),
			"unit_price":      moneyRule(),
			"discount_amount": moneyRule(),
			"sales_amount":    moneyRule(),
			RawLoadColumn:     tsRule(),
		},
		NaturalKey:     key,
		RankBy:         RawLoadColumn,
		DerivedColumns: []string{"sales_amount_calc", "sales_match_flag"},
		Derive:         deriveOrderDetail,
		Required:       []string{"product_id"},
		Refs: []transform.ForeignKey{
			{Columns: []string{"order_id"}, Parent: "orders"},
			{Columns: []string{"product_id"}, Parent: "products"},
		},
		Table: silverTable(TableOrderDetails, key,
			col("order_detail_id", typeKey),
			col("order_id", typeKey),
			col("product_id", typeKey),
			col("quantity", typeInt),
			col("unit_price", typeMoney),
			col("discount_amount", typeMoney),
			col("sales_amount", typeMoney),
			col("sales_amount_calc", typeMoney),
			col("sales_match_flag", typeBool),
		),
	}
}

// deriveOrderDetail recomputes the line amount and flags a mismatch
// against the reported amount. Mismatches are reporting signals for the
// quality scan, never load filters.
func deriveOrderDetail(r transform.Row, _ transform.PrepareContext) {
	qty, okQ := r.Int("quantity")
	price, okP := r.Float("unit_price")
	if !okQ || !okP {
		return
	}
	discount, _ := r.Float("discount_amount")

	calc := float64(qty)*price - discount
	r.Set("sales_amount_calc", calc)

	if reported, ok := r.Float("sales_amount"); ok {
		r.Set("sales_match_flag", math.Abs(calc-reported) <= AmountTolerance)
	}
}
