package warehouse

import (
	"math"

	"github.com/onurkisa/eurozone-ecommerce-sql-data-warehouse/internal/transform"
)

func invoiceSpec() transform.Spec {
	return transform.Spec{
		Name:   "invoices",
		Source: "invoices",
		RawColumns: []string{
			"invoice_id", "order_id", "invoice_date", "unit_price",
			"tax_amount", "final_amount", RawLoadColumn,
		},
		Rules: map[string]transform.FieldRule{
			"invoice_id":   keyRule(),
			"order_id":     keyRule(),
			"invoice_date": dateRule(),
			"unit_price":   moneyRule(),
			"tax_amount":   moneyRule(),
			"final_amount": moneyRule(),
			RawLoadColumn:  tsRule(),
		},
		NaturalKey:     []string{"invoice_id"},
		RankBy:         RawLoadColumn,
		DerivedColumns: []string{"invoice_correct_flag"},
		Derive:         deriveInvoice,
		Required:       []string{"order_id"},
		Refs: []transform.ForeignKey{
			{Columns: []string{"order_id"}, Parent: "orders"},
		},
		Table: silverTable(TableInvoices, []string{"invoice_id"},
			col("invoice_id", typeKey),
			col("order_id", typeKey),
			col("invoice_date", typeDate),
			col("unit_price", typeMoney),
			col("tax_amount", typeMoney),
			col("final_amount", typeMoney),
			col("invoice_correct_flag", typeBool),
		),
	}
}

func deriveInvoice(r transform.Row, _ transform.PrepareContext) {
	price, okP := r.Float("unit_price")
	tax, okT := r.Float("tax_amount")
	final, okF := r.Float("final_amount")
	if !okP || !okT || !okF {
		return
	}
	r.Set("invoice_correct_flag", math.Abs(price+tax-final) <= AmountTolerance)
}
