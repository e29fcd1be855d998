package warehouse

import (
	"github.com/onurkisa/eurozone-ecommerce-sql-data-warehouse/internal/transform"
)

func invoiceDetailSpec() transform.Spec {
	key := []string{"invoice_detail_id", "invoice_id", "product_id"}
	return transform.Spec{
		Name:   "invoice_details",
		Source: "invoice_details",
		RawColumns: []string{
			"invoice_detail_id", "invoice_id", "product_id", "quantity",
			"unit_price", "tax_amount", RawLoadColumn,
		},
		Rules: map[string]transform.FieldRule{
			"invoice_detail_id": keyRule(),
			"invoice_id":        keyRule(),
			"product_id":        keyRule(),
			"quantity":          countRule(),
			"unit_price":        moneyRule(),
			"tax_amount":        moneyRule(),
			RawLoadColumn:       tsRule(),
		},
		NaturalKey:     key,
		RankBy:         RawLoadColumn,
		DerivedColumns: []string{"line_total", "tax_rate"},
		Derive:         deriveInvoiceDetail,
		Refs: []transform.ForeignKey{
			{Columns: []string{"invoice_id"}, Parent: "invoices"},
			{Columns: []string{"product_id"}, Parent: "products"},
		},
		Table: silverTable(TableInvoiceDetails, key,
			col("invoice_detail_id", typeKey),
			col("invoice_id", typeKey),
			col("product_id", typeKey),
			col("quantity", typeInt),
			col("unit_price", typeMoney),
			col("tax_amount", typeMoney),
			col("line_total", typeMoney),
			col("tax_rate", typeMoney),
		),
	}
}

// deriveInvoiceDetail computes the line total and the effective tax rate.
// A non-positive base (zero quantity or price) leaves the rate null rather
// than dividing by zero.
func deriveInvoiceDetail(r transform.Row, _ transform.PrepareContext) {
	qty, okQ := r.Int("quantity")
	price, okP := r.Float("unit_price")
	tax, okT := r.Float("tax_amount")
	if !okQ || !okP || !okT {
		return
	}

	base := float64(qty) * price
	r.Set("line_total", base+tax)
	if base > 0 {
		r.Set("tax_rate", tax/base)
	}
}
