package warehouse

import (
	"github.com/onurkisa/eurozone-ecommerce-sql-data-warehouse/internal/transform"
)

// Final order statuses.
const (
	OrderCompleted = "COMPLETED"
	OrderReturned  = "RETURNED"
	OrderCancelled = "CANCELLED"
)

func orderSpec() transform.Spec {
	return transform.Spec{
		Name:   "orders",
		Source: "orders",
		RawColumns: []string{
			"order_id", "customer_id", "order_date", "order_time",
			"shipping_address_id", "shipment_company_id", "total_price",
			"order_status", "is_cancelled", "is_returned", "return_reason",
			"country_code", RawLoadColumn,
		},
		Rules: map[string]transform.FieldRule{
			"order_id":            keyRule(),
			"customer_id":         keyRule(),
			"order_date":          dateRule(),
			"order_time":          textRule(),
			"shipping_address_id": keyRule(),
			"shipment_company_id": keyRule(),
			"total_price":         moneyRule(),
			"order_status":        enumRule(OrderCompleted, OrderReturned, OrderCancelled),
			"is_cancelled":        boolRule(),
			"is_returned":         boolRule(),
			"return_reason":       textRule(),
			"country_code":        countryRule(),
			RawLoadColumn:         tsRule(),
		},
		NaturalKey:     []string{"order_id"},
		RankBy:         RawLoadColumn,
		DerivedColumns: []string{"order_status_fnl", "return_reason_fnl"},
		Derive:         deriveOrder,
		// A null final status means the raw signals contradicted each other;
		// such rows never publish.
		Required: []string{"customer_id", "shipping_address_id", "shipment_company_id", "order_status_fnl"},
		Refs: []transform.ForeignKey{
			{Columns: []string{"customer_id"}, Parent: "customers"},
			{Columns: []string{"shipping_address_id"}, Parent: "addresses"},
			{Columns: []string{"shipment_company_id"}, Parent: "shipment_companies"},
		},
		Table: silverTable(TableOrders, []string{"order_id"},
			col("order_id", typeKey),
			col("customer_id", typeKey),
			col("order_date", typeDate),
			col("order_time", typeKey),
			col("shipping_address_id", typeKey),
			col("shipment_company_id", typeKey),
			col("total_price", typeMoney),
			col("order_status_fnl", typeKey),
			col("is_cancelled", typeBool),
			col("is_returned", typeBool),
			col("return_reason_fnl", typeText),
			col("country_code", typeKey),
		),
	}
}

// deriveOrder reconciles the status text with the two raw flags. Only four
// signal combinations are coherent; everything else leaves the final
// status null.
//
//	COMPLETED / false / false -> COMPLETED
//	COMPLETED / false / true  -> RETURNED
//	RETURNED  / false / true  -> RETURNED
//	CANCELLED / true  / false -> CANCELLED
//
// The return reason survives only when the final status says the order
// actually came back or was cancelled.
func deriveOrder(r transform.Row, _ transform.PrepareContext) {
	status, _ := r.Str("order_status")
	cancelled, okC := r.Bool("is_cancelled")
	returned, okR := r.Bool("is_returned")
	if !okC || !okR {
		return
	}

	var fnl string
	switch {
	case status == OrderCompleted && !cancelled && !returned:
		fnl = OrderCompleted
	case status == OrderCompleted && !cancelled && returned:
		fnl = OrderReturned
	case status == OrderReturned && !cancelled && returned:
		fnl = OrderReturned
	case status == OrderCancelled && cancelled && !returned:
		fnl = OrderCancelled
	default:
		return
	}
	r.Set("order_status_fnl", fnl)

	if fnl == OrderReturned || fnl == OrderCancelled {
		if reason, ok := r.Str("return_reason"); ok {
			r.Set("return_reason_fnl", reason)
		}
	}
}
