package warehouse

import (
	"time"

	"github.com/onurkisa/eurozone-ecommerce-sql-data-warehouse/internal/transform"
)

// Shipment and delivery status domains.
var (
	shipmentStatuses = []string{"PREPARING", "SHIPPED", "IN_TRANSIT", "DELIVERED", "RETURNED", "LOST", "FAILED"}
	deliveryStatuses = []string{"PENDING", "IN_TRANSIT", "DELIVERED", "DELAYED", "FAILED", "RETURNED"}
)

// validStatusPairs is the allow-list of coherent (shipment_status,
// delivery_status) combinations. Anything outside it publishes with
// valid_status_flag=false and is picked up by the quality scan.
var validStatusPairs = map[[2]string]struct{}{
	{"PREPARING", "PENDING"}:     {},
	{"SHIPPED", "PENDING"}:       {},
	{"SHIPPED", "IN_TRANSIT"}:    {},
	{"IN_TRANSIT", "IN_TRANSIT"}: {},
	{"IN_TRANSIT", "DELAYED"}:    {},
	{"DELIVERED", "DELIVERED"}:   {},
	{"DELIVERED", "DELAYED"}:     {},
	{"RETURNED", "RETURNED"}:     {},
	{"LOST", "FAILED"}:           {},
	{"FAILED", "FAILED"}:         {},
}

// DelayThresholdDays marks a delivery as delayed even when its status
// never said so.
const DelayThresholdDays = 7

func shipmentSpec() transform.Spec {
	return transform.Spec{
		Name:   "shipments",
		Source: "shipments",
		RawColumns: []string{
			"shipment_id", "order_id", "shipment_company_id",
			"shipment_date", "delivery_date", "shipment_status",
			"delivery_status", RawLoadColumn,
		},
		Rules: map[string]transform.FieldRule{
			"shipment_id":         keyRule(),
			"order_id":            keyRule(),
			"shipment_company_id": keyRule(),
			"shipment_date":       dateRule(),
			"delivery_date":       dateRule(),
			"shipment_status":     enumRule(shipmentStatuses...),
			"delivery_status":     enumRule(deliveryStatuses...),
			RawLoadColumn:         tsRule(),
		},
		NaturalKey: []string{"shipment_id"},
		RankBy:     RawLoadColumn,
		DerivedColumns: []string{
			"transit_days", "is_delayed", "is_failed", "is_lost",
			"is_returned", "valid_status_flag",
		},
		Derive:   deriveShipment,
		Required: []string{"order_id", "shipment_company_id"},
		Refs: []transform.ForeignKey{
			{Columns: []string{"order_id"}, Parent: "orders"},
			{Columns: []string{"shipment_company_id"}, Parent: "shipment_companies"},
		},
		Table: silverTable(TableShipments, []string{"shipment_id"},
			col("shipment_id", typeKey),
			col("order_id", typeKey),
			col("shipment_company_id", typeKey),
			col("shipment_date", typeDate),
			col("delivery_date", typeDate),
			col("shipment_status", typeKey),
			col("delivery_status", typeKey),
			col("transit_days", typeInt),
			col("is_delayed", typeBool),
			col("is_failed", typeBool),
			col("is_lost", typeBool),
			col("is_returned", typeBool),
			col("valid_status_flag", typeBool),
		),
	}
}

func deriveShipment(r transform.Row, _ transform.PrepareContext) {
	shipStatus, _ := r.Str("shipment_status")
	delivStatus, _ := r.Str("delivery_status")

	var transit int64 = -1
	if shipped, okS := r.Time("shipment_date"); okS {
		if delivered, okD := r.Time("delivery_date"); okD {
			days := int64(delivered.Sub(shipped) / (24 * time.Hour))
			// Delivery before shipment is incoherent; leave transit null.
			if days >= 0 {
				transit = days
				r.Set("transit_days", days)
			}
		}
	}

	r.Set("is_delayed", delivStatus == "DELAYED" || transit > DelayThresholdDays)
	r.Set("is_failed", shipStatus == "FAILED" || delivStatus == "FAILED")
	r.Set("is_lost", shipStatus == "LOST")
	r.Set("is_returned", shipStatus == "RETURNED" || delivStatus == "RETURNED")

	_, valid := validStatusPairs[[2]string{shipStatus, delivStatus}]
	r.Set("valid_status_flag", valid)
}
