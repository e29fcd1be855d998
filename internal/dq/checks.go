package dq

import (
	"strings"

	"github.com/onurkisa/eurozone-ecommerce-sql-data-warehouse/internal/transform"
	"github.com/onurkisa/eurozone-ecommerce-sql-data-warehouse/internal/warehouse"
)

// Catalog returns the full check set for the warehouse. Domains and
// formats are restated here rather than shared with the transform rules:
// the scan re-validates the published data independently, so a defect in
// the transform cannot silently blind the matching check.
func Catalog() []Check {
	var checks []Check
	checks = append(checks, customerChecks()...)
	checks = append(checks, addressChecks()...)
	checks = append(checks, paymentChannelChecks()...)
	checks = append(checks, shipmentCompanyChecks()...)
	checks = append(checks, productChecks()...)
	checks = append(checks, productPriceChecks()...)
	checks = append(checks, orderChecks()...)
	checks = append(checks, orderDetailChecks()...)
	checks = append(checks, invoiceChecks()...)
	checks = append(checks, invoiceDetailChecks()...)
	checks = append(checks, paymentChecks()...)
	checks = append(checks, shipmentChecks()...)
	return checks
}

func bound(f float64) *float64 { return &f }

func validEmail(s string) bool {
	at := strings.Index(s, "@")
	if at < 1 || at == len(s)-1 {
		return false
	}
	domain := s[at+1:]
	dot := strings.LastIndex(domain, ".")
	return dot > 0 && dot < len(domain)-1 && !strings.Contains(domain, "@")
}

func validPostal(s string) bool {
	if len(s) < 3 || len(s) > 10 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z':
		case c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
		case c == '-' || c == ' ':
		default:
			return false
		}
	}
	return true
}

func validCountry(s string) bool {
	if s == "GLOBAL" {
		return true
	}
	if len(s) != 2 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return false
		}
	}
	return true
}

func customerChecks() []Check {
	t := warehouse.TableCustomers
	key := []string{"customer_id"}
	return []Check{
		DuplicateKeyCheck(t, key),
		NullCheck(t, "email", key),
		FormatCheck(t, "email", "email address", key, validEmail),
		FormatCheck(t, "country_code", "country code", key, validCountry),
		DomainCheck(t, "gender", key, "M", "F", "N/A"),
		DomainCheck(t, "customer_segment", key,
			warehouse.SegmentFraudRisk, warehouse.SegmentLoyal, warehouse.SegmentStandard),
		RangeCheck(t, "age", key, bound(18), bound(120)),
		RowCheck(t, "customer_segment", CategoryBusiness,
			"fraud-suspect customer holds LOYAL segment", key,
			func(row transform.Row) (bool, string, string) {
				fraud, _ := row.Bool("is_fraud_suspect")
				seg, _ := row.Str("customer_segment")
				return fraud && seg == warehouse.SegmentLoyal, seg, ""
			}),
	}
}

func addressChecks() []Check {
	t := warehouse.TableAddresses
	key := []string{"address_id"}
	return []Check{
		DuplicateKeyCheck(t, key),
		NullCheck(t, "customer_id", key),
		ReferentialCheck(t, []string{"customer_id"}, key,
			warehouse.TableCustomers, []string{"customer_id"}),
		FormatCheck(t, "postal_code", "postal code", key, validPostal),
		FormatCheck(t, "country_code", "country code", key, validCountry),
	}
}

func paymentChannelChecks() []Check {
	t := warehouse.TablePaymentChannels
	key := []string{"payment_channel_id"}
	return []Check{
		DuplicateKeyCheck(t, key),
		NullCheck(t, "channel_type", key),
		RowCheck(t, "", CategoryBusiness,
			"payment channel has no true category flag", key,
			func(row transform.Row) (bool, string, string) {
				card, _ := row.Bool("is_card")
				wallet, _ := row.Bool("is_wallet")
				bank, _ := row.Bool("is_banktransfer")
				return !card && !wallet && !bank, "", ""
			}),
	}
}

func shipmentCompanyChecks() []Check {
	t := warehouse.TableShipmentCompanies
	key := []string{"shipment_company_id"}
	return []Check{
		DuplicateKeyCheck(t, key),
		DomainCheck(t, "company_type", key,
			warehouse.CompanyLocal, warehouse.CompanyRegional, warehouse.CompanyGlobal),
		RangeCheck(t, "operating_country_count", key, bound(1), nil),
		RowCheck(t, "", CategoryBusiness,
			"shipment company has no service capability flag", key,
			func(row transform.Row) (bool, string, string) {
				express, _ := row.Bool("supports_express")
				standard, _ := row.Bool("supports_standard")
				intl, _ := row.Bool("supports_international")
				return !express && !standard && !intl, "", ""
			}),
	}
}

func productChecks() []Check {
	t := warehouse.TableProducts
	key := []string{"product_id"}
	return []Check{
		DuplicateKeyCheck(t, key),
		NullCheck(t, "unit_price", key),
		RangeCheck(t, "unit_price", key, bound(0), nil),
		RangeCheck(t, "rating", key, bound(0), bound(5)),
		RangeCheck(t, "review_count", key, bound(0), nil),
		DomainCheck(t, "price_tier", key,
			warehouse.TierPremium, warehouse.TierStandard, warehouse.TierBudget),
		RowCheck(t, "cost", CategoryConsistency,
			"cost exceeds unit price", key,
			func(row transform.Row) (bool, string, string) {
				cost, okC := row.Float("cost")
				price, okP := row.Float("unit_price")
				return okC && okP && cost > price, formatValue(cost), ""
			}),
	}
}

func productPriceChecks() []Check {
	t := warehouse.TableProductPrices
	key := []string{"product_id", "country_code", "price_type", "effective_date"}
	return []Check{
		DuplicateKeyCheck(t, key),
		ReferentialCheck(t, []string{"product_id"}, key,
			warehouse.TableProducts, []string{"product_id"}),
		RangeCheck(t, "local_price", key, bound(0), nil),
		DomainCheck(t, "price_type", key, "REGULAR", "PROMO", "CLEARANCE"),
		FutureDateCheck(t, "effective_date", key),
	}
}

func orderChecks() []Check {
	t := warehouse.TableOrders
	key := []string{"order_id"}
	return []Check{
		DuplicateKeyCheck(t, key),
		NullCheck(t, "order_status_fnl", key),
		DomainCheck(t, "order_status_fnl", key,
			warehouse.OrderCompleted, warehouse.OrderReturned, warehouse.OrderCancelled),
		ReferentialCheck(t, []string{"customer_id"}, key,
			warehouse.TableCustomers, []string{"customer_id"}),
		ReferentialCheck(t, []string{"shipping_address_id"}, key,
			warehouse.TableAddresses, []string{"address_id"}),
		ReferentialCheck(t, []string{"shipment_company_id"}, key,
			warehouse.TableShipmentCompanies, []string{"shipment_company_id"}),
		RangeCheck(t, "total_price", key, bound(0), nil),
		RowCheck(t, "return_reason_fnl", CategoryConsistency,
			"return reason present on a completed order", key,
			func(row transform.Row) (bool, string, string) {
				status, _ := row.Str("order_status_fnl")
				reason, hasReason := row.Str("return_reason_fnl")
				return hasReason && status == warehouse.OrderCompleted, reason, ""
			}),
	}
}

func orderDetailChecks() []Check {
	t := warehouse.TableOrderDetails
	key := []string{"order_detail_id", "order_id"}
	return []Check{
		DuplicateKeyCheck(t, key),
		ReferentialCheck(t, []string{"order_id"}, key,
			warehouse.TableOrders, []string{"order_id"}),
		ReferentialCheck(t, []string{"product_id"}, key,
			warehouse.TableProducts, []string{"product_id"}),
		RangeCheck(t, "quantity", key, bound(1), nil),
		RowCheck(t, "sales_match_flag", CategoryConsistency,
			"reported sales amount differs from recalculation", key,
			func(row transform.Row) (bool, string, string) {
				match, ok := row.Bool("sales_match_flag")
				value := formatValue(row.Any("sales_amount"))
				return ok && !match, value, ""
			}),
	}
}

func invoiceChecks() []Check {
	t := warehouse.TableInvoices
	key := []string{"invoice_id"}
	return []Check{
		DuplicateKeyCheck(t, key),
		ReferentialCheck(t, []string{"order_id"}, key,
			warehouse.TableOrders, []string{"order_id"}),
		RangeCheck(t, "final_amount", key, bound(0), nil),
		RowCheck(t, "invoice_correct_flag", CategoryConsistency,
			"final amount differs from unit price plus tax", key,
			func(row transform.Row) (bool, string, string) {
				correct, ok := row.Bool("invoice_correct_flag")
				value := formatValue(row.Any("final_amount"))
				return ok && !correct, value, ""
			}),
	}
}

func invoiceDetailChecks() []Check {
	t := warehouse.TableInvoiceDetails
	key := []string{"invoice_detail_id", "invoice_id", "product_id"}
	return []Check{
		DuplicateKeyCheck(t, key),
		ReferentialCheck(t, []string{"invoice_id"}, key,
			warehouse.TableInvoices, []string{"invoice_id"}),
		ReferentialCheck(t, []string{"product_id"}, key,
			warehouse.TableProducts, []string{"product_id"}),
		RangeCheck(t, "quantity", key, bound(1), nil),
		RowCheck(t, "tax_rate", CategoryConsistency,
			"tax rate outside the plausible band", key,
			func(row transform.Row) (bool, string, string) {
				rate, ok := row.Float("tax_rate")
				return ok && (rate < 0 || rate > 0.5), formatValue(rate), ""
			}),
	}
}

func paymentChecks() []Check {
	t := warehouse.TablePayments
	key := []string{"payment_id"}
	return []Check{
		DuplicateKeyCheck(t, key),
		ReferentialCheck(t, []string{"order_id"}, key,
			warehouse.TableOrders, []string{"order_id"}),
		ReferentialCheck(t, []string{"payment_channel_id"}, key,
			warehouse.TablePaymentChannels, []string{"payment_channel_id"}),
		DomainCheck(t, "transaction_status", key,
			"COMPLETED", "FAILED", "PROCESSING", "DISPUTED"),
		DomainCheck(t, "refund_status", key,
			"NONE", "REQUESTED", "PROCESSING", "COMPLETED", "REJECTED"),
		RangeCheck(t, "amount", key, bound(0), nil),
		RowCheck(t, "rule_violation", CategoryBusiness,
			"payment breaches a business rule", key,
			func(row transform.Row) (bool, string, string) {
				tag, ok := row.Str("rule_violation")
				return ok, tag, tag
			}),
		RowCheck(t, "is_refunded_fnl", CategoryConsistency,
			"refund flag set without a completed refund", key,
			func(row transform.Row) (bool, string, string) {
				refunded, _ := row.Bool("is_refunded_fnl")
				status, _ := row.Str("refund_status")
				return refunded && status != "COMPLETED", status, ""
			}),
	}
}

func shipmentChecks() []Check {
	t := warehouse.TableShipments
	key := []string{"shipment_id"}
	return []Check{
		DuplicateKeyCheck(t, key),
		ReferentialCheck(t, []string{"order_id"}, key,
			warehouse.TableOrders, []string{"order_id"}),
		ReferentialCheck(t, []string{"shipment_company_id"}, key,
			warehouse.TableShipmentCompanies, []string{"shipment_company_id"}),
		DomainCheck(t, "shipment_status", key,
			"PREPARING", "SHIPPED", "IN_TRANSIT", "DELIVERED", "RETURNED", "LOST", "FAILED"),
		DomainCheck(t, "delivery_status", key,
			"PENDING", "IN_TRANSIT", "DELIVERED", "DELAYED", "FAILED", "RETURNED"),
		RangeCheck(t, "transit_days", key, bound(0), bound(60)),
		RowCheck(t, "delivery_date", CategoryConsistency,
			"delivery precedes shipment", key,
			func(row transform.Row) (bool, string, string) {
				shipped, okS := row.Time("shipment_date")
				delivered, okD := row.Time("delivery_date")
				return okS && okD && delivered.Before(shipped), formatValue(delivered), ""
			}),
		RowCheck(t, "shipment_status", CategoryBusiness,
			"incoherent shipment and delivery status pair", key,
			func(row transform.Row) (bool, string, string) {
				valid, ok := row.Bool("valid_status_flag")
				ship, _ := row.Str("shipment_status")
				deliv, _ := row.Str("delivery_status")
				return ok && !valid, ship + "/" + deliv, ""
			}),
	}
}
