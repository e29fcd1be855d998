package warehouse

import (
	"github.com/onurkisa/eurozone-ecommerce-sql-data-warehouse/internal/transform"
)

// Transaction, refund and payment status domains.
var (
	transactionStatuses = []string{"COMPLETED", "FAILED", "PROCESSING", "DISPUTED"}
	refundStatuses      = []string{"NONE", "REQUESTED", "PROCESSING", "COMPLETED", "REJECTED"}
	paymentStatuses     = []string{"PENDING", "COMPLETED", "CANCELLED"}
)

// Business-rule breach tags recorded on payments. Evaluated in order; the
// first match wins, and none of them ever excludes the payment from the
// validated store.
const (
	BR1RefundWithoutCompletion = "BR1: Refund completed without completed transaction"
	BR2FailedInvalidRefund     = "BR2: Failed payment with invalid refund_status"
	BR3RefundFlagMismatch      = "BR3: Refund flag mismatch"
	BR4FraudCompleted          = "BR4: Fraudulent payment marked completed"
	BR5ActiveOnCompleted       = "BR5: Processing or disputed transaction on completed payment"
)

func paymentSpec() transform.Spec {
	return transform.Spec{
		Name:   "payments",
		Source: "payments",
		RawColumns: []string{
			"payment_id", "order_id", "payment_channel_id", "amount",
			"payment_date", "payment_status", "transaction_status",
			"refund_status", "is_refunded", "is_fraud_flagged", RawLoadColumn,
		},
		Rules: map[string]transform.FieldRule{
			"payment_id":         keyRule(),
			"order_id":           keyRule(),
			"payment_channel_id": keyRule(),
			"amount":             moneyRule(),
			"payment_date":       dateRule(),
			"payment_status":     enumRule(paymentStatuses...),
			"transaction_status": enumRule(transactionStatuses...),
			"refund_status":      enumRule(refundStatuses...),
			"is_refunded":        boolRule(),
			"is_fraud_flagged":   boolRule(),
			RawLoadColumn:        tsRule(),
		},
		NaturalKey:     []string{"payment_id"},
		RankBy:         RawLoadColumn,
		DerivedColumns: []string{"is_refunded_fnl", "rule_violation"},
		Derive:         derivePayment,
		Required:       []string{"order_id", "payment_channel_id"},
		Refs: []transform.ForeignKey{
			{Columns: []string{"order_id"}, Parent: "orders"},
			{Columns: []string{"payment_channel_id"}, Parent: "payment_channels"},
		},
		Table: silverTable(TablePayments, []string{"payment_id"},
			col("payment_id", typeKey),
			col("order_id", typeKey),
			col("payment_channel_id", typeKey),
			col("amount", typeMoney),
			col("payment_date", typeDate),
			col("payment_status", typeKey),
			col("transaction_status", typeKey),
			col("refund_status", typeKey),
			col("is_refunded_fnl", typeBool),
			col("is_fraud_flagged", typeBool),
			col("rule_violation", typeText),
		),
	}
}

func derivePayment(r transform.Row, _ transform.PrepareContext) {
	txn, _ := r.Str("transaction_status")
	refund, _ := r.Str("refund_status")
	payment, _ := r.Str("payment_status")
	rawRefunded, hasRawRefunded := r.Bool("is_refunded")
	fraud, _ := r.Bool("is_fraud_flagged")

	refunded := refund == "COMPLETED"
	r.Set("is_refunded_fnl", refunded)

	switch {
	case refunded && txn != "COMPLETED":
		r.Set("rule_violation", BR1RefundWithoutCompletion)
	case txn == "FAILED" && (refund == "PROCESSING" || refund == "COMPLETED"):
		r.Set("rule_violation", BR2FailedInvalidRefund)
	case hasRawRefunded && rawRefunded != refunded:
		r.Set("rule_violation", BR3RefundFlagMismatch)
	case fraud && txn == "COMPLETED":
		r.Set("rule_violation", BR4FraudCompleted)
	case payment == "COMPLETED" && (txn == "PROCESSING" || txn == "DISPUTED"):
		r.Set("rule_violation", BR5ActiveOnCompleted)
	}
}
