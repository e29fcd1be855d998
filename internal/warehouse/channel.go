package warehouse

import (
	"github.com/onurkisa/eurozone-ecommerce-sql-data-warehouse/internal/transform"
)

// Channel types accepted on payment channels. Each maps to exactly one of
// the category flags; a channel whose type maps to none fails the any-true
// gate and never publishes.
var (
	cardTypes         = []string{"CREDIT_CARD", "DEBIT_CARD", "PREPAID_CARD"}
	walletTypes       = []string{"WALLET", "E_WALLET", "MOBILE_WALLET"}
	bankTransferTypes = []string{"BANK_TRANSFER", "EFT", "SEPA", "WIRE"}
)

func paymentChannelSpec() transform.Spec {
	domain := make([]string, 0, len(cardTypes)+len(walletTypes)+len(bankTransferTypes))
	domain = append(domain, cardTypes...)
	domain = append(domain, walletTypes...)
	domain = append(domain, bankTransferTypes...)

	return transform.Spec{
		Name:   "payment_channels",
		Source: "payment_channels",
		RawColumns: []string{
			"payment_channel_id", "channel_name", "channel_type",
			"provider", RawLoadColumn,
		},
		Rules: map[string]transform.FieldRule{
			"payment_channel_id": keyRule(),
			"channel_name":       textRule(),
			"channel_type":       enumRule(domain...),
			"provider":           textRule(),
			RawLoadColumn:        tsRule(),
		},
		NaturalKey:     []string{"payment_channel_id"},
		RankBy:         RawLoadColumn,
		DerivedColumns: []string{"is_card", "is_wallet", "is_banktransfer"},
		Derive:         derivePaymentChannel,
		AnyTrue: [][]string{
			{"is_card", "is_wallet", "is_banktransfer"},
		},
		Table: silverTable(TablePaymentChannels, []string{"payment_channel_id"},
			col("payment_channel_id", typeKey),
			col("channel_name", typeText),
			col("channel_type", typeKey),
			col("provider", typeText),
			col("is_card", typeBool),
			col("is_wallet", typeBool),
			col("is_banktransfer", typeBool),
		),
	}
}

func derivePaymentChannel(r transform.Row, _ transform.PrepareContext) {
	ct, _ := r.Str("channel_type")
	r.Set("is_card", contains(cardTypes, ct))
	r.Set("is_wallet", contains(walletTypes, ct))
	r.Set("is_banktransfer", contains(bankTransferTypes, ct))
}
