package warehouse

import (
	"github.com/onurkisa/eurozone-ecommerce-sql-data-warehouse/internal/transform"
)

func addressSpec() transform.Spec {
	return transform.Spec{
		Name:   "addresses",
		Source: "addresses",
		RawColumns: []string{
			"address_id", "customer_id", "address_line", "city",
			"postal_code", "country_code", "is_primary", RawLoadColumn,
		},
		Rules: map[string]transform.FieldRule{
			"address_id":   keyRule(),
			"customer_id":  keyRule(),
			"address_line": textRule(),
			"city":         textRule(),
			"postal_code":  postalRule(),
			"country_code": countryRule(),
			"is_primary":   boolRule(),
			RawLoadColumn:  tsRule(),
		},
		NaturalKey: []string{"address_id"},
		RankBy:     RawLoadColumn,
		Required:   []string{"customer_id"},
		Refs: []transform.ForeignKey{
			{Columns: []string{"customer_id"}, Parent: "customers"},
		},
		Table: silverTable(TableAddresses, []string{"address_id"},
			col("address_id", typeKey),
			col("customer_id", typeKey),
			col("address_line", typeText),
			col("city", typeText),
			col("postal_code", typeKey),
			col("country_code", typeKey),
			col("is_primary", typeBool),
		),
	}
}
