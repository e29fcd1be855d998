package warehouse

import (
	"github.com/onurkisa/eurozone-ecommerce-sql-data-warehouse/internal/transform"
)

// Price types carried by versioned local prices.
var priceTypes = []string{"REGULAR", "PROMO", "CLEARANCE"}

func productPriceSpec() transform.Spec {
	key := []string{"product_id", "country_code", "price_type", "effective_date"}
	return transform.Spec{
		Name:   "product_prices",
		Source: "product_prices",
		RawColumns: []string{
			"product_id", "country_code", "price_type", "effective_date",
			"local_price", "currency", RawLoadColumn,
		},
		Rules: map[string]transform.FieldRule{
			"product_id":     keyRule(),
			"country_code":   countryRule(),
			"price_type":     enumRule(priceTypes...),
			"effective_date": dateRule(),
			"local_price":    moneyRule(),
			"currency":       upperRule(),
			RawLoadColumn:    tsRule(),
		},
		NaturalKey: key,
		RankBy:     RawLoadColumn,
		Required:   []string{"local_price"},
		Refs: []transform.ForeignKey{
			{Columns: []string{"product_id"}, Parent: "products"},
		},
		Table: silverTable(TableProductPrices, key,
			col("product_id", typeKey),
			col("country_code", typeKey),
			col("price_type", typeKey),
			col("effective_date", typeDate),
			col("local_price", typeMoney),
			col("currency", typeKey),
		),
	}
}
