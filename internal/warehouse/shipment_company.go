package warehouse

import (
	"github.com/onurkisa/eurozone-ecommerce-sql-data-warehouse/internal/transform"
)

// Company types assigned from the count of operating countries.
const (
	CompanyLocal    = "LOCAL"    // exactly one country
	CompanyRegional = "REGIONAL" // 2-5 countries
	CompanyGlobal   = "GLOBAL"   // more than 5
)

func shipmentCompanySpec() transform.Spec {
	return transform.Spec{
		Name:   "shipment_companies",
		Source: "shipment_companies",
		RawColumns: []string{
			"shipment_company_id", "company_name", "operating_countries",
			"services", RawLoadColumn,
		},
		Rules: map[string]transform.FieldRule{
			"shipment_company_id": keyRule(),
			"company_name":        textRule(),
			"operating_countries": textRule(),
			"services":            textRule(),
			RawLoadColumn:         tsRule(),
		},
		NaturalKey: []string{"shipment_company_id"},
		RankBy:     RawLoadColumn,
		DerivedColumns: []string{
			"operating_country_count", "company_type",
			"supports_express", "supports_standard", "supports_international",
		},
		Derive: deriveShipmentCompany,
		AnyTrue: [][]string{
			{"supports_express", "supports_standard", "supports_international"},
		},
		Table: silverTable(TableShipmentCompanies, []string{"shipment_company_id"},
			col("shipment_company_id", typeKey),
			col("company_name", typeText),
			col("operating_countries", typeText),
			col("operating_country_count", typeInt),
			col("company_type", typeKey),
			col("supports_express", typeBool),
			col("supports_standard", typeBool),
			col("supports_international", typeBool),
		),
	}
}

func deriveShipmentCompany(r transform.Row, _ transform.PrepareContext) {
	if raw, ok := r.Str("operating_countries"); ok {
		countries := splitList(raw)
		n := len(countries)
		if n > 0 {
			r.Set("operating_country_count", int64(n))
			r.Set("company_type", companyType(n))
		}
	}

	var services []string
	if raw, ok := r.Str("services"); ok {
		services = splitList(raw)
	}
	r.Set("supports_express", contains(services, "EXPRESS"))
	r.Set("supports_standard", contains(services, "STANDARD"))
	r.Set("supports_international", contains(services, "INTERNATIONAL"))
}

func companyType(countries int) string {
	switch {
	case countries <= 1:
		return CompanyLocal
	case countries <= 5:
		return CompanyRegional
	default:
		return CompanyGlobal
	}
}
