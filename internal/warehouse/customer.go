package warehouse

import (
	"time"

	"github.com/onurkisa/eurozone-ecommerce-sql-data-warehouse/internal/transform"
)

// Age groups assigned from age at run time.
const (
	AgeGroupYoung     = "YOUNG"      // 18-25
	AgeGroupAdult     = "ADULT"      // 26-40
	AgeGroupMiddleAge = "MIDDLE_AGE" // 41-60
	AgeGroupSenior    = "SENIOR"     // >60
)

// Customer segments, in precedence order: a fraud suspect is never LOYAL.
const (
	SegmentFraudRisk = "FRAUD_RISK"
	SegmentLoyal     = "LOYAL"
	SegmentStandard  = "STANDARD"
)

func customerSpec() transform.Spec {
	return transform.Spec{
		Name:   "customers",
		Source: "customers",
		RawColumns: []string{
			"customer_id", "first_name", "last_name", "email", "gender",
			"birth_date", "country_code", "is_loyalty_member",
			"is_fraud_suspect", RawLoadColumn,
		},
		Rules: map[string]transform.FieldRule{
			"customer_id":       keyRule(),
			"first_name":        textRule(),
			"last_name":         textRule(),
			"email":             textRule(),
			"gender":            genderRule(),
			"birth_date":        dateRule(),
			"country_code":      countryRule(),
			"is_loyalty_member": boolRule(),
			"is_fraud_suspect":  boolRule(),
			RawLoadColumn:       tsRule(),
		},
		NaturalKey:     []string{"customer_id"},
		RankBy:         RawLoadColumn,
		DerivedColumns: []string{"age", "age_group", "customer_segment"},
		Prepare:        customerPrepare,
		Derive:         deriveCustomer,
		Table: silverTable(TableCustomers, []string{"customer_id"},
			col("customer_id", typeKey),
			col("first_name", typeText),
			col("last_name", typeText),
			col("email", typeText),
			col("gender", typeKey),
			col("birth_date", typeDate),
			col("country_code", typeKey),
			col("is_loyalty_member", typeBool),
			col("is_fraud_suspect", typeBool),
			col("age", typeInt),
			col("age_group", typeKey),
			col("customer_segment", typeKey),
		),
	}
}

// customerPrepare pins the run timestamp as the as-of instant, so every
// customer's age is computed against the same clock reading and a pinned
// engine clock reproduces the run exactly.
func customerPrepare(_ *transform.Dataset, runAt time.Time) transform.PrepareContext {
	return transform.PrepareContext{"as_of": runAt.UTC()}
}

func deriveCustomer(r transform.Row, pc transform.PrepareContext) {
	asOf, _ := pc["as_of"].(time.Time)

	if bd, ok := r.Time("birth_date"); ok && !asOf.IsZero() {
		if age, valid := ageAt(bd, asOf); valid {
			r.Set("age", int64(age))
			r.Set("age_group", ageGroup(age))
		}
	}

	fraud, _ := r.Bool("is_fraud_suspect")
	loyal, _ := r.Bool("is_loyalty_member")
	switch {
	case fraud:
		r.Set("customer_segment", SegmentFraudRisk)
	case loyal:
		r.Set("customer_segment", SegmentLoyal)
	default:
		r.Set("customer_segment", SegmentStandard)
	}
}

// ageAt computes whole years between birth and asOf. Implausible results
// (future birth dates, ages over 120) are invalid.
func ageAt(birth, asOf time.Time) (int, bool) {
	years := asOf.Year() - birth.Year()
	anniversary := time.Date(asOf.Year(), birth.Month(), birth.Day(), 0, 0, 0, 0, time.UTC)
	if anniversary.After(asOf) {
		years--
	}
	if years < 0 || years > 120 {
		return 0, false
	}
	return years, true
}

func ageGroup(age int) any {
	switch {
	case age < 18:
		return nil
	case age <= 25:
		return AgeGroupYoung
	case age <= 40:
		return AgeGroupAdult
	case age <= 60:
		return AgeGroupMiddleAge
	default:
		return AgeGroupSenior
	}
}
