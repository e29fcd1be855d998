package warehouse

import (
	"strings"

	"github.com/onurkisa/eurozone-ecommerce-sql-data-warehouse/internal/transform"
)

// Shared normalization rules. Identifiers are trimmed only; changing case
// on a business key would silently fork it from its references.

func keyRule() transform.FieldRule {
	return transform.FieldRule{Kind: transform.RuleTrim}
}

func textRule() transform.FieldRule {
	return transform.FieldRule{Kind: transform.RuleTrim}
}

func upperRule() transform.FieldRule {
	return transform.FieldRule{Kind: transform.RuleUpper}
}

// moneyRule clamps negative amounts to null. Bad prices are reporting
// signals, not load failures.
func moneyRule() transform.FieldRule {
	return transform.FieldRule{Kind: transform.RuleFloat, Min: transform.Bound(0)}
}

func floatRule() transform.FieldRule {
	return transform.FieldRule{Kind: transform.RuleFloat}
}

func countRule() transform.FieldRule {
	return transform.FieldRule{Kind: transform.RuleInt, Min: transform.Bound(0)}
}

func boolRule() transform.FieldRule {
	return transform.FieldRule{Kind: transform.RuleBool}
}

func dateRule() transform.FieldRule {
	return transform.FieldRule{Kind: transform.RuleDate}
}

func tsRule() transform.FieldRule {
	return transform.FieldRule{Kind: transform.RuleTimestamp}
}

func countryRule() transform.FieldRule {
	return transform.FieldRule{Kind: transform.RuleCountry}
}

func postalRule() transform.FieldRule {
	return transform.FieldRule{Kind: transform.RulePostal}
}

func genderRule() transform.FieldRule {
	return transform.FieldRule{Kind: transform.RuleGender}
}

func enumRule(domain ...string) transform.FieldRule {
	return transform.FieldRule{Kind: transform.RuleEnum, Domain: domain}
}

// splitList splits a comma-separated raw list into trimmed, upper-cased,
// de-duplicated members.
func splitList(s string) []string {
	parts := strings.Split(s, ",")
	seen := make(map[string]struct{}, len(parts))
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
