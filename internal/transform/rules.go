package transform

import (
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// RuleKind selects a field normalization behavior. Rules are declared per
// raw column in an entity Spec and applied before dedupe, so keys and
// business-rule inputs are always in canonical shape.
type RuleKind string

const (
	// RuleTrim strips surrounding whitespace. Empty after trim is null.
	RuleTrim RuleKind = "trim"
	// RuleUpper trims then case-folds to upper.
	RuleUpper RuleKind = "upper"
	// RuleGender maps free-text gender markers to M, F or N/A.
	RuleGender RuleKind = "gender"
	// RuleBool maps textual truth markers to a real boolean.
	RuleBool RuleKind = "bool"
	// RuleCountry upper-folds a 2-letter ISO country code. The literal
	// GLOBAL passes through; anything else is null.
	RuleCountry RuleKind = "country"
	// RulePostal keeps 3-10 char alphanumeric-or-hyphen postal codes.
	RulePostal RuleKind = "postal"
	// RuleDate parses a calendar date.
	RuleDate RuleKind = "date"
	// RuleTimestamp parses a point in time.
	RuleTimestamp RuleKind = "timestamp"
	// RuleFloat parses a decimal number.
	RuleFloat RuleKind = "float"
	// RuleInt parses an integer.
	RuleInt RuleKind = "int"
	// RuleEnum trims, upper-folds and checks membership in Domain.
	RuleEnum RuleKind = "enum"
)

// FieldRule normalizes a single raw column. Apply never fails: input the
// rule cannot make sense of comes out as nil, and the gate decides later
// whether a null there disqualifies the row.
type FieldRule struct {
	Kind RuleKind

	// Domain lists the accepted values for RuleEnum, already upper-case.
	Domain []string

	// Min and Max clamp RuleFloat and RuleInt results to a plausible range;
	// out-of-range parses come out as nil. Both nil means unbounded.
	Min *float64
	Max *float64
}

var upperFold = cases.Upper(language.Und)

// Apply normalizes one value under the rule. See the RuleKind constants for
// per-kind behavior.
func (r FieldRule) Apply(v any) any {
	if v == nil {
		return nil
	}
	switch r.Kind {
	case RuleTrim:
		s, ok := stringValue(v)
		if !ok || s == "" {
			return nil
		}
		return s
	case RuleUpper:
		s, ok := stringValue(v)
		if !ok || s == "" {
			return nil
		}
		return upperFold.String(s)
	case RuleGender:
		return normalizeGender(v)
	case RuleBool:
		return normalizeBool(v)
	case RuleCountry:
		return normalizeCountry(v)
	case RulePostal:
		return normalizePostal(v)
	case RuleDate:
		return parseDate(v)
	case RuleTimestamp:
		return parseTimestamp(v)
	case RuleFloat:
		f, ok := floatValue(v)
		if !ok || !r.inRange(f) {
			return nil
		}
		return f
	case RuleInt:
		f, ok := floatValue(v)
		if !ok || f != float64(int64(f)) || !r.inRange(f) {
			return nil
		}
		return int64(f)
	case RuleEnum:
		s, ok := stringValue(v)
		if !ok || s == "" {
			return nil
		}
		s = upperFold.String(s)
		for _, d := range r.Domain {
			if s == d {
				return s
			}
		}
		return nil
	default:
		return v
	}
}

func (r FieldRule) inRange(f float64) bool {
	if r.Min != nil && f < *r.Min {
		return false
	}
	if r.Max != nil && f > *r.Max {
		return false
	}
	return true
}

// Bound is a convenience for FieldRule range pointers.
func Bound(f float64) *float64 { return &f }

func stringValue(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t), true
	case []byte:
		return strings.TrimSpace(string(t)), true
	default:
		return "", false
	}
}

func floatValue(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int64:
		return float64(t), true
	case int:
		return float64(t), true
	case string, []byte:
		s, _ := stringValue(v)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func normalizeGender(v any) any {
	s, ok := stringValue(v)
	if !ok {
		return nil
	}
	switch upperFold.String(s) {
	case "M", "MALE":
		return "M"
	case "F", "FEMALE":
		return "F"
	case "", "N/A", "NA", "UNKNOWN", "OTHER":
		return "N/A"
	default:
		return "N/A"
	}
}

func normalizeBool(v any) any {
	switch t := v.(type) {
	case bool:
		return t
	// Staged bronze tables deliver booleans as 0/1 on drivers without a
	// native bool type.
	case int64, int, float64:
		f, _ := floatValue(t)
		switch f {
		case 0:
			return false
		case 1:
			return true
		}
		return nil
	}
	s, ok := stringValue(v)
	if !ok {
		return nil
	}
	switch upperFold.String(s) {
	case "TRUE", "T", "YES", "Y", "1":
		return true
	case "FALSE", "F", "NO", "N", "0":
		return false
	default:
		return nil
	}
}

func normalizeCountry(v any) any {
	s, ok := stringValue(v)
	if !ok {
		return nil
	}
	s = upperFold.String(s)
	if s == "GLOBAL" {
		return s
	}
	if len(s) != 2 || !isASCIILetters(s) {
		return nil
	}
	return s
}

func isASCIILetters(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return false
		}
	}
	return true
}

func normalizePostal(v any) any {
	s, ok := stringValue(v)
	if !ok || len(s) < 3 || len(s) > 10 {
		return nil
	}
	s = upperFold.String(s)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '-' || c == ' ':
		default:
			return nil
		}
	}
	return s
}

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"02.01.2006",
	"01/02/2006",
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

func parseDate(v any) any {
	if t, ok := v.(time.Time); ok {
		return t.UTC().Truncate(24 * time.Hour)
	}
	s, ok := stringValue(v)
	if !ok || s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return nil
}

func parseTimestamp(v any) any {
	if t, ok := v.(time.Time); ok {
		return t.UTC()
	}
	s, ok := stringValue(v)
	if !ok || s == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	if d := parseDate(s); d != nil {
		return d
	}
	return nil
}
