package transform

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuleTrim(t *testing.T) {
	r := FieldRule{Kind: RuleTrim}
	assert.Equal(t, "abc", r.Apply("  abc  "))
	assert.Nil(t, r.Apply("   "))
	assert.Nil(t, r.Apply(nil))
	assert.Nil(t, r.Apply(42), "non-string input is unusable")
}

func TestRuleUpper(t *testing.T) {
	r := FieldRule{Kind: RuleUpper}
	assert.Equal(t, "ELEKTRONIK", r.Apply(" elektronik "))
	assert.Nil(t, r.Apply(""))
}

func TestRuleGender(t *testing.T) {
	r := FieldRule{Kind: RuleGender}
	cases := map[string]any{
		"m":       "M",
		"Male":    "M",
		"F":       "F",
		"female":  "F",
		"":        "N/A",
		"unknown": "N/A",
		"x":       "N/A",
	}
	for in, want := range cases {
		assert.Equal(t, want, r.Apply(in), "input %q", in)
	}
}

func TestRuleBool(t *testing.T) {
	r := FieldRule{Kind: RuleBool}
	assert.Equal(t, true, r.Apply("TRUE"))
	assert.Equal(t, true, r.Apply("yes"))
	assert.Equal(t, false, r.Apply("FALSE"))
	assert.Equal(t, false, r.Apply("0"))
	assert.Equal(t, true, r.Apply(true))
	assert.Nil(t, r.Apply("maybe"))

	// Staged bronze tables deliver booleans as 0/1 numbers.
	assert.Equal(t, true, r.Apply(int64(1)))
	assert.Equal(t, false, r.Apply(int64(0)))
	assert.Equal(t, true, r.Apply(float64(1)))
	assert.Nil(t, r.Apply(int64(2)))
}

func TestRuleCountry(t *testing.T) {
	r := FieldRule{Kind: RuleCountry}
	assert.Equal(t, "DE", r.Apply("de"))
	assert.Equal(t, "NL", r.Apply(" NL "))
	assert.Equal(t, "GLOBAL", r.Apply("global"))

	// Anything that is neither a 2-letter code nor the GLOBAL marker is
	// unusable, never coerced into a legitimate-looking value.
	assert.Nil(t, r.Apply("Deutschland"))
	assert.Nil(t, r.Apply("D1"))
	assert.Nil(t, r.Apply(""))
	assert.Nil(t, r.Apply(42))
}

func TestRulePostal(t *testing.T) {
	r := FieldRule{Kind: RulePostal}
	assert.Equal(t, "10115", r.Apply("10115"))
	assert.Equal(t, "EC1A-1BB", r.Apply("ec1a-1bb"))
	assert.Nil(t, r.Apply("ab"), "too short")
	assert.Nil(t, r.Apply("12345678901"), "too long")
	assert.Nil(t, r.Apply("10#15"))
}

func TestRuleDate(t *testing.T) {
	r := FieldRule{Kind: RuleDate}
	got := r.Apply("1990-06-15")
	require.IsType(t, time.Time{}, got)
	assert.Equal(t, 1990, got.(time.Time).Year())

	assert.Nil(t, r.Apply("not a date"))
}

func TestRuleTimestampFallsBackToDate(t *testing.T) {
	r := FieldRule{Kind: RuleTimestamp}
	assert.NotNil(t, r.Apply("2024-03-01T10:00:00Z"))
	assert.NotNil(t, r.Apply("2024-03-01 10:00:00"))
	assert.NotNil(t, r.Apply("2024-03-01"))
	assert.Nil(t, r.Apply("yesterday"))
}

func TestRuleFloatClampsToNull(t *testing.T) {
	r := FieldRule{Kind: RuleFloat, Min: Bound(0)}
	assert.Equal(t, 19.5, r.Apply("19.50"))
	assert.Equal(t, 3.0, r.Apply(int64(3)))
	assert.Nil(t, r.Apply("-5"), "negative price becomes null, not an error")
	assert.Nil(t, r.Apply("abc"))
}

func TestRuleIntRejectsFractions(t *testing.T) {
	r := FieldRule{Kind: RuleInt, Min: Bound(0)}
	assert.Equal(t, int64(7), r.Apply("7"))
	assert.Nil(t, r.Apply("7.5"))
	assert.Nil(t, r.Apply("-1"))
}

func TestRuleEnum(t *testing.T) {
	r := FieldRule{Kind: RuleEnum, Domain: []string{"COMPLETED", "CANCELLED"}}
	assert.Equal(t, "COMPLETED", r.Apply(" completed "))
	assert.Nil(t, r.Apply("SHIPPED"))
}
