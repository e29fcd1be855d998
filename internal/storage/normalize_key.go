package storage

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// NormalizeKey converts a key value to a canonical string form, suitable for
// in-memory key sets (e.g. "CUST-000017" or "8429529").
//
// Backends must not assume a particular underlying type for keys; this helper
// keeps referential lookups consistent across backends (TEXT can scan as
// string or []byte, integers as int64, etc).
func NormalizeKey(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case []byte:
		return strings.TrimSpace(string(t))
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case float64:
		// 'f' keeps integral values free of exponent notation, so a key
		// scanned as float64 matches the same key scanned as int64.
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		if t {
			return "true"
		}
		return "false"
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// CompositeKey joins the normalized parts of a (possibly composite) key with
// an ASCII unit separator. Single-column keys reduce to NormalizeKey.
//
// The separator cannot occur in business key values, so two distinct
// composite keys can never collapse to the same canonical form.
func CompositeKey(parts []any) string {
	if len(parts) == 1 {
		return NormalizeKey(parts[0])
	}
	var b strings.Builder
	for i, p := range parts {
		if i > 0 {
			b.WriteByte('\x1f')
		}
		b.WriteString(NormalizeKey(p))
	}
	return b.String()
}
