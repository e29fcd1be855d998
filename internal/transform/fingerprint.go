package transform

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Fingerprint computes a deterministic SHA-256 hash over a row's values in
// column order. It is the dedupe tie-break: when two candidate rows for the
// same natural key carry the same load timestamp, the row with the
// lexicographically smaller fingerprint wins, which keeps winner selection
// independent of input order.
//
// Canonicalization rules:
//   - Values are concatenated in column order using ASCII Unit Separator.
//   - Nil values are encoded as a single NUL byte so null differs from
//     empty-string.
//   - time.Time values are encoded as RFC3339Nano in UTC.
//   - Output is a lowercase hex string (length 64).
func Fingerprint(values []any) string {
	var b strings.Builder
	b.Grow(len(values) * 20)

	for i, v := range values {
		if i > 0 {
			b.WriteString("\x1f")
		}
		appendCanonical(&b, v)
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

func appendCanonical(b *strings.Builder, v any) {
	switch t := v.(type) {
	case nil:
		b.WriteByte('\x00')
	case string:
		b.WriteString(t)
	case []byte:
		b.Write(t)
	case bool:
		if t {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case int:
		b.WriteString(strconv.Itoa(t))
	case int32:
		b.WriteString(strconv.FormatInt(int64(t), 10))
	case int64:
		b.WriteString(strconv.FormatInt(t, 10))
	case float32:
		b.WriteString(strconv.FormatFloat(float64(t), 'g', -1, 32))
	case float64:
		b.WriteString(strconv.FormatFloat(t, 'g', -1, 64))
	case time.Time:
		tt := t
		if !tt.IsZero() {
			tt = tt.UTC()
		}
		b.WriteString(tt.Format(time.RFC3339Nano))
	default:
		b.WriteString(fmt.Sprint(t))
	}
}
