package frame

import (
	"math"
	"strconv"
	"strings"
)

// KeyString converts composite key values to one canonical string, suitable
// for map keys when grouping or de-duplicating rows.
//
// Values are type-tagged so that the string "50" and the integer 50 never
// collide. Missing values (nil, NaN) share one marker.
func KeyString(vals ...any) string {
	var b strings.Builder
	for i, v := range vals {
		if i > 0 {
			b.WriteByte('\x1f')
		}
		b.WriteString(cellString(v))
	}
	return b.String()
}

func cellString(v any) string {
	switch t := v.(type) {
	case nil:
		return "\x00"
	case string:
		return "s:" + strings.TrimSpace(t)
	case int64:
		return "i:" + strconv.FormatInt(t, 10)
	case int:
		return "i:" + strconv.Itoa(t)
	case bool:
		return "b:" + strconv.FormatBool(t)
	case float64:
		if math.IsNaN(t) {
			return "\x00"
		}
		return "f:" + strconv.FormatFloat(t, 'g', -1, 64)
	case []byte:
		return "s:" + strings.TrimSpace(string(t))
	default:
		return "?"
	}
}

// Less orders two label values of the same kind: numbers numerically,
// false before true, strings lexically. Missing sorts last.
func Less(a, b any) bool {
	if IsMissing(a) || IsMissing(b) {
		return !IsMissing(a) && IsMissing(b)
	}
	switch x := a.(type) {
	case string:
		if y, ok := b.(string); ok {
			return x < y
		}
	case bool:
		if y, ok := b.(bool); ok {
			return !x && y
		}
	}
	if fx, ok := ToFloat(a); ok {
		if fy, ok := ToFloat(b); ok {
			return fx < fy
		}
	}
	return cellString(a) < cellString(b)
}
