package frame

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind is the inferred value type of a column.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "integer"
	case KindFloat:
		return "float"
	case KindBool:
		return "boolean"
	default:
		return "text"
	}
}

// Numeric reports whether values of this kind are stored as data variables.
func (k Kind) Numeric() bool { return k == KindInt || k == KindFloat }

// Classify infers a coarse type for a column of raw cells.
//
// Preference order is integer > boolean > float > text. Empty cells are
// ignored. A column with no non-empty cell is float (all missing).
func Classify(values []string) Kind {
	var seen bool
	allInt, allFloat, allBool := true, true, true

	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		seen = true

		if allInt {
			if _, err := strconv.ParseInt(v, 10, 64); err != nil {
				allInt = false
			}
		}
		if allFloat {
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				allFloat = false
			}
		}
		if allBool {
			if _, ok := parseBool(v); !ok {
				allBool = false
			}
		}
		if !allInt && !allFloat && !allBool {
			break
		}
	}

	switch {
	case !seen:
		return KindFloat
	case allInt:
		return KindInt
	case allBool:
		return KindBool
	case allFloat:
		return KindFloat
	default:
		return KindString
	}
}

// ParseCell converts a raw cell to the Go value for kind k.
// Empty cells become nil (missing), except float cells which become NaN.
func ParseCell(s string, k Kind) (any, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		if k == KindFloat {
			return math.NaN(), nil
		}
		return nil, nil
	}
	switch k {
	case KindInt:
		return strconv.ParseInt(s, 10, 64)
	case KindFloat:
		return strconv.ParseFloat(s, 64)
	case KindBool:
		b, ok := parseBool(s)
		if !ok {
			return nil, fmt.Errorf("frame: %q is not a boolean", s)
		}
		return b, nil
	default:
		return s, nil
	}
}

// ToFloat converts a numeric cell to float64. Missing cells are NaN.
func ToFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case nil:
		return math.NaN(), true
	case float64:
		return t, true
	case int64:
		return float64(t), true
	case int:
		return float64(t), true
	default:
		return 0, false
	}
}

// IsMissing reports whether a cell is the missing marker (nil or NaN).
func IsMissing(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case float64:
		return math.IsNaN(t)
	default:
		return false
	}
}

// KindOf reports the kind of a column from its typed cells. Columns with only
// missing cells are float.
func KindOf(vals []any) Kind {
	for _, v := range vals {
		switch v.(type) {
		case string:
			return KindString
		case bool:
			return KindBool
		case int64, int:
			return KindInt
		case float64:
			if !IsMissing(v) {
				return KindFloat
			}
		}
	}
	return KindFloat
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return false, false
}
