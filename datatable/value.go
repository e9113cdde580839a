package datatable

import (
	"cmp"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// Stringify returns the display string of a resolved value. nil renders as
// the empty string.
func Stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case time.Time:
		if v.IsZero() {
			return ""
		}
		return v.Format(time.RFC3339)
	case fmt.Stringer:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	case error:
		return v.Error()
	}

	if f, ok := toFloat(value); ok {
		rv := reflect.ValueOf(value)
		switch rv.Kind() {
		case reflect.Float32:
			return strconv.FormatFloat(f, 'f', -1, 32)
		case reflect.Float64:
			return strconv.FormatFloat(f, 'f', -1, 64)
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
			return strconv.FormatUint(rv.Uint(), 10)
		default:
			return strconv.FormatInt(rv.Int(), 10)
		}
	}
	return fmt.Sprint(value)
}

// foldCase returns the Unicode case-folded form of s, used for
// case-insensitive matching. A new Caser is created per call because
// Casers are stateful.
func foldCase(s string) string {
	return cases.Fold().String(s)
}

// toFloat converts numeric kinds to float64.
func toFloat(value any) (float64, bool) {
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	default:
		return 0, false
	}
}

// Value kinds in sort order. Values of different kinds order by kind, so
// the ordering stays total for columns mixing kinds.
const (
	kindNumber = iota
	kindBool
	kindTime
	kindString
	kindOther
)

func kindOf(value any) int {
	if _, ok := toFloat(value); ok {
		return kindNumber
	}
	switch value.(type) {
	case bool:
		return kindBool
	case time.Time:
		return kindTime
	case string:
		return kindString
	default:
		return kindOther
	}
}

// CompareValues orders two non-nil resolved values.
//
// Values of different kinds order numbers first, then booleans, times,
// strings and anything else. Within a kind, numbers compare numerically,
// booleans false before true, times chronologically, strings
// lexicographically by bytes (no locale rules) and other values by their
// [Stringify] form. Callers handle nil themselves; see [Derive].
func CompareValues(a, b any) int {
	ka, kb := kindOf(a), kindOf(b)
	if ka != kb {
		return cmp.Compare(ka, kb)
	}

	switch ka {
	case kindNumber:
		af, _ := toFloat(a)
		bf, _ := toFloat(b)
		return cmp.Compare(af, bf)
	case kindBool:
		av, bv := a.(bool), b.(bool)
		switch {
		case av == bv:
			return 0
		case !av:
			return -1
		default:
			return 1
		}
	case kindTime:
		return a.(time.Time).Compare(b.(time.Time))
	case kindString:
		return strings.Compare(a.(string), b.(string))
	default:
		return strings.Compare(Stringify(a), Stringify(b))
	}
}
