package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Type ranks used to order values of different types.
// Absent and null share the lowest rank.
const (
	RankNull = iota
	RankNumber
	RankString
	RankMap
	RankArray
	RankBool
	RankOther
)

// Rank returns the type rank of a normalized value
func Rank(v interface{}) int {
	switch v.(type) {
	case nil:
		return RankNull
	case float64, float32, int, int32, int64, uint, uint32, uint64:
		return RankNumber
	case string:
		return RankString
	case map[string]interface{}, Document:
		return RankMap
	case []interface{}:
		return RankArray
	case bool:
		return RankBool
	}
	return RankOther
}

// Compare imposes a total order over values: first by type rank, then by value
// within the rank. It returns -1, 0 or 1.
func Compare(a, b interface{}) int {
	ra, rb := Rank(a), Rank(b)
	if ra != rb {
		return compareInts(ra, rb)
	}
	switch ra {
	case RankNull:
		return 0
	case RankNumber:
		fa, _ := ToFloat64(a)
		fb, _ := ToFloat64(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	case RankString:
		return strings.Compare(a.(string), b.(string))
	case RankBool:
		ba, bb := a.(bool), b.(bool)
		switch {
		case ba == bb:
			return 0
		case !ba:
			return -1
		}
		return 1
	case RankArray:
		aa, ab := a.([]interface{}), b.([]interface{})
		for i := 0; i < len(aa) && i < len(ab); i++ {
			if c := Compare(aa[i], ab[i]); c != 0 {
				return c
			}
		}
		return compareInts(len(aa), len(ab))
	}
	return strings.Compare(CanonicalKey(a), CanonicalKey(b))
}

// Comparable reports whether ordering operators ($gt, $lt, ...) apply to the
// pair. Only values of the same scalar rank are comparable.
func Comparable(a, b interface{}) bool {
	ra := Rank(a)
	if ra != Rank(b) {
		return false
	}
	return ra == RankNumber || ra == RankString || ra == RankBool
}

// Equal reports deep equality of two normalized values
func Equal(a, b interface{}) bool {
	return Rank(a) == Rank(b) && Compare(a, b) == 0
}

// ToFloat64 converts various numeric types to float64 for comparison
func ToFloat64(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	default:
		return 0, false
	}
}

// CanonicalKey serializes a value to a stable string: JSON with sorted map keys.
func CanonicalKey(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%#v", v)
	}
	return string(data)
}

// Stringify returns the string form of a value as used by $concat
func Stringify(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	}
	if f, ok := ToFloat64(v); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return CanonicalKey(v)
}

func compareInts(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
