// Package guard validates loosely typed integer references such as staff ids.
package guard

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// TimestampThreshold is the magnitude at which a reference is assumed to be
// an epoch timestamp rather than a small sequential id. Second-scale epochs
// already exceed it, millisecond-scale ones exceed it by three orders.
const TimestampThreshold = 1_000_000_000

// ValidateBoundedRef coerces v to an integer reference. It returns false when
// v is not an integral finite number, lies outside the signed 32-bit range, or
// looks like a timestamp. Callers omit the field on false.
//
// Because of TimestampThreshold the accepted range is narrower than int32:
// only magnitudes up to 999,999,999 pass, so ids from 1,000,000,000 to
// math.MaxInt32 are rejected along with timestamps.
func ValidateBoundedRef(v any) (int32, bool) {
	f, ok := toFloat(v)
	if !ok {
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	if f != math.Trunc(f) {
		return 0, false
	}
	if f < math.MinInt32 || f > math.MaxInt32 {
		return 0, false
	}
	if math.Abs(f) >= TimestampThreshold {
		return 0, false
	}
	return int32(f), true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case nil:
		return 0, false
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		// Values beyond float64's exact range are out of bounds anyway.
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case *int32:
		if n == nil {
			return 0, false
		}
		return float64(*n), true
	case json.Number:
		return parseNumber(string(n))
	case string:
		return parseNumber(n)
	default:
		return 0, false
	}
}

func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return float64(i), true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
