package normalizer

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05-07",
	"2006-01-02T15:04:05-07",
}

// DateOf drops the time of day, keeping the calendar date as seen in t's own
// location.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func toID(value interface{}) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint64:
		if v > math.MaxInt64 {
			return 0, false
		}
		return int64(v), true
	case float32:
		return integral(float64(v))
	case float64:
		return integral(v)
	case json.Number:
		i, err := v.Int64()
		if err == nil {
			return i, true
		}
		if errors.Is(err, strconv.ErrRange) {
			return 0, false
		}
		if f, err := v.Float64(); err == nil {
			return integral(f)
		}
		return 0, false
	case []byte:
		return toID(string(v))
	case string:
		s := strings.TrimSpace(v)
		i, err := strconv.ParseInt(s, 10, 64)
		if err == nil {
			return i, true
		}
		// an integer literal too wide for int64 must not round through float64
		if errors.Is(err, strconv.ErrRange) {
			return 0, false
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return integral(f)
		}
		return 0, false
	default:
		return 0, false
	}
}

var maxIntFloat = math.Ldexp(1, 63)

func integral(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	// float64(math.MaxInt64) rounds up to 2^63, which int64 cannot hold
	if f >= maxIntFloat || f < -maxIntFloat {
		return 0, false
	}
	return int64(f), true
}

func toPrice(value interface{}) (float64, bool) {
	var f float64
	switch v := value.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case []byte:
		return toPrice(string(v))
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		i, ok := toID(value)
		if !ok {
			return 0, false
		}
		f = float64(i)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func toDate(value interface{}) (time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		if v.IsZero() {
			return time.Time{}, false
		}
		return DateOf(v), true
	case *time.Time:
		if v == nil {
			return time.Time{}, false
		}
		return toDate(*v)
	case []byte:
		return toDate(string(v))
	case string:
		s := strings.TrimSpace(v)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return DateOf(t), true
			}
		}
		return time.Time{}, false
	default:
		return time.Time{}, false
	}
}

func toText(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// cleanPhone flattens CRLF sequences that leak in from free-text entry.
func cleanPhone(value interface{}) string {
	var s string
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		s = fmt.Sprint(v)
	}
	return strings.ReplaceAll(s, "\r\n", " ")
}
