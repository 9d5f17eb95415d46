package services

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// Layouts accepted for ISO-8601 reminder times. Date-time forms without an
// offset are read in the caller's location; a bare date is UTC midnight.
var (
	isoZoned = []string{time.RFC3339Nano, time.RFC3339}
	isoLocal = []string{"2006-01-02T15:04:05.999999999", "2006-01-02T15:04:05", "2006-01-02T15:04"}
)

const isoDate = "2006-01-02"

// maxWhenMillis is 9999-12-31T23:59:59.999Z. Numeric times beyond it in
// either direction are rejected rather than wrapped.
const maxWhenMillis = 253402300799999

// ParseWhen converts a reminder "when" value to epoch milliseconds. raw may
// be a JSON number, a numeric string, or an ISO-8601 string.
func ParseWhen(raw json.RawMessage, loc *time.Location) (int64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, ErrInvalidWhen
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, ErrInvalidWhen
		}
		return ParseWhenString(s, loc)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, ErrInvalidWhen
	}
	return numberToMillis(n.String())
}

// ParseWhenString is ParseWhen for an already decoded string.
func ParseWhenString(s string, loc *time.Location) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidWhen
	}
	if ms, err := numberToMillis(s); err == nil {
		return ms, nil
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range isoZoned {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UnixMilli(), nil
		}
	}
	for _, layout := range isoLocal {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.UnixMilli(), nil
		}
	}
	if t, err := time.Parse(isoDate, s); err == nil {
		return t.UnixMilli(), nil
	}
	return 0, ErrInvalidWhen
}

func numberToMillis(s string) (int64, error) {
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		if ms > maxWhenMillis || ms < -maxWhenMillis {
			return 0, ErrInvalidWhen
		}
		return ms, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > maxWhenMillis {
		return 0, ErrInvalidWhen
	}
	return int64(f), nil
}
