package services

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestParseWhen(t *testing.T) {
	art := time.FixedZone("ART", -3*3600)
	cases := []struct {
		name string
		raw  string
		want int64
	}{
		{"number", `1700000000000`, 1700000000000},
		{"float number", `1700000000000.9`, 1700000000000},
		{"numeric string", `"1700000000000"`, 1700000000000},
		{"rfc3339 utc", `"2024-05-01T10:00:00Z"`, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC).UnixMilli()},
		{"rfc3339 offset", `"2024-05-01T10:00:00-03:00"`, time.Date(2024, 5, 1, 13, 0, 0, 0, time.UTC).UnixMilli()},
		{"fractional", `"2024-05-01T10:00:00.250Z"`, time.Date(2024, 5, 1, 10, 0, 0, 250e6, time.UTC).UnixMilli()},
		{"local seconds", `"2024-05-01T10:00:00"`, time.Date(2024, 5, 1, 10, 0, 0, 0, art).UnixMilli()},
		{"local minutes", `"2024-05-01T10:00"`, time.Date(2024, 5, 1, 10, 0, 0, 0, art).UnixMilli()},
		{"date only", `"2024-05-01"`, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC).UnixMilli()},
	}
	for _, tc := range cases {
		got, err := ParseWhen(json.RawMessage(tc.raw), art)
		if err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("%s: got %d; want %d", tc.name, got, tc.want)
		}
	}
}

func TestParseWhen_Invalid(t *testing.T) {
	for _, raw := range []string{
		``, `null`, `"tomorrow"`, `"  "`, `true`, `{"a":1}`, `"NaN"`, `"Inf"`,
		// out of range numbers must not wrap into the past
		`1e300`, `-1e300`, `"1e20"`, `9223372036854775808`, `"9223372036854775807"`, `253402300800000`,
	} {
		if _, err := ParseWhen(json.RawMessage(raw), time.UTC); !errors.Is(err, ErrInvalidWhen) {
			t.Fatalf("ParseWhen(%q) err = %v; want ErrInvalidWhen", raw, err)
		}
	}
}

func TestParseWhen_UpperBound(t *testing.T) {
	last := time.Date(9999, 12, 31, 23, 59, 59, 999e6, time.UTC).UnixMilli()
	for _, raw := range []string{`253402300799999`, `"253402300799999"`, `2.53402300799999e14`} {
		got, err := ParseWhen(json.RawMessage(raw), time.UTC)
		if err != nil || got != last {
			t.Fatalf("ParseWhen(%s) = %d, %v; want %d", raw, got, err, last)
		}
	}
}

func TestParseWhenString_NilLocationUsesLocal(t *testing.T) {
	got, err := ParseWhenString("2024-05-01T10:00", nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if want := time.Date(2024, 5, 1, 10, 0, 0, 0, time.Local).UnixMilli(); got != want {
		t.Fatalf("got %d; want %d", got, want)
	}
}
