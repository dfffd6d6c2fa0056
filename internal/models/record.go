package models

import (
	"fmt"
	"strings"
	"time"
)

const (
	DateLayout      = "2006-01-02"
	TimestampLayout = "2006-01-02 15:04:05"
)

// Record is implemented by the pointer of every ingested row type.
type Record interface {
	// MergeKey returns the ordered merge-key tuple. Empty strings and nil
	// pointers count as null.
	MergeKey() []any
	Stamp(entityKey, ingestedAt string)
	Normalize() error
	SetQualityScore(score float64)
}

var dateInputLayouts = []string{
	DateLayout,
	time.RFC3339,
	time.RFC3339Nano,
	TimestampLayout,
	"2006-01-02T15:04:05",
	"20060102",
}

var timestampInputLayouts = []string{
	TimestampLayout,
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.000Z",
	DateLayout,
}

// NormalizeDate rewrites a date-like value into DateLayout.
func NormalizeDate(raw string) (string, error) {
	t, err := parseAny(raw, dateInputLayouts)
	if err != nil {
		return "", err
	}
	return t.Format(DateLayout), nil
}

// NormalizeTimestamp rewrites a timestamp-like value into TimestampLayout, in UTC.
func NormalizeTimestamp(raw string) (string, error) {
	t, err := parseAny(raw, timestampInputLayouts)
	if err != nil {
		return "", err
	}
	return t.UTC().Format(TimestampLayout), nil
}

// FormatTimestamp renders t in the canonical ingestion form.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

func parseAny(raw string, layouts []string) (time.Time, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty time value")
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time value %q", value)
}

func normalizeDatePtr(field string, v *string) error {
	if v == nil || strings.TrimSpace(*v) == "" {
		return nil
	}
	out, err := NormalizeDate(*v)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	*v = out
	return nil
}

func strPtr(v string) *string {
	return &v
}
