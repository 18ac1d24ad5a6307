package providers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var localLayouts = []string{
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	time.RFC3339,
}

// parseLocal splits an upstream local timestamp into its calendar date and
// HH:MM clock. A date-only value yields an empty clock; a value whose date
// part is unreadable is an error.
func parseLocal(s string) (time.Time, string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, "", fmt.Errorf("empty timestamp")
	}
	for _, layout := range localLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, t.Format("15:04"), nil
		}
	}
	// keep the date when only the clock part is broken
	datePart, _, _ := strings.Cut(strings.Replace(s, "T", " ", 1), " ")
	d, err := time.Parse(dateLayout, datePart)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("unsupported timestamp %q", s)
	}
	return d, "", nil
}

// clockOf returns the HH:MM part of an upstream timestamp, or "" when it has none.
func clockOf(s string) string {
	if s == "" {
		return ""
	}
	_, clock, err := parseLocal(s)
	if err != nil {
		return ""
	}
	return clock
}

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", b)
	}
	*f = flexString(n.String())
	return nil
}

// flexPrice accepts a JSON number, a numeric string or null. Missing and null
// decode to 0, which the price policy treats as "no price".
type flexPrice int

func (f *flexPrice) UnmarshalJSON(b []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(b); err != nil {
		return fmt.Errorf("price: %w", err)
	}
	v, err := parseAmount(string(s))
	if err != nil {
		return err
	}
	*f = flexPrice(v)
	return nil
}

// maxAmount bounds parsed prices so the int conversion is always defined.
const maxAmount = math.MaxInt32

// parseAmount converts a decimal amount to whole currency units. "" is 0.
func parseAmount(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("price: not a number: %q", s)
	}
	if math.Abs(v) > maxAmount {
		return 0, fmt.Errorf("price: out of range: %q", s)
	}
	return int(math.Round(v)), nil
}
