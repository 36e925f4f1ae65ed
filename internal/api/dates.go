package api

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	wireDateLayout    = "20060102"
	pickerDateLayout  = "2006-01-02"
	displayDateLayout = "02/01/2006"

	fileKeySeparator = "_"
	fwKeyPrefixLen   = 4
)

// ErrInvalidDate reports a date that is neither YYYY-MM-DD nor YYYYMMDD, or not a real calendar day.
var ErrInvalidDate = errors.New("invalid date")

// WireDate converts a date-picker value (YYYY-MM-DD) or an already-encoded
// YYYYMMDD value to the YYYYMMDD wire format.
func WireDate(value string) (string, error) {
	value = strings.TrimSpace(value)
	layout := pickerDateLayout
	if len(value) == len(wireDateLayout) {
		layout = wireDateLayout
	}
	t, err := time.Parse(layout, value)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDate, value)
	}
	return t.Format(wireDateLayout), nil
}

// WireDates converts every value with WireDate, failing on the first invalid one.
func WireDates(values []string) ([]string, error) {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if strings.TrimSpace(value) == "" {
			continue
		}
		date, err := WireDate(value)
		if err != nil {
			return nil, err
		}
		out = append(out, date)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no dates given", ErrInvalidDate)
	}
	return out, nil
}

// FormatDisplayDate renders a YYYYMMDD date as DD/MM/YYYY. Invalid input is returned unchanged.
func FormatDisplayDate(wire string) string {
	t, err := time.Parse(wireDateLayout, strings.TrimSpace(wire))
	if err != nil {
		return wire
	}
	return t.Format(displayDateLayout)
}

// DateFromKey extracts the YYYYMMDD date embedded in a workflow key.
//
// Recognised shapes, in order: file keys (name_YYYYMMDD.pdf), fw keys
// (four-character issue id, YYYYMMDD, version suffix), then the first
// eight-digit run forming a valid calendar date.
func DateFromKey(key string) (string, bool) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", false
	}

	base := key
	if idx := strings.Index(base, "."); idx >= 0 {
		base = base[:idx]
	}
	if idx := strings.LastIndex(base, fileKeySeparator); idx >= 0 {
		if candidate := base[idx+1:]; isWireDate(candidate) {
			return candidate, true
		}
	}

	if len(key) >= fwKeyPrefixLen+len(wireDateLayout) {
		if candidate := key[fwKeyPrefixLen : fwKeyPrefixLen+len(wireDateLayout)]; isWireDate(candidate) {
			return candidate, true
		}
	}

	for start := 0; start+len(wireDateLayout) <= len(key); start++ {
		if candidate := key[start : start+len(wireDateLayout)]; isWireDate(candidate) {
			return candidate, true
		}
	}
	return "", false
}

// DisplayDateFromKey renders the date embedded in key as DD/MM/YYYY, or returns key unchanged.
func DisplayDateFromKey(key string) string {
	date, ok := DateFromKey(key)
	if !ok {
		return key
	}
	return FormatDisplayDate(date)
}

func isWireDate(value string) bool {
	if len(value) != len(wireDateLayout) {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	_, err := time.Parse(wireDateLayout, value)
	return err == nil
}
