// Package phone normalizes customer numbers into the digits-only
// international form the voice provider dials.
package phone

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// DefaultDialCode is used for unknown countries.
const DefaultDialCode = "51"

var (
	ErrEmpty   = errors.New("phone: empty number")
	ErrInvalid = errors.New("phone: invalid number")
)

// DialCode returns the calling code for an ISO 3166-1 alpha-2 country.
func DialCode(country string) string {
	region := strings.ToUpper(strings.TrimSpace(country))
	if code := phonenumbers.GetCountryCodeForRegion(region); code > 0 {
		return strconv.Itoa(code)
	}
	return DefaultDialCode
}

// Format strips punctuation and applies the country's dialing code:
// numbers already carrying the code are kept, a leading trunk 0 is
// replaced, anything else gets the code prepended. The result must be a
// possible number for its country.
func Format(raw, country string) (string, error) {
	digits, err := strip(raw)
	if err != nil {
		return "", err
	}
	code := DialCode(country)

	var full string
	switch {
	case strings.HasPrefix(digits, code):
		full = digits
	case strings.HasPrefix(digits, "0"):
		full = code + digits[1:]
	default:
		full = code + digits
	}

	num, err := phonenumbers.Parse("+"+full, "")
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrInvalid, raw, err)
	}
	if !phonenumbers.IsPossibleNumber(num) {
		return "", fmt.Errorf("%w: %q has the wrong length", ErrInvalid, raw)
	}
	return strings.TrimPrefix(phonenumbers.Format(num, phonenumbers.E164), "+"), nil
}

// strip drops separators and rejects anything that is not a digit.
func strip(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case strings.ContainsRune(" \t+-().#*/", r):
		default:
			return "", fmt.Errorf("%w: %q contains %q", ErrInvalid, raw, r)
		}
	}
	if b.Len() == 0 {
		return "", ErrEmpty
	}
	return b.String(), nil
}
