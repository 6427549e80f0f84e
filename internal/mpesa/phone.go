package mpesa

import (
	"strings"

	"spacebook/internal/apperr"
)

const countryCode = "254"

// NormalizePhone rewrites a local number (leading 0) into the 254 form
// Daraja expects. Numbers already starting with 254 pass through; any
// other prefix, "+254" included, is rejected.
func NormalizePhone(raw string) (string, error) {
	number := strings.TrimSpace(raw)

	var normalized string
	switch {
	case strings.HasPrefix(number, "0"):
		normalized = countryCode + number[1:]
	case strings.HasPrefix(number, countryCode):
		normalized = number
	default:
		return "", apperr.Validation("Invalid phone number format")
	}

	if len(normalized) == len(countryCode) || strings.IndexFunc(normalized, notDigit) >= 0 {
		return "", apperr.Validation("Invalid phone number format")
	}
	return normalized, nil
}

func notDigit(r rune) bool { return r < '0' || r > '9' }
