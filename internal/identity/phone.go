package identity

import "strings"

// DefaultCountryCode is used when no country code is configured.
const DefaultCountryCode = "972"

// NormalizePhone canonicalizes a phone number on a best-effort basis. Only
// digits and a plus sign preceding all digits are kept. A national trunk "0"
// is replaced by "+"+countryCode, and a bare country code gets its "+". The
// result is not E.164-validated. ok is false when no digits remain.
func NormalizePhone(raw, countryCode string) (string, bool) {
	if countryCode == "" {
		countryCode = DefaultCountryCode
	}
	countryCode = strings.TrimPrefix(strings.TrimSpace(countryCode), "+")

	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && b.Len() == 0:
			b.WriteRune(r)
		}
	}

	cleaned := b.String()
	if strings.TrimPrefix(cleaned, "+") == "" {
		return "", false
	}

	switch {
	case strings.HasPrefix(cleaned, "+"):
		return cleaned, true
	case strings.HasPrefix(cleaned, "0"):
		return "+" + countryCode + cleaned[1:], true
	default:
		// Covers both a bare country code and any other number.
		return "+" + cleaned, true
	}
}
