package dialogue

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	MinAddressLength = 5
	MinDateLength    = 5
)

var badNumbers = map[string]bool{
	"0000000000": true,
	"1111111111": true,
	"1234567890": true,
	"9999999999": true,
	"0123456789": true,
}

func digitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}

// NormalizePhoneNumber brings Russian numbers to +7XXXXXXXXXX and keeps
// the leading + of international ones.
func NormalizePhoneNumber(phone string) string {
	phone = strings.TrimSpace(phone)
	cleaned := digitsOnly(phone)

	switch {
	case strings.HasPrefix(cleaned, "7") && len(cleaned) == 11:
		return "+" + cleaned
	case strings.HasPrefix(cleaned, "8") && len(cleaned) == 11:
		return "+7" + cleaned[1:]
	case strings.HasPrefix(cleaned, "9") && len(cleaned) == 10:
		return "+7" + cleaned
	case strings.HasPrefix(phone, "+"):
		return "+" + cleaned
	}
	return cleaned
}

func IsValidPhoneNumber(phone string) bool {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return false
	}

	// Only digits and the usual separators.
	for i, r := range phone {
		switch {
		case unicode.IsDigit(r), r == ' ', r == '-', r == '(', r == ')':
		case r == '+' && i == 0:
		default:
			return false
		}
	}

	cleaned := digitsOnly(phone)
	if len(cleaned) < 10 || len(cleaned) > 15 {
		return false
	}
	if badNumbers[cleaned] || badNumbers[cleaned[len(cleaned)-10:]] {
		return false
	}
	return true
}

// ValidFreeText trims the input and checks it has at least minLen characters.
func ValidFreeText(text string, minLen int) (string, bool) {
	text = strings.TrimSpace(text)
	return text, utf8.RuneCountInString(text) >= minLen
}
