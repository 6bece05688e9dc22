package services

import (
	"strings"
	"unicode"
)

// NormalizeIdentifier strips every non-digit and requires exactly 11 digits
// that are not all the same.
func NormalizeIdentifier(raw string) (string, error) {
	digits := digitsOnly(raw)
	if len(digits) != 11 {
		return "", ErrInvalidIdentifier
	}
	if strings.Count(digits, digits[:1]) == len(digits) {
		return "", ErrInvalidIdentifier
	}
	return digits, nil
}

func digitsOnly(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FormatIdentifier renders 11 digits as ddd.ddd.ddd-dd.
func FormatIdentifier(digits string) string {
	if len(digits) != 11 {
		return digits
	}
	return digits[0:3] + "." + digits[3:6] + "." + digits[6:9] + "-" + digits[9:11]
}

// identifierForms lists the textual forms a stored super-user identifier may take.
func identifierForms(digits string) []string {
	forms := []string{digits, FormatIdentifier(digits)}
	if trimmed := strings.TrimLeft(digits, "0"); trimmed != "" && trimmed != digits {
		forms = append(forms, trimmed)
	}
	return forms
}

// NormalizeSecret trims surrounding whitespace and rejects an empty result.
func NormalizeSecret(raw string) (string, error) {
	secret := strings.TrimFunc(raw, unicode.IsSpace)
	if secret == "" {
		return "", ErrInvalidSecret
	}
	return secret, nil
}
