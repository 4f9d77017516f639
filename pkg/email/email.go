// Package email derives presentational defaults from an email address.
package email

import (
	"strings"
	"unicode"
)

// DeriveDisplayName builds a human-looking display name from the local part
// of an email address, for accounts created without a full name.
// "dana.miller@example.com" becomes "Dana Miller"; an unusable address
// falls back to "New User".
func DeriveDisplayName(email string) string {
	localPart := email
	if at := strings.IndexByte(email, '@'); at >= 0 {
		localPart = email[:at]
	}

	parts := strings.FieldsFunc(localPart, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+'
	})
	if len(parts) == 0 {
		return "New User"
	}

	words := make([]string, 0, len(parts))
	for _, part := range parts {
		words = append(words, capitalize(part))
	}
	return strings.Join(words, " ")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
