package services

import (
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// whitespaceRE collapses consecutive whitespace to a single space.
var whitespaceRE = regexp.MustCompile(`\s+`)

// cleanLine normalizes to NFC, trims, and collapses internal whitespace.
func cleanLine(s string) string {
	s = norm.NFC.String(s)
	return whitespaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
}

// cleanText normalizes to NFC and trims, preserving line breaks.
func cleanText(s string) string {
	return strings.TrimSpace(norm.NFC.String(s))
}

// optional returns nil for blank values so that absent and empty are stored alike.
func optional(p *string, clean func(string) string) *string {
	if p == nil {
		return nil
	}
	v := clean(*p)
	if v == "" {
		return nil
	}
	return &v
}

// normalizeEmail trims and lower-cases an address.
func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// validEmail accepts a bare RFC 5322 address with a dotted domain.
func validEmail(s string) bool {
	if s == "" || utf8.RuneCountInString(s) > 254 {
		return false
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return false
	}
	at := strings.LastIndexByte(s, '@')
	return at > 0 && strings.Contains(s[at+1:], ".")
}

// tooLong reports whether s exceeds max runes (max <= 0 disables the check).
func tooLong(s string, max int) bool {
	return max > 0 && utf8.RuneCountInString(s) > max
}
