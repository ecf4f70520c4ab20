// Package utils provides common utility functions.
package utils

import (
	"strings"
	"unicode"
)

// StringHelper provides string utility functions.
type StringHelper struct{}

// NewStringHelper creates a new string helper.
func NewStringHelper() *StringHelper {
	return &StringHelper{}
}

// NormalizeWhitespace replaces multiple whitespace with single space.
func (s *StringHelper) NormalizeWhitespace(str string) string {
	return strings.Join(strings.Fields(str), " ")
}

// TruncateString truncates string to maxLength runes.
func (s *StringHelper) TruncateString(str string, maxLength int) string {
	runes := []rune(str)
	if len(runes) <= maxLength {
		return str
	}

	return string(runes[:maxLength]) + "..."
}

// FoldKey reduces a column header to its comparison key: lowercase with
// all spaces and underscores removed.
func FoldKey(str string) string {
	var sb strings.Builder

	sb.Grow(len(str))

	for _, r := range strings.TrimSpace(str) {
		if r == '_' || unicode.IsSpace(r) {
			continue
		}

		sb.WriteRune(unicode.ToLower(r))
	}

	return sb.String()
}

// Digits returns only the decimal digits of str, in order.
func Digits(str string) string {
	var sb strings.Builder

	for _, r := range str {
		if r >= '0' && r <= '9' {
			sb.WriteRune(r)
		}
	}

	return sb.String()
}

// TitleWords turns a label such as "Call Spikes" or "IMEI–Multiple MSISDNs"
// into an underscore separated file-name fragment.
func TitleWords(label string) string {
	fields := strings.FieldsFunc(label, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	return strings.Join(fields, "_")
}
