// Package email has helpers for presenting addresses to people and logs.
package email

import (
	"strings"
	"unicode"
)

// Mask hides most of the local part so addresses can appear in logs:
// "alice@example.com" becomes "a***@example.com".
func Mask(addr string) string {
	at := strings.LastIndexByte(addr, '@')
	if at <= 0 {
		return "***"
	}
	first := []rune(addr[:at])[0]
	return string(first) + "***" + addr[at:]
}

// Greeting returns the name to address a recipient by. When name is blank
// it is derived from the local part, "jane.doe@x" giving "Jane".
func Greeting(name, addr string) string {
	if n := strings.TrimSpace(name); n != "" {
		return n
	}
	local := addr
	if at := strings.IndexByte(addr, '@'); at >= 0 {
		local = addr[:at]
	}
	parts := strings.FieldsFunc(local, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+'
	})
	if len(parts) == 0 {
		return "there"
	}
	runes := []rune(parts[0])
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
