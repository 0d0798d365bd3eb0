package common

import (
	"strings"
	"unicode"
)

const NA = "N/A"

// IfEmptyStr returns defval when src is blank
func IfEmptyStr(src string, defval string) string {
	if strings.TrimSpace(src) == "" {
		return defval
	}
	return src
}

// SafeFileName keeps letters, digits, dash and underscore; other runes become underscores
func SafeFileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "export"
	}
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' {
			return r
		}
		return '_'
	}, name)
}
