// Package fileutil provides filename and directory helpers shared by the
// download and upload stages.
package fileutil

import (
	"strings"
	"unicode"
)

const maxFileNameLength = 200

// invalidFileNameRunes are characters that hosting providers or filesystems
// reject or mishandle in names, including a few full-width variants seen in
// extractor-produced titles.
const invalidFileNameRunes = "<>:\"/\\|?*？｜#%&{}$!@+`="

// SanitizeFileName replaces unsafe characters in a filename with underscores,
// trims surrounding whitespace, dots, and underscores, and caps the result at
// 200 characters. An empty result collapses to a single underscore so the
// caller always gets a usable name.
func SanitizeFileName(name string) string {
	sanitized := strings.Map(func(r rune) rune {
		if strings.ContainsRune(invalidFileNameRunes, r) || unicode.IsControl(r) {
			return '_'
		}
		return r
	}, name)

	sanitized = strings.TrimFunc(sanitized, func(r rune) bool {
		return unicode.IsSpace(r) || r == '.' || r == '_'
	})

	if runes := []rune(sanitized); len(runes) > maxFileNameLength {
		sanitized = string(runes[:maxFileNameLength])
	}
	if sanitized == "" {
		return "_"
	}
	return sanitized
}
