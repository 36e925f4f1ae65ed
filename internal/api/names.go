package api

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DeriveDisplayName builds the human label for a publication name that has
// no explicit display name: "daily-times" becomes "Daily Times".
func DeriveDisplayName(name string) string {
	parts := strings.FieldsFunc(strings.TrimSpace(name), func(r rune) bool {
		return r == '-' || r == '_' || r == ' '
	})
	if len(parts) == 0 {
		return strings.TrimSpace(name)
	}
	return cases.Title(language.Und).String(strings.Join(parts, " "))
}
