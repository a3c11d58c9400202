package utils

import (
	"strings"
	"unicode"
)

// Slugify converts a title into the lowercase dash-separated form the
// scrape service expects, e.g. "Fullmetal Alchemist: Brotherhood" ->
// "fullmetal-alchemist-brotherhood"
func Slugify(title string) string {
	var b strings.Builder
	lastDash := true // Suppress a leading dash

	for _, r := range strings.ToLower(title) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}

	return strings.TrimSuffix(b.String(), "-")
}
