package command

import "strings"

// Normalize lower-cases text and collapses runs of whitespace.
func Normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}
