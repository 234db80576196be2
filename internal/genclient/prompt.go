package genclient

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// BuildInstruction composes the fixed edit instruction around the
// user-supplied style description. The template pins down everything the
// model must keep untouched so only the floor surface changes.
func BuildInstruction(style string) string {
	style = strings.TrimSpace(style)
	if style == "" {
		style = "a clean epoxy-coated finish"
	}
	parts := []string{
		"Edit this photo of a garage floor.",
		"Replace only the floor surface with " + style + ".",
		"Keep the camera perspective, walls, stored items, lighting and shadows exactly as they are.",
		"Do not add, remove or move any objects.",
		"Return only the edited image with no explanatory text.",
	}
	return strings.Join(parts, " ")
}

// StyleLabel renders the style description as a title-cased caption for the
// quote card.
func StyleLabel(style string) string {
	style = strings.TrimSpace(style)
	if style == "" {
		return "Custom Floor"
	}
	return cases.Title(language.English).String(style)
}
