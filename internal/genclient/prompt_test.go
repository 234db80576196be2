package genclient

import (
	"strings"
	"testing"
)

func TestBuildInstruction(t *testing.T) {
	got := BuildInstruction("  blue tile  ")
	if !strings.Contains(got, "Replace only the floor surface with blue tile.") {
		t.Fatalf("instruction missing trimmed style: %q", got)
	}
	for _, constraint := range []string{
		"garage floor",
		"camera perspective",
		"shadows",
		"Return only the edited image with no explanatory text.",
	} {
		if !strings.Contains(got, constraint) {
			t.Fatalf("instruction missing %q: %q", constraint, got)
		}
	}
}

func TestBuildInstructionDefaultsEmptyStyle(t *testing.T) {
	got := BuildInstruction("   ")
	if !strings.Contains(got, "a clean epoxy-coated finish") {
		t.Fatalf("expected default style, got %q", got)
	}
}

func TestStyleLabel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "blue tile", want: "Blue Tile"},
		{in: "  metallic epoxy ", want: "Metallic Epoxy"},
		{in: "POLISHED concrete", want: "Polished Concrete"},
		{in: "", want: "Custom Floor"},
	}
	for _, tc := range tests {
		if got := StyleLabel(tc.in); got != tc.want {
			t.Fatalf("StyleLabel(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
