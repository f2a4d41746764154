package defects_test

import (
	"slices"
	"testing"

	"github.com/JaimeStill/inspector/internal/defects"
)

func TestLabelSetNormalize(t *testing.T) {
	s := defects.NewLabelSet([]string{" scratch ", "missing_part", "Paint Chip", "", "scratch", "none"})

	if got := s.Labels(); !slices.Equal(got, []string{"scratch", "missing_part", "Paint Chip", "none"}) {
		t.Fatalf("Labels() = %v", got)
	}

	tests := []struct {
		candidate string
		want      string
	}{
		{"scratch", "scratch"},
		{"SCRATCH", "scratch"},
		{"  Missing   Part ", "missing_part"},
		{"paint_chip", "Paint Chip"},
		{"rust", "scratch"},
		{"", "scratch"},
		{"None", "none"},
	}

	for _, tt := range tests {
		t.Run(tt.candidate, func(t *testing.T) {
			if got := s.Normalize(tt.candidate); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.candidate, got, tt.want)
			}
		})
	}
}

func TestLabelSetEmpty(t *testing.T) {
	s := defects.NewLabelSet(nil)

	if got := s.Fallback(); got != "none" {
		t.Errorf("Fallback() = %q, want none", got)
	}
	if got := s.Normalize("dent"); got != "none" {
		t.Errorf("Normalize(dent) = %q, want none", got)
	}
}

func TestLabelSetContains(t *testing.T) {
	s := defects.NewLabelSet(defects.DefaultLabels)

	if !s.Contains("dent") {
		t.Error("Contains(dent) = false")
	}
	if s.Contains("Dent") {
		t.Error("Contains(Dent) = true, want exact spelling only")
	}
	if s.Contains("rust") {
		t.Error("Contains(rust) = true")
	}
}

func TestParseLabels(t *testing.T) {
	got := defects.ParseLabels("scratch, crack,, dent ,")
	want := []string{"scratch", "crack", "dent"}
	if !slices.Equal(got, want) {
		t.Errorf("ParseLabels() = %v, want %v", got, want)
	}
}

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		input string
		want  defects.Severity
		ok    bool
	}{
		{"A", defects.SeverityCritical, true},
		{"b", defects.SeverityMajor, true},
		{" C ", defects.SeverityMinor, true},
		{"High", defects.SeverityCritical, true},
		{"medium", defects.SeverityMajor, true},
		{"LOW", defects.SeverityMinor, true},
		{"X", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := defects.ParseSeverity(tt.input)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseSeverity(%q) = (%q, %v), want (%q, %v)", tt.input, got, ok, tt.want, tt.ok)
		}
	}

	if defects.SeverityCritical.DisplayName() != "High" {
		t.Errorf("DisplayName(A) = %q", defects.SeverityCritical.DisplayName())
	}
}

func TestParseAction(t *testing.T) {
	for _, a := range defects.Actions() {
		got, ok := defects.ParseAction(string(a))
		if !ok || got != a {
			t.Errorf("ParseAction(%q) = (%q, %v)", a, got, ok)
		}
	}

	if got, ok := defects.ParseAction(" reject "); !ok || got != defects.ActionReject {
		t.Errorf("ParseAction(reject) = (%q, %v)", got, ok)
	}
	if _, ok := defects.ParseAction("unknown"); ok {
		t.Error("ParseAction(unknown) should fail")
	}
}
