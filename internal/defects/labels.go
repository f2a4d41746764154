package defects

import "strings"

// DefaultLabels is the label set used when none is configured.
var DefaultLabels = []string{
	"scratch", "crack", "dent", "discoloration", "contamination",
	"misalignment", "missing_part", "burr", "deformation", "none",
}

// LabelSet is the configured finite set of defect categories.
// The first label is the fallback for anything the set does not recognize.
type LabelSet struct {
	labels []string
	lookup map[string]string
}

// NewLabelSet builds a set from labels, trimming entries and dropping blanks
// and duplicates while keeping the configured order.
func NewLabelSet(labels []string) LabelSet {
	s := LabelSet{lookup: make(map[string]string, len(labels))}
	for _, l := range labels {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		key := labelKey(l)
		if _, ok := s.lookup[key]; ok {
			continue
		}
		s.lookup[key] = l
		s.labels = append(s.labels, l)
	}
	return s
}

// ParseLabels splits a comma-separated label list.
func ParseLabels(csv string) []string {
	parts := strings.Split(csv, ",")
	labels := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			labels = append(labels, p)
		}
	}
	return labels
}

// Labels returns the labels in configured order.
func (s LabelSet) Labels() []string {
	return s.labels
}

// Fallback returns the designated fallback label: the first configured
// label, or "none" for an empty set.
func (s LabelSet) Fallback() string {
	if len(s.labels) == 0 {
		return NoDefectLocation
	}
	return s.labels[0]
}

// Contains reports whether label is a member of the set as spelled.
func (s LabelSet) Contains(label string) bool {
	v, ok := s.lookup[labelKey(label)]
	return ok && v == label
}

// Normalize maps a candidate label onto the set. Matching ignores case,
// surrounding space, and treats runs of internal whitespace as "_".
// Misses return Fallback, so the result is always a member of the set
// (or "none" for an empty set).
func (s LabelSet) Normalize(candidate string) string {
	if v, ok := s.lookup[labelKey(candidate)]; ok {
		return v
	}
	return s.Fallback()
}

func labelKey(l string) string {
	return strings.Join(strings.Fields(strings.ToLower(l)), "_")
}
