package model

import (
	"slices"
	"strings"
)

// Filter narrows the occurrences considered for zone generation. Empty slices
// match everything.
type Filter struct {
	Types  []OccurrenceType `json:"types,omitempty"`
	Shifts []Shift          `json:"shifts,omitempty"`
}

// ParseFilter builds a Filter from raw query values. Values may be repeated or
// comma separated; unknown values are dropped rather than rejected.
func ParseFilter(rawTypes, rawShifts []string) Filter {
	var f Filter
	for _, v := range splitValues(rawTypes) {
		t := OccurrenceType(v)
		if t.Valid() && !slices.Contains(f.Types, t) {
			f.Types = append(f.Types, t)
		}
	}
	for _, v := range splitValues(rawShifts) {
		s := Shift(strings.ToLower(v))
		if s.Valid() && !slices.Contains(f.Shifts, s) {
			f.Shifts = append(f.Shifts, s)
		}
	}
	return f
}

// Empty reports whether f matches every occurrence.
func (f Filter) Empty() bool {
	return len(f.Types) == 0 && len(f.Shifts) == 0
}

// Match reports whether o passes f.
func (f Filter) Match(o Occurrence) bool {
	if len(f.Types) > 0 && !slices.Contains(f.Types, o.Type) {
		return false
	}
	if len(f.Shifts) > 0 && !slices.Contains(f.Shifts, o.Shift) {
		return false
	}
	return true
}

// TypeStrings returns the type filter as plain strings for SQL parameters.
func (f Filter) TypeStrings() []string {
	out := make([]string, len(f.Types))
	for i, t := range f.Types {
		out[i] = string(t)
	}
	return out
}

// ShiftStrings returns the shift filter as plain strings for SQL parameters.
func (f Filter) ShiftStrings() []string {
	out := make([]string, len(f.Shifts))
	for i, s := range f.Shifts {
		out[i] = string(s)
	}
	return out
}

// Key is a stable string form of f used in cache keys.
func (f Filter) Key() string {
	return "t=" + strings.Join(sortedCopy(f.TypeStrings()), ",") +
		";s=" + strings.Join(sortedCopy(f.ShiftStrings()), ",")
}

func splitValues(raw []string) []string {
	var out []string
	for _, r := range raw {
		for _, v := range strings.Split(r, ",") {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

func sortedCopy(in []string) []string {
	out := slices.Clone(in)
	slices.Sort(out)
	return out
}
