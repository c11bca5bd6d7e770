package model

import "time"

// Shift is the part of the day an occurrence happened in.
type Shift string

const (
	ShiftMorning   Shift = "morning"   // 06:00-11:59
	ShiftAfternoon Shift = "afternoon" // 12:00-17:59
	ShiftEvening   Shift = "evening"   // 18:00-23:59
	ShiftNight     Shift = "night"     // 00:00-05:59
)

// Shifts lists every shift in chronological order starting at dawn.
var Shifts = []Shift{ShiftMorning, ShiftAfternoon, ShiftEvening, ShiftNight}

// Valid reports whether s is a known shift.
func (s Shift) Valid() bool {
	switch s {
	case ShiftMorning, ShiftAfternoon, ShiftEvening, ShiftNight:
		return true
	}
	return false
}

// ShiftFor returns the shift containing t's local hour.
func ShiftFor(t time.Time) Shift {
	switch h := t.Hour(); {
	case h < 6:
		return ShiftNight
	case h < 12:
		return ShiftMorning
	case h < 18:
		return ShiftAfternoon
	default:
		return ShiftEvening
	}
}
