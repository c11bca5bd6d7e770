// Package model holds the occurrence records that feed zone generation.
package model

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/AlissonDuarte/itssafe-backend/internal/zones"
)

// OccurrenceType classifies a reported incident.
type OccurrenceType string

const (
	OccurrenceTheft            OccurrenceType = "Theft"
	OccurrenceStrangeMovement  OccurrenceType = "Strange Movement"
	OccurrenceFight            OccurrenceType = "Fight"
	OccurrenceAggressivePerson OccurrenceType = "Aggressive Person"
	OccurrenceDrugs            OccurrenceType = "Drugs"
)

// OccurrenceTypes lists every known type in display order.
var OccurrenceTypes = []OccurrenceType{
	OccurrenceTheft,
	OccurrenceStrangeMovement,
	OccurrenceFight,
	OccurrenceAggressivePerson,
	OccurrenceDrugs,
}

// Valid reports whether t is a known occurrence type.
func (t OccurrenceType) Valid() bool {
	return slices.Contains(OccurrenceTypes, t)
}

// ParseOccurrenceType matches s against the known types without regard to
// case, surrounding space or underscores used in place of spaces.
func ParseOccurrenceType(s string) (OccurrenceType, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), "_", " ")
	for _, t := range OccurrenceTypes {
		if strings.EqualFold(string(t), s) {
			return t, true
		}
	}
	return "", false
}

// ErrInvalidOccurrence is returned for records that cannot be stored.
var ErrInvalidOccurrence = eris.New("model: invalid occurrence")

// Occurrence is a single geolocated incident report.
type Occurrence struct {
	ID          uuid.UUID      `json:"id" yaml:"id"`
	Description string         `json:"description" yaml:"description"`
	Type        OccurrenceType `json:"type" yaml:"type"`
	Lat         float64        `json:"lat" yaml:"lat"`
	Lng         float64        `json:"lng" yaml:"lng"`
	Shift       Shift          `json:"shift,omitempty" yaml:"shift,omitempty"`
	EventAt     time.Time      `json:"event_at" yaml:"event_at"`
	CreatedAt   time.Time      `json:"created_at,omitempty" yaml:"created_at,omitempty"`
}

// Point returns the occurrence location.
func (o Occurrence) Point() zones.GeoPoint {
	return zones.GeoPoint{Lat: o.Lat, Lng: o.Lng}
}

// Normalize fills the derived fields (id, shift, created_at) and validates
// the record.
func (o *Occurrence) Normalize(now time.Time) error {
	if !o.Type.Valid() {
		return eris.Wrapf(ErrInvalidOccurrence, "unknown type %q", o.Type)
	}
	if !o.Point().Valid() {
		return eris.Wrapf(ErrInvalidOccurrence, "coordinates out of range (%f, %f)", o.Lat, o.Lng)
	}
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.EventAt.IsZero() {
		o.EventAt = now
	}
	if o.Shift == "" {
		o.Shift = ShiftFor(o.EventAt)
	}
	if !o.Shift.Valid() {
		return eris.Wrapf(ErrInvalidOccurrence, "unknown shift %q", o.Shift)
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.Description = strings.TrimSpace(o.Description)
	return nil
}

// Points extracts the locations of occs in order.
func Points(occs []Occurrence) []zones.GeoPoint {
	pts := make([]zones.GeoPoint, len(occs))
	for i, o := range occs {
		pts[i] = o.Point()
	}
	return pts
}
