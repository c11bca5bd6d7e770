package model

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlissonDuarte/itssafe-backend/internal/zones"
)

func TestOccurrenceTypeValid(t *testing.T) {
	t.Parallel()

	for _, typ := range OccurrenceTypes {
		assert.True(t, typ.Valid(), typ)
	}
	assert.False(t, OccurrenceType("Suspicious Activity").Valid())
	assert.False(t, OccurrenceType("theft").Valid())
}

func TestParseOccurrenceType(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]OccurrenceType{
		"Theft":             OccurrenceTheft,
		" theft ":           OccurrenceTheft,
		"STRANGE MOVEMENT":  OccurrenceStrangeMovement,
		"aggressive_person": OccurrenceAggressivePerson,
	} {
		got, ok := ParseOccurrenceType(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	_, ok := ParseOccurrenceType("Vandalism")
	assert.False(t, ok)
}

func TestShiftFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		hour int
		want Shift
	}{
		{0, ShiftNight},
		{5, ShiftNight},
		{6, ShiftMorning},
		{11, ShiftMorning},
		{12, ShiftAfternoon},
		{17, ShiftAfternoon},
		{18, ShiftEvening},
		{23, ShiftEvening},
	}
	for _, tt := range tests {
		at := time.Date(2024, 3, 1, tt.hour, 30, 0, 0, time.UTC)
		assert.Equal(t, tt.want, ShiftFor(at), "hour %d", tt.hour)
	}
}

func TestOccurrenceNormalize(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC)
	o := Occurrence{Description: "  phone stolen ", Type: OccurrenceTheft, Lat: -23.55, Lng: -46.63}
	require.NoError(t, o.Normalize(now))

	assert.NotEqual(t, uuid.Nil, o.ID)
	assert.Equal(t, now, o.EventAt)
	assert.Equal(t, now, o.CreatedAt)
	assert.Equal(t, ShiftEvening, o.Shift)
	assert.Equal(t, "phone stolen", o.Description)
	assert.Equal(t, zones.GeoPoint{Lat: -23.55, Lng: -46.63}, o.Point())
}

func TestOccurrenceNormalize_KeepsExplicitFields(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	event := time.Date(2024, 3, 1, 3, 0, 0, 0, time.UTC)
	o := Occurrence{ID: id, Type: OccurrenceDrugs, Lat: 1, Lng: 2, EventAt: event, Shift: ShiftMorning}
	require.NoError(t, o.Normalize(time.Now()))

	assert.Equal(t, id, o.ID)
	assert.Equal(t, ShiftMorning, o.Shift)
}

func TestOccurrenceNormalize_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		occ  Occurrence
	}{
		{"type", Occurrence{Type: "Robbery", Lat: 1, Lng: 1}},
		{"lat", Occurrence{Type: OccurrenceFight, Lat: 91, Lng: 1}},
		{"lng", Occurrence{Type: OccurrenceFight, Lat: 1, Lng: -181}},
		{"shift", Occurrence{Type: OccurrenceFight, Lat: 1, Lng: 1, Shift: "dusk"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.occ.Normalize(time.Now())
			assert.ErrorIs(t, err, ErrInvalidOccurrence)
		})
	}
}

func TestPoints(t *testing.T) {
	t.Parallel()

	occs := []Occurrence{{Lat: 1, Lng: 2}, {Lat: 3, Lng: 4}}
	assert.Equal(t, []zones.GeoPoint{{Lat: 1, Lng: 2}, {Lat: 3, Lng: 4}}, Points(occs))
	assert.Empty(t, Points(nil))
}
