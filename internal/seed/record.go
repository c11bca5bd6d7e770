package seed

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/AlissonDuarte/itssafe-backend/internal/model"
)

// record is one raw import row before validation. Location comes either from
// Lat/Lng or from Local, the [lat, lng] pair used by the mobile app export.
type record struct {
	ID          string    `json:"id" yaml:"id"`
	Description string    `json:"description" yaml:"description"`
	Type        string    `json:"type" yaml:"type"`
	Lat         *float64  `json:"lat" yaml:"lat"`
	Lng         *float64  `json:"lng" yaml:"lng"`
	Local       []float64 `json:"local" yaml:"local"`
	Shift       string    `json:"shift" yaml:"shift"`
	EventAt     string    `json:"event_at" yaml:"event_at"`
	CreatedAt   string    `json:"created_at" yaml:"created_at"`
	UserUUID    string    `json:"user_uuid" yaml:"user_uuid"`

	// err is a parse failure found while reading the row.
	err error
}

func (r record) occurrence() (model.Occurrence, error) {
	var occ model.Occurrence
	if r.err != nil {
		return occ, r.err
	}

	typ, ok := model.ParseOccurrenceType(r.Type)
	if !ok {
		return occ, eris.Wrapf(model.ErrInvalidOccurrence, "unknown type %q", r.Type)
	}
	occ.Type = typ
	occ.Description = r.Description

	switch {
	case r.Lat != nil && r.Lng != nil:
		occ.Lat, occ.Lng = *r.Lat, *r.Lng
	case len(r.Local) == 2:
		occ.Lat, occ.Lng = r.Local[0], r.Local[1]
	default:
		return occ, eris.Wrap(model.ErrInvalidOccurrence, "missing location")
	}

	if r.ID != "" {
		id, err := uuid.Parse(strings.TrimSpace(r.ID))
		if err != nil {
			return occ, eris.Wrapf(model.ErrInvalidOccurrence, "bad id %q", r.ID)
		}
		occ.ID = id
	}
	if r.Shift != "" {
		occ.Shift = model.Shift(strings.ToLower(strings.TrimSpace(r.Shift)))
	}

	var err error
	if occ.EventAt, err = parseTime(r.EventAt); err != nil {
		return occ, err
	}
	if occ.CreatedAt, err = parseTime(r.CreatedAt); err != nil {
		return occ, err
	}
	return occ, nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"02/01/2006 15:04",
	"02/01/2006",
}

// parseTime accepts RFC 3339, common SQL and day-first layouts, and unix
// seconds. Empty input yields the zero time.
func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	return time.Time{}, eris.Wrapf(model.ErrInvalidOccurrence, "bad time %q", s)
}

func parseCoord(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	if err != nil {
		return nil, eris.Wrapf(model.ErrInvalidOccurrence, "bad coordinate %q", s)
	}
	return &v, nil
}
