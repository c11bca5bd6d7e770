package seed

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/AlissonDuarte/itssafe-backend/internal/fetcher"
)

func readJSON(ctx context.Context, r io.Reader) ([]record, error) {
	items, errs := fetcher.DecodeJSONArray[record](ctx, r)
	var out []record
	for it := range items {
		out = append(out, it)
	}
	return out, <-errs
}

func readYAML(r io.Reader) ([]record, error) {
	var out []record
	if err := yaml.NewDecoder(r).Decode(&out); err != nil && err != io.EOF {
		return nil, eris.Wrap(err, "yaml: decode")
	}
	return out, nil
}

func readCSV(ctx context.Context, r io.Reader, opts fetcher.CSVOptions) ([]record, error) {
	table, err := fetcher.ReadCSV(ctx, r, opts)
	if err != nil {
		return nil, err
	}
	return tableRecords(table)
}

func readXLSX(path string, opts fetcher.XLSXOptions) ([]record, error) {
	table, err := fetcher.ReadXLSX(path, opts)
	if err != nil {
		return nil, err
	}
	return tableRecords(table)
}

// Header aliases accepted in tabular files, matched without regard to case.
var (
	idColumns          = []string{"id", "uuid"}
	typeColumns        = []string{"type", "occurrence_type", "occurrencetype"}
	descriptionColumns = []string{"description", "desc", "descriptio"}
	latColumns         = []string{"lat", "latitude"}
	lngColumns         = []string{"lng", "lon", "long", "longitude"}
	localColumns       = []string{"local", "location"}
	shiftColumns       = []string{"shift"}
	eventColumns       = []string{"event_at", "date", "datetime", "occurred_at"}
	createdColumns     = []string{"created_at"}
)

type columns struct {
	id, typ, description, lat, lng, local, shift, event, created int
}

func locate(t fetcher.Table, aliases []string) int {
	for _, a := range aliases {
		if i := t.Column(a); i >= 0 {
			return i
		}
	}
	return -1
}

func tableRecords(t fetcher.Table) ([]record, error) {
	if t.Header == nil {
		return nil, nil
	}
	c := columns{
		id:          locate(t, idColumns),
		typ:         locate(t, typeColumns),
		description: locate(t, descriptionColumns),
		lat:         locate(t, latColumns),
		lng:         locate(t, lngColumns),
		local:       locate(t, localColumns),
		shift:       locate(t, shiftColumns),
		event:       locate(t, eventColumns),
		created:     locate(t, createdColumns),
	}
	if c.typ < 0 {
		return nil, eris.New("no type column")
	}
	if (c.lat < 0 || c.lng < 0) && c.local < 0 {
		return nil, eris.New("no lat/lng or local column")
	}

	out := make([]record, 0, len(t.Rows))
	for _, row := range t.Rows {
		cell := func(i int) string {
			if i < 0 || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}
		r := record{
			ID:          cell(c.id),
			Type:        cell(c.typ),
			Description: cell(c.description),
			Shift:       cell(c.shift),
			EventAt:     cell(c.event),
			CreatedAt:   cell(c.created),
		}
		var errLat, errLng error
		r.Lat, errLat = parseCoord(cell(c.lat))
		r.Lng, errLng = parseCoord(cell(c.lng))
		r.err = errors.Join(errLat, errLng)
		if r.Lat == nil || r.Lng == nil {
			r.Local = parsePair(cell(c.local))
		}
		out = append(out, r)
	}
	return out, nil
}

// parsePair reads "lat,lng" or "[lat, lng]".
func parsePair(s string) []float64 {
	s = strings.Trim(strings.TrimSpace(s), "[]()")
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return nil
	}
	lat, err1 := parseCoord(parts[0])
	lng, err2 := parseCoord(parts[1])
	if err1 != nil || err2 != nil || lat == nil || lng == nil {
		return nil
	}
	return []float64{*lat, *lng}
}

type kmlPlacemark struct {
	Name        string `xml:"name"`
	Description string `xml:"description"`
	Coordinates string `xml:"Point>coordinates"`
	When        string `xml:"TimeStamp>when"`
}

// readKML takes the occurrence type from each placemark name. KML
// coordinates are lng,lat[,alt].
func readKML(ctx context.Context, r io.Reader) ([]record, error) {
	items, errs := fetcher.StreamXML[kmlPlacemark](ctx, r, "Placemark")
	var out []record
	for p := range items {
		rec := record{Type: p.Name, Description: strings.TrimSpace(p.Description), EventAt: p.When}
		fields := strings.Split(strings.TrimSpace(p.Coordinates), ",")
		if len(fields) >= 2 {
			lng, errLng := parseCoord(fields[0])
			lat, errLat := parseCoord(fields[1])
			if errLng == nil && errLat == nil {
				rec.Lat, rec.Lng = lat, lng
			}
		}
		out = append(out, rec)
	}
	return out, <-errs
}

// readShapefile reads a point shapefile. Attribute names follow the tabular
// aliases, truncated to the 10 characters dBASE allows.
func readShapefile(path string) ([]record, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "shapefile: open %s", path)
	}
	defer func() { _ = reader.Close() }()

	header := make([]string, len(reader.Fields()))
	for i, f := range reader.Fields() {
		header[i] = strings.TrimRight(f.String(), "\x00")
	}
	t := fetcher.Table{Header: header}
	c := columns{
		id:          locate(t, idColumns),
		typ:         locate(t, typeColumns),
		description: locate(t, descriptionColumns),
		shift:       locate(t, shiftColumns),
		event:       locate(t, eventColumns),
		created:     locate(t, createdColumns),
	}
	if c.typ < 0 {
		return nil, eris.New("shapefile: no type attribute")
	}

	attr := func(i int) string {
		if i < 0 {
			return ""
		}
		return strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00"))
	}

	var out []record
	for reader.Next() {
		_, shape := reader.Shape()
		r := record{
			ID:          attr(c.id),
			Type:        attr(c.typ),
			Description: attr(c.description),
			Shift:       attr(c.shift),
			EventAt:     attr(c.event),
			CreatedAt:   attr(c.created),
		}
		if p, ok := shape.(*shp.Point); ok {
			lat, lng := p.Y, p.X
			r.Lat, r.Lng = &lat, &lng
		}
		out = append(out, r)
	}
	return out, nil
}
