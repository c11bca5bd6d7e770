package zones

import (
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// FeatureCollection is the engine output. It marshals to a GeoJSON
// FeatureCollection with [lng, lat] coordinates.
type FeatureCollection struct {
	Features []ZonePolygon
}

// Len returns the number of zones.
func (fc FeatureCollection) Len() int { return len(fc.Features) }

// MarshalJSON implements json.Marshaler.
func (fc FeatureCollection) MarshalJSON() ([]byte, error) {
	out := geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(fc.Features))}
	for _, z := range fc.Features {
		out.Features = append(out.Features, &geojson.Feature{
			Geometry: z.Geometry,
			Properties: map[string]any{
				"cluster_id":       z.Properties.ClusterID,
				"risk_level":       z.Properties.RiskLevel,
				"occurrence_count": z.Properties.OccurrenceCount,
			},
		})
	}
	return json.Marshal(&out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (fc *FeatureCollection) UnmarshalJSON(data []byte) error {
	var in geojson.FeatureCollection
	if err := json.Unmarshal(data, &in); err != nil {
		return eris.Wrap(err, "zones: decode feature collection")
	}

	features := make([]ZonePolygon, 0, len(in.Features))
	for i, f := range in.Features {
		props, err := decodeProperties(f.Properties)
		if err != nil {
			return eris.Wrapf(err, "zones: feature %d", i)
		}
		features = append(features, ZonePolygon{Geometry: f.Geometry, Properties: props})
	}
	fc.Features = features
	return nil
}

// decodeProperties round-trips the generic property map through the typed struct.
func decodeProperties(m map[string]any) (ZoneProperties, error) {
	var props ZoneProperties
	raw, err := json.Marshal(m)
	if err != nil {
		return props, eris.Wrap(err, "encode properties")
	}
	if err := json.Unmarshal(raw, &props); err != nil {
		return props, eris.Wrap(err, "decode properties")
	}
	return props, nil
}
