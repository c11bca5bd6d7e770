package zones

import (
	"slices"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

// OverlapMode selects what happens to a zone that overlaps an accepted one.
type OverlapMode string

// Overlap modes.
const (
	// OverlapMerge unions the overlapping zones into one.
	OverlapMerge OverlapMode = "merge"
	// OverlapReject drops the later zone.
	OverlapReject OverlapMode = "reject"
)

// Valid reports whether m is a known mode.
func (m OverlapMode) Valid() bool {
	return m == OverlapMerge || m == OverlapReject
}

// CountPolicy selects the occurrence count of a merged zone.
type CountPolicy string

// Count policies.
const (
	// CountSum adds the counts of every merged zone.
	CountSum CountPolicy = "sum"
	// CountKeep keeps the count the surviving zone was accepted with.
	CountKeep CountPolicy = "keep"
)

// Valid reports whether p is a known policy.
func (p CountPolicy) Valid() bool {
	return p == CountSum || p == CountKeep
}

// ZoneProperties are the attributes rendered with each zone.
type ZoneProperties struct {
	ClusterID       int       `json:"cluster_id"`
	RiskLevel       RiskLevel `json:"risk_level"`
	OccurrenceCount int       `json:"occurrence_count"`
}

// ZonePolygon is a zone geometry with its properties.
type ZonePolygon struct {
	Geometry   geom.T
	Properties ZoneProperties
}

// OverlapResolver removes significant overlaps between zones.
type OverlapResolver struct {
	Engine GeometryEngine
	// Threshold is the intersection area over the smaller area above which two
	// zones are considered overlapping.
	Threshold float64
	Mode      OverlapMode
	Counts    CountPolicy
	Risk      RiskThresholds
}

type acceptedZone struct {
	ZonePolygon
	seq  int // processing order of the earliest member
	area float64
}

// Resolve processes zones in the given order (largest first) and returns zones
// that pairwise overlap by at most Threshold. In merge mode a candidate absorbs
// every accepted zone it overlaps, repeatedly, until the union overlaps nothing
// else. The union keeps the cluster id of its earliest member.
func (r OverlapResolver) Resolve(zones []ZonePolygon) []ZonePolygon {
	accepted := make([]acceptedZone, 0, len(zones))

	for seq, zone := range zones {
		cand := acceptedZone{ZonePolygon: zone, seq: seq, area: r.Engine.Area(zone.Geometry)}

		hits, err := r.overlapping(cand, accepted)
		if err != nil {
			zap.L().Warn("zones: intersection failed, dropping zone",
				zap.Int("cluster_id", zone.Properties.ClusterID),
				zap.Error(err),
			)
			continue
		}
		if len(hits) == 0 {
			accepted = append(accepted, cand)
			continue
		}

		if r.Mode == OverlapReject {
			zap.L().Debug("zones: rejecting overlapping zone",
				zap.Int("cluster_id", zone.Properties.ClusterID),
				zap.Int("overlaps", len(hits)),
			)
			continue
		}

		merged, remaining, ok := r.merge(cand, accepted, hits)
		if !ok {
			continue
		}
		accepted = append(remaining, merged)
	}

	slices.SortFunc(accepted, func(a, b acceptedZone) int { return a.seq - b.seq })

	out := make([]ZonePolygon, len(accepted))
	for i, a := range accepted {
		out[i] = a.ZonePolygon
	}
	return out
}

// merge unions cand with accepted[hits] and anything the growing union overlaps.
// It returns the merged zone and the accepted zones left untouched. On a geometry
// failure it reports false and accepted must be used unchanged.
func (r OverlapResolver) merge(cand acceptedZone, accepted []acceptedZone, hits []int) (acceptedZone, []acceptedZone, bool) {
	remaining := slices.Clone(accepted)
	merged := cand
	total := cand.Properties.OccurrenceCount
	keep := cand

	for len(hits) > 0 {
		for _, i := range hits {
			other := remaining[i]
			g, err := r.Engine.Union(merged.Geometry, other.Geometry)
			if err != nil {
				zap.L().Warn("zones: union failed, dropping zone",
					zap.Int("cluster_id", cand.Properties.ClusterID),
					zap.Int("other_cluster_id", other.Properties.ClusterID),
					zap.Error(err),
				)
				return acceptedZone{}, nil, false
			}
			merged.Geometry = g
			total += other.Properties.OccurrenceCount
			if other.seq < keep.seq {
				keep = other
			}
		}

		// Remove absorbed zones, highest index first.
		slices.Sort(hits)
		for j := len(hits) - 1; j >= 0; j-- {
			remaining = slices.Delete(remaining, hits[j], hits[j]+1)
		}

		merged.area = r.Engine.Area(merged.Geometry)
		var err error
		if hits, err = r.overlapping(merged, remaining); err != nil {
			zap.L().Warn("zones: intersection failed, dropping zone",
				zap.Int("cluster_id", cand.Properties.ClusterID),
				zap.Error(err),
			)
			return acceptedZone{}, nil, false
		}
	}

	count := total
	if r.Counts == CountKeep {
		count = keep.Properties.OccurrenceCount
	}
	merged.seq = keep.seq
	merged.Properties = ZoneProperties{
		ClusterID:       keep.Properties.ClusterID,
		RiskLevel:       r.Risk.Classify(count),
		OccurrenceCount: count,
	}
	return merged, remaining, true
}

// overlapping returns the indices of accepted zones that overlap z beyond the threshold.
func (r OverlapResolver) overlapping(z acceptedZone, accepted []acceptedZone) ([]int, error) {
	var hits []int
	for i, a := range accepted {
		frac, err := r.overlapFraction(z, a)
		if err != nil {
			return nil, eris.Wrapf(err, "zones: intersect with cluster %d", a.Properties.ClusterID)
		}
		if frac > r.Threshold {
			hits = append(hits, i)
		}
	}
	return hits, nil
}

func (r OverlapResolver) overlapFraction(a, b acceptedZone) (float64, error) {
	smaller := min(a.area, b.area)
	if smaller <= 0 {
		return 0, nil
	}
	inter, err := r.Engine.IntersectionArea(a.Geometry, b.Geometry)
	if err != nil {
		return 0, err
	}
	return inter / smaller, nil
}
