package zones

import (
	"math"
	"slices"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Parameter errors returned by Generate before any clustering work.
var (
	ErrInvalidEps        = eris.New("zones: eps must be a non-negative number")
	ErrInvalidMinSamples = eris.New("zones: min_samples must be at least 1")
)

// Options configures a Generator. Zero values are replaced by DefaultOptions.
type Options struct {
	// OverlapThreshold must lie in (0,1]. A very small value merges on any overlap.
	OverlapThreshold  float64        `yaml:"overlap_threshold" mapstructure:"overlap_threshold"`
	OverlapMode       OverlapMode    `yaml:"overlap_mode" mapstructure:"overlap_mode"`
	CountPolicy       CountPolicy    `yaml:"count_policy" mapstructure:"count_policy"`
	Degenerate        DegenerateMode `yaml:"degenerate" mapstructure:"degenerate"`
	BufferMeters      float64        `yaml:"buffer_meters" mapstructure:"buffer_meters"`
	SimplifyTolerance float64        `yaml:"simplify_tolerance" mapstructure:"simplify_tolerance"`
	Risk              RiskThresholds `yaml:"risk" mapstructure:"risk"`
	Workers           int            `yaml:"workers" mapstructure:"workers"`
}

// DefaultOptions returns the standard policy set.
func DefaultOptions() Options {
	return Options{
		OverlapThreshold:  0.3,
		OverlapMode:       OverlapMerge,
		CountPolicy:       CountSum,
		Degenerate:        DegenerateBuffer,
		BufferMeters:      25,
		SimplifyTolerance: 0.01,
		Risk:              DefaultRiskThresholds,
		Workers:           1,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.OverlapThreshold == 0 {
		o.OverlapThreshold = d.OverlapThreshold
	}
	if o.OverlapMode == "" {
		o.OverlapMode = d.OverlapMode
	}
	if o.CountPolicy == "" {
		o.CountPolicy = d.CountPolicy
	}
	if o.Degenerate == "" {
		o.Degenerate = d.Degenerate
	}
	if o.BufferMeters == 0 {
		o.BufferMeters = d.BufferMeters
	}
	if o.Risk == (RiskThresholds{}) {
		o.Risk = d.Risk
	}
	return o
}

// Validate checks every policy value.
func (o Options) Validate() error {
	if o.OverlapThreshold <= 0 || o.OverlapThreshold > 1 {
		return eris.Errorf("zones: overlap_threshold %v out of (0,1]", o.OverlapThreshold)
	}
	if !o.OverlapMode.Valid() {
		return eris.Errorf("zones: unknown overlap_mode %q", o.OverlapMode)
	}
	if !o.CountPolicy.Valid() {
		return eris.Errorf("zones: unknown count_policy %q", o.CountPolicy)
	}
	if !o.Degenerate.Valid() {
		return eris.Errorf("zones: unknown degenerate mode %q", o.Degenerate)
	}
	if o.BufferMeters <= 0 {
		return eris.Errorf("zones: buffer_meters must be positive, got %v", o.BufferMeters)
	}
	if o.SimplifyTolerance < 0 {
		return eris.Errorf("zones: simplify_tolerance must not be negative, got %v", o.SimplifyTolerance)
	}
	return o.Risk.Validate()
}

// Generator turns occurrence points into risk-zone features.
// It holds no per-call state and is safe for concurrent use.
type Generator struct {
	clusterer *Clusterer
	hulls     HullBuilder
	risk      RiskThresholds
	overlap   OverlapResolver
}

// NewGenerator builds a Generator over engine. Unset options take their defaults.
func NewGenerator(engine GeometryEngine, opts Options) (*Generator, error) {
	if engine == nil {
		return nil, eris.New("zones: geometry engine is required")
	}
	opts = opts.withDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Generator{
		clusterer: &Clusterer{Workers: opts.Workers},
		hulls: HullBuilder{
			Engine:            engine,
			Degenerate:        opts.Degenerate,
			BufferMeters:      opts.BufferMeters,
			SimplifyTolerance: opts.SimplifyTolerance,
		},
		risk: opts.Risk,
		overlap: OverlapResolver{
			Engine:    engine,
			Threshold: opts.OverlapThreshold,
			Mode:      opts.OverlapMode,
			Counts:    opts.CountPolicy,
			Risk:      opts.Risk,
		},
	}, nil
}

// Generate clusters points with DBSCAN (eps in kilometers), builds one zone per
// cluster and resolves overlaps. Zones whose risk level appears in exclude are
// suppressed before overlap resolution, and again after it since a merged zone
// is reclassified. A cluster whose geometry cannot be built is logged and skipped.
func (g *Generator) Generate(points []GeoPoint, eps float64, minSamples int, exclude []RiskLevel) (FeatureCollection, error) {
	if math.IsNaN(eps) || eps < 0 {
		return FeatureCollection{}, ErrInvalidEps
	}
	if minSamples < 1 {
		return FeatureCollection{}, ErrInvalidMinSamples
	}
	if len(points) == 0 {
		return FeatureCollection{Features: []ZonePolygon{}}, nil
	}

	labels := g.clusterer.Cluster(points, eps, minSamples)
	groups := sortedGroups(points, labels)

	candidates := make([]ZonePolygon, 0, len(groups))
	for _, grp := range groups {
		count := len(grp.points)
		level := g.risk.Classify(count)
		if slices.Contains(exclude, level) {
			continue
		}

		shape, err := g.hulls.Build(grp.points)
		if err != nil {
			zap.L().Warn("zones: dropping cluster with invalid geometry",
				zap.Int("cluster_id", int(grp.label)),
				zap.Int("points", count),
				zap.Error(err),
			)
			continue
		}

		candidates = append(candidates, ZonePolygon{
			Geometry: shape,
			Properties: ZoneProperties{
				ClusterID:       int(grp.label),
				RiskLevel:       level,
				OccurrenceCount: count,
			},
		})
	}

	resolved := g.overlap.Resolve(candidates)
	if len(exclude) > 0 {
		resolved = slices.DeleteFunc(resolved, func(z ZonePolygon) bool {
			return slices.Contains(exclude, z.Properties.RiskLevel)
		})
	}
	return FeatureCollection{Features: resolved}, nil
}

type group struct {
	label  Label
	points []GeoPoint
}

// sortedGroups returns the clusters largest first, ties broken by label.
func sortedGroups(points []GeoPoint, labels []Label) []group {
	byLabel := Groups(points, labels)
	out := make([]group, 0, len(byLabel))
	for l, pts := range byLabel {
		out = append(out, group{label: l, points: pts})
	}
	slices.SortFunc(out, func(a, b group) int {
		if len(a.points) != len(b.points) {
			return len(b.points) - len(a.points)
		}
		return int(a.label - b.label)
	})
	return out
}
