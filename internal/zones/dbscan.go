package zones

import (
	"golang.org/x/sync/errgroup"
)

// Label identifies the cluster a point belongs to. Clusters are numbered from 1
// in discovery order; Noise marks points that belong to no cluster.
type Label int

// Noise is the label of points outside every cluster.
const Noise Label = -1

const unlabeled Label = 0

// parallelMinPoints is the input size below which neighborhoods are computed inline.
const parallelMinPoints = 256

// Clusterer runs DBSCAN over great-circle distance.
type Clusterer struct {
	// Workers bounds the goroutines used for the neighborhood search.
	// Values <= 1 compute it on the calling goroutine.
	Workers int
	// Metric overrides Distance, mainly for tests.
	Metric DistanceFunc
}

// Cluster assigns one label per input point, in input order. eps is in kilometers.
// A point is core when its eps-neighborhood (itself included) holds at least
// minSamples points. Groups that end up smaller than minSamples because their
// neighbors were claimed by an earlier cluster are demoted to noise.
func (c *Clusterer) Cluster(points []GeoPoint, eps float64, minSamples int) []Label {
	n := len(points)
	labels := make([]Label, n)
	if n == 0 {
		return labels
	}

	neighbors := c.neighborhoods(points, eps)

	// queued[j] == id means j is already on the frontier of cluster id.
	queued := make([]Label, n)
	var next Label

	for i := range points {
		if labels[i] != unlabeled {
			continue
		}
		if len(neighbors[i]) < minSamples {
			labels[i] = Noise
			continue
		}

		next++
		labels[i] = next
		queued[i] = next

		stack := make([]int, 0, len(neighbors[i]))
		for _, j := range neighbors[i] {
			if queued[j] != next {
				queued[j] = next
				stack = append(stack, j)
			}
		}

		for len(stack) > 0 {
			j := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			switch labels[j] {
			case Noise:
				// Border point: reachable but not core.
				labels[j] = next
				continue
			case unlabeled:
				labels[j] = next
			default:
				continue
			}

			if len(neighbors[j]) < minSamples {
				continue
			}
			for _, k := range neighbors[j] {
				if queued[k] != next {
					queued[k] = next
					stack = append(stack, k)
				}
			}
		}
	}

	return compact(labels, minSamples)
}

// compact demotes undersized clusters to noise and renumbers the rest densely,
// preserving discovery order.
func compact(labels []Label, minSamples int) []Label {
	sizes := make(map[Label]int)
	for _, l := range labels {
		if l != Noise {
			sizes[l]++
		}
	}

	remap := make(map[Label]Label, len(sizes))
	var next Label
	for i, l := range labels {
		if l == Noise {
			continue
		}
		if sizes[l] < minSamples {
			labels[i] = Noise
			continue
		}
		id, ok := remap[l]
		if !ok {
			next++
			id = next
			remap[l] = id
		}
		labels[i] = id
	}
	return labels
}

// neighborhoods returns, for every point, the indices of all points within eps
// (the point itself included), in ascending index order.
func (c *Clusterer) neighborhoods(points []GeoPoint, eps float64) [][]int {
	metric := c.Metric
	if metric == nil {
		metric = Distance
	}

	n := len(points)
	out := make([][]int, n)
	row := func(i int) {
		var nb []int
		for j := range points {
			if i == j || metric(points[i], points[j]) <= eps {
				nb = append(nb, j)
			}
		}
		out[i] = nb
	}

	if c.Workers <= 1 || n < parallelMinPoints {
		for i := range points {
			row(i)
		}
		return out
	}

	var g errgroup.Group
	g.SetLimit(c.Workers)
	chunk := (n + c.Workers - 1) / c.Workers
	for start := 0; start < n; start += chunk {
		end := min(start+chunk, n)
		g.Go(func() error {
			for i := start; i < end; i++ {
				row(i)
			}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Groups collects the points of each cluster, dropping noise. The result is keyed
// by label; use SortedGroups for a deterministic ordering.
func Groups(points []GeoPoint, labels []Label) map[Label][]GeoPoint {
	groups := make(map[Label][]GeoPoint)
	for i, l := range labels {
		if l == Noise {
			continue
		}
		groups[l] = append(groups[l], points[i])
	}
	return groups
}
