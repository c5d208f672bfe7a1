package indicators

import (
	"sort"

	"github.com/zikalyze/core/pkg/models"
)

// Levels holds clustered support and resistance prices, each list
// capped to the configured maximum with oldest clusters evicted first.
type Levels struct {
	Support    []float64
	Resistance []float64
}

// extremum is a local minimum or maximum with its candle index.
type extremum struct {
	price float64
	index int
}

// ClusterLevels finds local extrema in a candle window and groups them
// into support (from minima) and resistance (from maxima) clusters.
// Two clusters within the relative threshold merge by arithmetic mean.
// The most recent max clusters are retained per side.
func ClusterLevels(candles []models.Candle, threshold float64, max int) Levels {
	if threshold <= 0 {
		threshold = 0.02
	}
	if max <= 0 {
		max = 8
	}
	if len(candles) < 5 {
		return Levels{}
	}

	// Duplicate-timestamp ties are broken deterministically so the
	// cluster set does not depend on input order.
	sorted := make([]models.Candle, len(candles))
	copy(sorted, candles)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Timestamp.Equal(sorted[j].Timestamp) {
			return sorted[i].Close < sorted[j].Close
		}
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	var minima, maxima []extremum
	for i := 2; i < len(sorted)-2; i++ {
		low := sorted[i].Low
		if low <= sorted[i-1].Low && low <= sorted[i-2].Low &&
			low <= sorted[i+1].Low && low <= sorted[i+2].Low {
			minima = append(minima, extremum{price: low, index: i})
		}
		high := sorted[i].High
		if high >= sorted[i-1].High && high >= sorted[i-2].High &&
			high >= sorted[i+1].High && high >= sorted[i+2].High {
			maxima = append(maxima, extremum{price: high, index: i})
		}
	}

	return Levels{
		Support:    cluster(minima, threshold, max),
		Resistance: cluster(maxima, threshold, max),
	}
}

// levelCluster accumulates extrema that sit within the merge threshold.
type levelCluster struct {
	sum       float64
	count     int
	lastIndex int
}

func (c *levelCluster) mean() float64 {
	return c.sum / float64(c.count)
}

func cluster(points []extremum, threshold float64, max int) []float64 {
	if len(points) == 0 {
		return nil
	}

	clusters := make([]*levelCluster, 0, len(points))
	for _, p := range points {
		merged := false
		for _, c := range clusters {
			m := c.mean()
			if m == 0 {
				continue
			}
			if abs(p.price-m)/m <= threshold {
				c.sum += p.price
				c.count++
				if p.index > c.lastIndex {
					c.lastIndex = p.index
				}
				merged = true
				break
			}
		}
		if !merged {
			clusters = append(clusters, &levelCluster{sum: p.price, count: 1, lastIndex: p.index})
		}
	}

	// Keep the most recently touched clusters.
	sort.Slice(clusters, func(i, j int) bool {
		return clusters[i].lastIndex > clusters[j].lastIndex
	})
	if len(clusters) > max {
		clusters = clusters[:max]
	}

	out := make([]float64, len(clusters))
	for i, c := range clusters {
		out[i] = c.mean()
	}
	sort.Float64s(out)
	return out
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// NearestBelow returns the highest level strictly below price, or 0.
func NearestBelow(levels []float64, price float64) float64 {
	best := 0.0
	for _, l := range levels {
		if l < price && l > best {
			best = l
		}
	}
	return best
}

// NearestAbove returns the lowest level strictly above price, or 0.
func NearestAbove(levels []float64, price float64) float64 {
	best := 0.0
	for _, l := range levels {
		if l > price && (best == 0 || l < best) {
			best = l
		}
	}
	return best
}
