package engine

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ============================================================================
// DISTRIBUTION — Box-plot statistics per group
// ============================================================================

// Distribution computes box-plot statistics of measure for each value of
// groupBy (or the whole view when groupBy is empty), ordered by label.
func Distribution(view RecordView, measure, groupBy string) []BoxStats {
	if view.Len() == 0 {
		return nil
	}

	var groups []Group
	if groupBy == "" {
		groups = []Group{{Key: "all", Label: "Total", View: view}}
	} else {
		groups = groupBySingle(view, groupBy)
		SortGroups(groups, "label_asc")
	}

	out := make([]BoxStats, 0, len(groups))
	for _, g := range groups {
		values := make([]float64, g.View.Len())
		for i := range values {
			values[i] = g.View.Measure(i, measure)
		}
		out = append(out, BoxStatsOf(g.Label, values))
	}
	return out
}

// BoxStatsOf summarizes values. Quartiles use linear interpolation between
// order statistics; fences are the most extreme values within 1.5×IQR of the
// quartiles and everything beyond them is an outlier.
func BoxStatsOf(label string, values []float64) BoxStats {
	bs := BoxStats{Label: label, Count: len(values)}
	if len(values) == 0 {
		return bs
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	bs.Values = sorted
	bs.Min = floats.Min(sorted)
	bs.Max = floats.Max(sorted)
	bs.Mean = stat.Mean(sorted, nil)
	bs.Q1 = Quantile(sorted, 0.25)
	bs.Median = Quantile(sorted, 0.5)
	bs.Q3 = Quantile(sorted, 0.75)

	iqr := bs.Q3 - bs.Q1
	lo := bs.Q1 - 1.5*iqr
	hi := bs.Q3 + 1.5*iqr
	bs.LowerFence = math.Inf(1)
	bs.UpperFence = math.Inf(-1)
	for _, v := range sorted {
		if v < lo || v > hi {
			bs.Outliers = append(bs.Outliers, v)
			continue
		}
		if v < bs.LowerFence {
			bs.LowerFence = v
		}
		if v > bs.UpperFence {
			bs.UpperFence = v
		}
	}
	return bs
}

// Quantile returns the p-quantile of ascending-sorted values using linear
// interpolation at position p*(n-1).
func Quantile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 || p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}
	pos := p * float64(n-1)
	lo := int(math.Floor(pos))
	frac := pos - float64(lo)
	if lo+1 >= n {
		return sorted[lo]
	}
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}
