package engine

import (
	"fmt"
)

// ============================================================================
// METRICS BUILDER — Headline figures for text answers and KPI cards
// ============================================================================
// All functions operate on RecordView; zero-copy access to any data source.
// ============================================================================

// Summarize computes mean, min, max, sum and count of measure over view.
// When topBy is set, TopLabel names the topBy group with the highest mean;
// ties go to the label that sorts first.
func Summarize(view RecordView, measure, topBy, dateDimension string) Metrics {
	m := Metrics{Period: DerivePeriod(view, dateDimension)}
	if view.Len() == 0 {
		return m
	}

	m.Count = view.Len()
	m.Sum = SumMeasure(view, measure)
	m.Mean = m.Sum / float64(m.Count)
	m.Min = MinMeasure(view, measure)
	m.Max = MaxMeasure(view, measure)

	if topBy != "" {
		groups := GroupAndAggregate(view, Query{
			GroupBy:     []string{topBy},
			Measure:     measure,
			Aggregation: "avg",
			SortBy:      "value_desc",
			Limit:       1,
		})
		if len(groups) > 0 {
			m.TopLabel = groups[0].Label
		}
	}
	return m
}

// BuildText produces the metrics answer for a text query.
func BuildText(q Query, view RecordView, measure, unit, dateDimension string) *Metrics {
	topBy := ""
	if len(q.GroupBy) > 0 {
		topBy = q.GroupBy[0]
	}
	m := Summarize(view, measure, topBy, dateDimension)
	m.Unit = unit
	return &m
}

// ============================================================================
// PERIOD HELPER
// ============================================================================

// DerivePeriod builds a human-readable period string from the dates held in
// dateDimension: "No data", "All time" (no parseable dates), a single day,
// or "earliest – latest".
func DerivePeriod(view RecordView, dateDimension string) string {
	if view.Len() == 0 {
		return "No data"
	}

	var earliest, latest string
	var earliestOrder, latestOrder int
	for i := 0; i < view.Len(); i++ {
		d := view.Dimension(i, dateDimension)
		order := DateOrder(d)
		if order == 0 {
			continue
		}
		if earliest == "" || order < earliestOrder {
			earliest, earliestOrder = d, order
		}
		if latest == "" || order > latestOrder {
			latest, latestOrder = d, order
		}
	}

	if earliest == "" {
		return "All time"
	}
	if earliestOrder == latestOrder {
		return earliest
	}
	return fmt.Sprintf("%s – %s", earliest, latest)
}
