package engine

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ============================================================================
// AGGREGATORS — Grouping, Aggregation, and Sorting via RecordView
// ============================================================================
// All functions operate on RecordView; zero-copy access to any data source.
// Grouping produces SubViews (index lists into parent view).
// ============================================================================

// GroupAndAggregate is the main entry point for the aggregation pipeline.
// Pipeline: group → aggregate → sort → limit.
func GroupAndAggregate(view RecordView, q Query) []Group {
	if view.Len() == 0 {
		return nil
	}

	// 1. Group
	var groups []Group
	if len(q.GroupBy) == 0 {
		groups = []Group{{
			Key:   "all",
			Label: "Total",
			View:  view,
		}}
	} else if len(q.GroupBy) == 1 {
		groups = groupBySingle(view, q.GroupBy[0])
	} else {
		groups = groupByMulti(view, q.GroupBy)
	}

	// 2. Aggregate
	for i := range groups {
		aggregateGroup(&groups[i], q)
		for j := range groups[i].SubGroups {
			aggregateGroup(&groups[i].SubGroups[j], q)
		}
	}

	// 3. Sort
	SortGroups(groups, q.SortBy)

	// 4. Limit
	return limitGroups(groups, q.Limit, q.FromEnd)
}

func limitGroups(groups []Group, limit int, fromEnd bool) []Group {
	if limit <= 0 || len(groups) <= limit {
		return groups
	}
	if fromEnd {
		return groups[len(groups)-limit:]
	}
	return groups[:limit]
}

// ============================================================================
// GROUPING
// ============================================================================

func groupBySingle(view RecordView, dimension string) []Group {
	grouped := make(map[string][]int)
	order := make([]string, 0)

	for i := 0; i < view.Len(); i++ {
		key := getDimensionValue(view, i, dimension)
		if _, exists := grouped[key]; !exists {
			order = append(order, key)
		}
		grouped[key] = append(grouped[key], i)
	}

	groups := make([]Group, 0, len(order))
	for _, key := range order {
		groups = append(groups, Group{
			Key:   key,
			Label: key,
			View:  newSubView(view, grouped[key]),
		})
	}
	return groups
}

func groupByMulti(view RecordView, dimensions []string) []Group {
	if len(dimensions) < 2 {
		return groupBySingle(view, dimensions[0])
	}

	primaryGroups := groupBySingle(view, dimensions[0])
	for i := range primaryGroups {
		primaryGroups[i].SubGroups = groupBySingle(primaryGroups[i].View, dimensions[1])
	}
	return primaryGroups
}

// getDimensionValue extracts a dimension value from a view at index.
// "year" and "month" fall back to the collection date when the column is blank.
func getDimensionValue(view RecordView, i int, dimension string) string {
	val := view.Dimension(i, dimension)
	if val != "" {
		return val
	}

	switch dimension {
	case "year", "month":
		t, ok := ParseDate(view.Dimension(i, "collected_on"))
		if !ok {
			return ""
		}
		if dimension == "year" {
			return strconv.Itoa(t.Year())
		}
		return t.Format("2006-01")
	}
	return val
}

// ============================================================================
// AGGREGATION
// ============================================================================

func aggregateGroup(group *Group, q Query) {
	group.Count = group.View.Len()
	if group.Count == 0 {
		return
	}

	switch q.Aggregation {
	case "sum":
		group.Value = SumMeasure(group.View, q.Measure)
	case "count":
		group.Value = float64(group.Count)
	case "avg", "mean":
		group.Value = AvgMeasure(group.View, q.Measure)
	case "max":
		group.Value = MaxMeasure(group.View, q.Measure)
	case "min":
		group.Value = MinMeasure(group.View, q.Measure)
	case "distinct":
		group.Value = float64(CountDistinct(group.View, q.Distinct))
	case "list":
		group.Value = SumMeasure(group.View, q.Measure) // for sorting
	case "none":
		// pass through
	default:
		group.Value = SumMeasure(group.View, q.Measure)
	}
}

// SumMeasure sums a named measure across a view.
func SumMeasure(view RecordView, measure string) float64 {
	var total float64
	for i := 0; i < view.Len(); i++ {
		total += view.Measure(i, measure)
	}
	return total
}

// AvgMeasure computes average of a named measure.
func AvgMeasure(view RecordView, measure string) float64 {
	n := view.Len()
	if n == 0 {
		return 0
	}
	return SumMeasure(view, measure) / float64(n)
}

// MaxMeasure returns the largest value of a named measure.
func MaxMeasure(view RecordView, measure string) float64 {
	n := view.Len()
	if n == 0 {
		return 0
	}
	m := math.Inf(-1)
	for i := 0; i < n; i++ {
		if v := view.Measure(i, measure); v > m {
			m = v
		}
	}
	return m
}

// MinMeasure returns the smallest value of a named measure.
func MinMeasure(view RecordView, measure string) float64 {
	n := view.Len()
	if n == 0 {
		return 0
	}
	m := math.Inf(1)
	for i := 0; i < n; i++ {
		if v := view.Measure(i, measure); v < m {
			m = v
		}
	}
	return m
}

// CountDistinct counts the distinct non-empty values of a dimension.
func CountDistinct(view RecordView, dimension string) int {
	return len(UniqueValues(view, dimension))
}

// ValueCounts counts records per non-empty dimension value, most frequent
// first. Ties keep first-appearance order. limit <= 0 keeps every value.
func ValueCounts(view RecordView, dimension string, limit int) []Group {
	groups := groupBySingle(view, dimension)
	kept := groups[:0]
	for _, g := range groups {
		if g.Key == "" {
			continue
		}
		g.Count = g.View.Len()
		g.Value = float64(g.Count)
		kept = append(kept, g)
	}
	groups = kept
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].Value > groups[j].Value })
	return limitGroups(groups, limit, false)
}

// ============================================================================
// SORTING
// ============================================================================

// SortGroups sorts aggregate groups by the specified sort mode.
// Sub-groups are sorted with the same mode. Ties fall back to label order.
func SortGroups(groups []Group, sortBy string) {
	var less func(a, b Group) bool
	switch sortBy {
	case "value_desc":
		less = func(a, b Group) bool { return a.Value > b.Value }
	case "value_asc":
		less = func(a, b Group) bool { return a.Value < b.Value }
	case "date_asc":
		less = func(a, b Group) bool { return DateOrder(a.Key) < DateOrder(b.Key) }
	case "date_desc":
		less = func(a, b Group) bool { return DateOrder(a.Key) > DateOrder(b.Key) }
	case "label_asc":
		less = func(a, b Group) bool { return strings.ToLower(a.Key) < strings.ToLower(b.Key) }
	case "label_desc":
		less = func(a, b Group) bool { return strings.ToLower(a.Key) > strings.ToLower(b.Key) }
	default:
		return // preserve grouping order
	}

	sort.SliceStable(groups, func(i, j int) bool {
		if less(groups[i], groups[j]) {
			return true
		}
		if less(groups[j], groups[i]) {
			return false
		}
		return groups[i].Key < groups[j].Key
	})
	for i := range groups {
		if len(groups[i].SubGroups) > 0 {
			SortGroups(groups[i].SubGroups, sortBy)
		}
	}
}

// ============================================================================
// DATES
// ============================================================================

var dateLayouts = []string{"2006-01-02", "02/01/2006", "2006-01-02 15:04:05", "2006/01/02"}

// ParseDate parses a collection date in any of the layouts seen in ANP exports.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// DateOrder converts a day, month or year key to a sortable yyyymmdd integer.
// Accepts "2025-01-31", "31/01/2025", "2025-01", "Jan-2025", "2025" and bare
// month numbers "1".."12". Unparseable keys return 0.
func DateOrder(key string) int {
	key = strings.TrimSpace(key)
	if t, ok := ParseDate(key); ok {
		return t.Year()*10000 + int(t.Month())*100 + t.Day()
	}
	for _, layout := range []string{"2006-01", "Jan-2006", "01/2006"} {
		if t, err := time.Parse(layout, key); err == nil {
			return t.Year()*10000 + int(t.Month())*100
		}
	}
	if n, err := strconv.Atoi(key); err == nil {
		switch {
		case n >= 1 && n <= 12:
			return n * 100
		case n >= 1000 && n <= 9999:
			return n * 10000
		}
	}
	return 0
}

// ============================================================================
// FORMATTING UTILITIES
// ============================================================================

// FormatCurrency formats an amount with currency prefix and comma separators.
func FormatCurrency(amount float64, currency string) string {
	negative := amount < 0
	if negative {
		amount = -amount
	}

	cents := int64(math.Round(amount * 100))
	intPart := cents / 100
	decPart := cents % 100

	intStr := FormatInt(int(intPart))
	result := fmt.Sprintf("%s.%02d", intStr, decPart)
	if currency != "" {
		result = currency + " " + result
	}
	if negative {
		result = "-" + result
	}
	return result
}

// FormatInt formats an integer with comma separators.
func FormatInt(n int) string {
	if n < 0 {
		return "-" + FormatInt(-n)
	}
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	return fmt.Sprintf("%s,%03d", FormatInt(n/1000), n%1000)
}

// RoundTo2 rounds to 2 decimal places.
func RoundTo2(v float64) float64 {
	return Round(v, 2)
}

// Round rounds v to the given number of decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// UniqueValues returns distinct non-empty values for a dimension across a view,
// in first-appearance order.
func UniqueValues(view RecordView, dimension string) []string {
	seen := make(map[string]bool)
	var result []string
	for i := 0; i < view.Len(); i++ {
		val := getDimensionValue(view, i, dimension)
		if val != "" && !seen[val] {
			seen[val] = true
			result = append(result, val)
		}
	}
	return result
}

// SortedUniqueValues returns UniqueValues sorted ascending. When every value
// is numeric the sort is numeric ("9" before "10"), otherwise lexical.
func SortedUniqueValues(view RecordView, dimension string) []string {
	vals := UniqueValues(view, dimension)
	numeric := len(vals) > 0
	nums := make(map[string]float64, len(vals))
	for _, v := range vals {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			numeric = false
			break
		}
		nums[v] = f
	}
	if numeric {
		sort.Slice(vals, func(i, j int) bool { return nums[vals[i]] < nums[vals[j]] })
	} else {
		sort.Strings(vals)
	}
	return vals
}

// LabelForDimension returns a human label for a dimension key ("collected_on" → "Collected on").
func LabelForDimension(dimension string) string {
	if len(dimension) == 0 {
		return ""
	}
	s := strings.ReplaceAll(dimension, "_", " ")
	return strings.ToUpper(s[:1]) + s[1:]
}

// LabelForAggregation returns a human-readable label for an aggregation type.
func LabelForAggregation(aggregation string) string {
	switch aggregation {
	case "sum":
		return "Total"
	case "count":
		return "Count"
	case "avg", "mean":
		return "Average"
	case "max":
		return "Maximum"
	case "min":
		return "Minimum"
	case "distinct":
		return "Distinct count"
	default:
		return "Value"
	}
}
