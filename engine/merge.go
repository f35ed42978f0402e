package engine

import (
	"sort"
	"strings"
)

// ============================================================================
// ROWS — Flattened aggregates, joins and multi-key ordering
// ============================================================================
// Groups are a tree; tables want flat rows. Flatten turns one- or two-level
// groups into Rows keyed by the groupBy dimensions, Merge inner-joins two row
// sets on a shared key, and SortRows orders by several columns at once.
// ============================================================================

// Flatten converts groups into rows. Each row carries one key per groupBy
// dimension and the aggregated value under valueName. Nested groups produce
// one row per sub-group.
func Flatten(groups []Group, groupBy []string, valueName string) []Row {
	rows := make([]Row, 0, len(groups))
	for _, g := range groups {
		if len(groupBy) >= 2 && len(g.SubGroups) > 0 {
			for _, sg := range g.SubGroups {
				rows = append(rows, Row{
					Keys:   map[string]string{groupBy[0]: g.Key, groupBy[1]: sg.Key},
					Values: map[string]float64{valueName: sg.Value},
				})
			}
			continue
		}

		keys := map[string]string{}
		if len(groupBy) > 0 {
			keys[groupBy[0]] = g.Key
		}
		rows = append(rows, Row{
			Keys:   keys,
			Values: map[string]float64{valueName: g.Value},
		})
	}
	return rows
}

// Merge inner-joins left and right on the key column on. Output keeps the
// order of left; every right row matching a left row yields one output row
// carrying the union of both rows' keys and values (left wins on clashes).
func Merge(left, right []Row, on string) []Row {
	index := make(map[string][]int, len(right))
	for i, r := range right {
		k, ok := r.Keys[on]
		if !ok {
			continue
		}
		index[k] = append(index[k], i)
	}

	var out []Row
	for _, l := range left {
		k, ok := l.Keys[on]
		if !ok {
			continue
		}
		for _, ri := range index[k] {
			r := right[ri]
			merged := Row{
				Keys:   make(map[string]string, len(l.Keys)+len(r.Keys)),
				Values: make(map[string]float64, len(l.Values)+len(r.Values)),
			}
			for kk, v := range r.Keys {
				merged.Keys[kk] = v
			}
			for kk, v := range r.Values {
				merged.Values[kk] = v
			}
			for kk, v := range l.Keys {
				merged.Keys[kk] = v
			}
			for kk, v := range l.Values {
				merged.Values[kk] = v
			}
			out = append(out, merged)
		}
	}
	return out
}

// SortKey orders rows by one column. Value columns compare numerically,
// key columns compare case-insensitively.
type SortKey struct {
	Column string
	Desc   bool
}

// SortRows sorts rows by keys in priority order. The sort is stable.
func SortRows(rows []Row, keys ...SortKey) {
	sort.SliceStable(rows, func(i, j int) bool {
		for _, k := range keys {
			c := compareRows(rows[i], rows[j], k.Column)
			if c == 0 {
				continue
			}
			if k.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

func compareRows(a, b Row, column string) int {
	av, aNum := a.Values[column]
	bv, bNum := b.Values[column]
	if aNum || bNum {
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	}
	return strings.Compare(strings.ToLower(a.Keys[column]), strings.ToLower(b.Keys[column]))
}

// RoundValues rounds column to places decimals in every row.
func RoundValues(rows []Row, column string, places int) {
	for _, r := range rows {
		if v, ok := r.Values[column]; ok {
			r.Values[column] = Round(v, places)
		}
	}
}

// MaxValue returns the largest value of column across rows (0 for no rows).
func MaxValue(rows []Row, column string) float64 {
	var m float64
	for i, r := range rows {
		if v := r.Values[column]; i == 0 || v > m {
			m = v
		}
	}
	return m
}

// MinValue returns the smallest value of column across rows (0 for no rows).
func MinValue(rows []Row, column string) float64 {
	var m float64
	for i, r := range rows {
		if v := r.Values[column]; i == 0 || v < m {
			m = v
		}
	}
	return m
}

// FilterRows returns rows for which keep reports true.
func FilterRows(rows []Row, keep func(Row) bool) []Row {
	var out []Row
	for _, r := range rows {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}
