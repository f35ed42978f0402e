package engine

import (
	"strings"
)

// ============================================================================
// FILTERS — Generic Dimension-Based Filtering via RecordView
// ============================================================================
// Single-pass filter: checks ALL dimension constraints per record in one loop.
// Returns a SubView (index list into parent): zero data copy.
//
// Two flavours:
//   ApplyFilters   : an empty allow-list means "no restriction"
//   ApplySelections: an empty allow-list means "nothing selected"
// ============================================================================

// ApplyFilters returns a view of records matching all dimension filters.
// Dimensions are AND-combined; values within a dimension are OR-combined.
// Empty filter = no restriction (returns original view).
func ApplyFilters(view RecordView, filters Filters) RecordView {
	if filters.IsEmpty() {
		return view
	}

	sets := make(map[string]map[string]bool)
	for dim, allowed := range filters.Dimensions {
		if len(allowed) > 0 {
			sets[dim] = toLowerSet(allowed)
		}
	}

	if len(sets) == 0 {
		return view
	}
	return filterBySets(view, sets)
}

// ApplySelections is the strict form of ApplyFilters used for widget state:
// every dimension present in filters must match, and a dimension whose
// allow-list is empty matches no record at all.
func ApplySelections(view RecordView, filters Filters) RecordView {
	if len(filters.Dimensions) == 0 {
		return view
	}

	sets := make(map[string]map[string]bool, len(filters.Dimensions))
	for dim, allowed := range filters.Dimensions {
		if len(allowed) == 0 {
			return Empty(view)
		}
		sets[dim] = toLowerSet(allowed)
	}
	return filterBySets(view, sets)
}

// Where returns the records whose dimension equals value (case-insensitive).
func Where(view RecordView, dimension, value string) RecordView {
	return filterBySets(view, map[string]map[string]bool{
		dimension: {strings.ToLower(value): true},
	})
}

// filterBySets keeps records that pass every dimension set in one pass.
func filterBySets(view RecordView, sets map[string]map[string]bool) RecordView {
	n := view.Len()
	indices := make([]int, 0, n)
	for i := 0; i < n; i++ {
		pass := true
		for dim, set := range sets {
			val := strings.ToLower(view.Dimension(i, dim))
			if !set[val] {
				pass = false
				break
			}
		}
		if pass {
			indices = append(indices, i)
		}
	}

	return newSubView(view, indices)
}

// toLowerSet converts a string slice to a lowercase lookup set.
func toLowerSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[strings.ToLower(item)] = true
	}
	return set
}
