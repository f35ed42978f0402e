package engine

import (
	"fmt"
	"regexp"
	"strings"
)

// ============================================================================
// EXECUTOR — Dispatcher + Placeholder Resolution
// ============================================================================
// Entry point: Execute(query, view, opts...)
//
// Pipeline:
//   1. Normalize the Query (intent/visualize consistency)
//   2. Apply filters from Query → SubView
//   3. Group and aggregate
//   4. Dispatch to builder (chart / table / text)
//   5. Resolve reply template placeholders
//   6. Return Result
//
// Zero data copy; the engine reads consumer data through RecordView.
// ============================================================================

// Execute runs a Query against a RecordView and returns a render-ready Result.
//
// Options:
//   - WithDefaultMeasure(key): sets the measure when Query.Measure is empty
//   - WithUnit(unit): display unit for formatted values
//   - WithDateDimension(key): dimension used for period labels
//   - WithLogger(l): zerolog logger for pipeline traces
func Execute(q Query, view RecordView, opts ...Option) (*Result, error) {
	cfg := applyOptions(opts)
	logger := cfg.Logger

	q = NormalizeQuery(q)
	if q.Measure == "" {
		q.Measure = cfg.DefaultMeasure
	}

	if view.Len() == 0 {
		return &Result{
			Success: true,
			Type:    "text",
			Title:   q.Title,
			Reply:   "No data available to analyze.",
		}, nil
	}

	logger.Debug().
		Int("records", view.Len()).
		Str("intent", q.Intent).
		Str("visualize", q.Visualize).
		Str("aggregation", q.Aggregation).
		Str("measure", q.Measure).
		Msg("🔧 fuelscope: executing query")

	// 1. Apply filters → SubView (zero-copy)
	filtered := ApplyFilters(view, q.Filters)
	if filtered.Len() == 0 {
		return &Result{
			Success: true,
			Type:    "text",
			Title:   q.Title,
			Reply:   "No records match the selected filters.",
		}, nil
	}

	logger.Debug().Int("filtered", filtered.Len()).Int("records", view.Len()).Msg("🔧 fuelscope: filtered")

	// 2. Group and aggregate
	groups := GroupAndAggregate(filtered, q)

	// 3. Dispatch to builder
	result := &Result{
		Success:     true,
		Title:       q.Title,
		DisplayUnit: cfg.Unit,
	}

	switch q.Intent {
	case "chart":
		result.Type = "chart"
		result.ChartConfig = BuildChart(q, groups)
		if result.ChartConfig == nil {
			result.Type = "text"
			result.Reply = "Not enough data to generate a chart."
			return result, nil
		}

	case "table":
		result.Type = "table"
		result.TableData = BuildTable(q, groups, filtered, q.Measure, cfg.Unit)

	default:
		result.Type = "text"
		result.Data = BuildText(q, filtered, q.Measure, cfg.Unit, cfg.DateDimension)
	}

	// 4. Resolve reply template placeholders
	result.Reply = ResolvePlaceholders(q.Reply, groups, filtered, q.Measure, cfg.Unit, cfg.DateDimension)

	return result, nil
}

// ============================================================================
// PLACEHOLDER RESOLUTION
// ============================================================================

// ResolvePlaceholders substitutes computed values into the reply template.
func ResolvePlaceholders(template string, groups []Group, view RecordView, measure, unit, dateDimension string) string {
	if template == "" {
		return buildDefaultReply(view, measure, unit)
	}

	total := SumMeasure(view, measure)
	count := view.Len()

	replacements := map[string]string{
		"{total}":    FormatCurrency(total, unit),
		"{count}":    FormatInt(count),
		"{period}":   DerivePeriod(view, dateDimension),
		"{currency}": unit,
	}

	// Top group (highest value)
	if len(groups) > 0 {
		topGroup := groups[0]
		for _, g := range groups[1:] {
			if g.Value > topGroup.Value {
				topGroup = g
			}
		}
		replacements["{top_category}"] = topGroup.Label
		replacements["{top_amount}"] = FormatCurrency(topGroup.Value, unit)
	}

	if count > 0 {
		replacements["{avg}"] = FormatCurrency(total/float64(count), unit)
		replacements["{max}"] = FormatCurrency(MaxMeasure(view, measure), unit)
		replacements["{min}"] = FormatCurrency(MinMeasure(view, measure), unit)
	}

	result := template
	for placeholder, value := range replacements {
		result = strings.ReplaceAll(result, placeholder, value)
	}

	// Safety net: strip unresolved placeholders
	return stripUnresolvedPlaceholders(result)
}

// ============================================================================
// QUERY NORMALIZATION
// ============================================================================

// NormalizeQuery applies deterministic rules so Intent and Visualize agree.
func NormalizeQuery(q Query) Query {
	// Rule 1: "list" aggregation must be a table
	if q.Aggregation == "list" {
		q.Intent = "table"
		q.Visualize = "table"
	}

	// Rule 2: an explicit chart type implies a chart
	if q.Intent == "" {
		switch q.Visualize {
		case "bar", "line", "pie":
			q.Intent = "chart"
		case "table":
			q.Intent = "table"
		}
	}

	// Rule 3: charts must have a groupBy dimension
	if q.Intent == "chart" && len(q.GroupBy) == 0 {
		q.Intent = "text"
		q.Visualize = "text"
	}

	return q
}

// ============================================================================
// INTERNAL HELPERS
// ============================================================================

func buildDefaultReply(view RecordView, measure string, unit string) string {
	if view.Len() == 0 {
		return "No matching records found."
	}
	return fmt.Sprintf("Found %s records averaging %s.",
		FormatInt(view.Len()), FormatCurrency(AvgMeasure(view, measure), unit))
}

var placeholderRegex = regexp.MustCompile(`\{[a-z_]+\}`)

func stripUnresolvedPlaceholders(text string) string {
	cleaned := placeholderRegex.ReplaceAllString(text, "")
	cleaned = strings.ReplaceAll(cleaned, "  ", " ")
	cleaned = strings.TrimSpace(cleaned)
	cleaned = strings.TrimRight(cleaned, " .—-–")
	if cleaned == "" {
		return text
	}
	return cleaned
}
