package engine

// ============================================================================
// CHART BUILDER — Produces ChartConfig from Query + Groups
// ============================================================================

// Default color palette for chart series.
var defaultColors = []string{
	"#4F46E5", "#10B981", "#F59E0B", "#EF4444", "#8B5CF6",
	"#06B6D4", "#EC4899", "#84CC16", "#F97316", "#6366F1",
}

// BuildChart produces a ChartConfig from a Query and aggregated groups.
func BuildChart(q Query, groups []Group) *ChartConfig {
	if len(groups) == 0 {
		return nil
	}

	chartType := q.Visualize
	if chartType == "" {
		chartType = "bar"
	}

	config := &ChartConfig{
		ChartType:  chartType,
		Title:      q.Title,
		ShowLegend: true,
		ShowGrid:   chartType != "pie",
	}
	if chartType == "bar" {
		config.Orientation = q.Orientation
		if config.Orientation == "" {
			config.Orientation = "v"
		}
	}

	if len(q.GroupBy) > 0 {
		config.XAxis = LabelForDimension(q.GroupBy[0])
	}
	config.YAxis = LabelForAggregation(q.Aggregation)

	switch {
	case chartType == "line" && len(q.GroupBy) >= 2 && hasSubGroups(groups):
		// One line per primary group, plotted over the secondary dimension.
		config.XAxis = LabelForDimension(q.GroupBy[1])
		config.Series = buildSeriesPerGroup(groups)
		config.Markers = true
	default:
		config.Series = buildSingleSeries(groups, q.Title)
		config.ShowLegend = chartType == "pie"
	}

	config.Colors = assignColors(len(config.Series))
	if chartType == "pie" {
		config.Colors = assignColors(len(groups))
	}
	return config
}

// BuildBoxChart produces a box-plot ChartConfig from distribution statistics.
func BuildBoxChart(title, groupLabel, valueLabel string, stats []BoxStats) *ChartConfig {
	if len(stats) == 0 {
		return nil
	}
	return &ChartConfig{
		ChartType: "box",
		Title:     title,
		XAxis:     groupLabel,
		YAxis:     valueLabel,
		Boxes:     stats,
		Colors:    assignColors(len(stats)),
		ShowGrid:  true,
	}
}

// ============================================================================
// SERIES BUILDERS
// ============================================================================

func buildSingleSeries(groups []Group, seriesName string) []ChartSeries {
	if seriesName == "" {
		seriesName = "Value"
	}

	points := make([]ChartPoint, 0, len(groups))
	for _, g := range groups {
		points = append(points, ChartPoint{
			Label: g.Label,
			Value: RoundTo2(g.Value),
		})
	}

	return []ChartSeries{{
		Name: seriesName,
		Data: points,
	}}
}

// buildSeriesPerGroup makes one series per primary group whose points are
// its sub-groups, in sub-group order.
func buildSeriesPerGroup(groups []Group) []ChartSeries {
	series := make([]ChartSeries, 0, len(groups))
	for i, g := range groups {
		points := make([]ChartPoint, 0, len(g.SubGroups))
		for _, sg := range g.SubGroups {
			points = append(points, ChartPoint{Label: sg.Label, Value: RoundTo2(sg.Value)})
		}
		series = append(series, ChartSeries{
			Name:  g.Label,
			Data:  points,
			Color: defaultColors[i%len(defaultColors)],
		})
	}
	return series
}

func hasSubGroups(groups []Group) bool {
	for _, g := range groups {
		if len(g.SubGroups) > 0 {
			return true
		}
	}
	return false
}

func assignColors(count int) []string {
	colors := make([]string, count)
	for i := 0; i < count; i++ {
		colors[i] = defaultColors[i%len(defaultColors)]
	}
	return colors
}
