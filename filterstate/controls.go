package filterstate

import (
	"github.com/spektr-org/fuelscope/engine"
	"github.com/spektr-org/fuelscope/schema"
)

// Time granularities offered by the price timeline.
const (
	GranularityDay   = "day"
	GranularityMonth = "month"
)

// Controls are the per-panel pickers that sit next to the charts rather
// than in the sidebar.
type Controls struct {
	Granularity *Choice `json:"granularity"`
	City        *Choice `json:"city"` // timeline city, from the filtered rows
	Fuel        *Choice `json:"fuel"` // top-cities product, from the whole dataset
}

// NewControls builds the pickers. base is the full dataset, filtered the
// rows left after the sidebar selections.
func NewControls(base, filtered engine.RecordView) *Controls {
	c := &Controls{
		Granularity: NewChoice("granularity", "View by", []string{GranularityDay, GranularityMonth}, GranularityDay),
		City:        NewChoice("city", "Select the city", nil, ""),
		Fuel:        NewChoice("fuel", "Select the fuel", engine.SortedUniqueValues(base, schema.Product), ""),
	}
	c.Refresh(filtered)
	return c
}

// Refresh re-derives the city list after the sidebar selection changed.
func (c *Controls) Refresh(filtered engine.RecordView) {
	c.City.Refresh(engine.SortedUniqueValues(filtered, schema.Municipality))
}

// Clone returns a deep copy.
func (c *Controls) Clone() Controls {
	g, city, fuel := *c.Granularity, *c.City, *c.Fuel
	g.Options = append([]string(nil), g.Options...)
	city.Options = append([]string(nil), city.Options...)
	fuel.Options = append([]string(nil), fuel.Options...)
	return Controls{Granularity: &g, City: &city, Fuel: &fuel}
}
