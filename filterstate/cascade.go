package filterstate

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/spektr-org/fuelscope/engine"
	"github.com/spektr-org/fuelscope/schema"
)

// ErrUnknownSelector is returned when a key does not name a cascade selector.
var ErrUnknownSelector = errors.New("filterstate: unknown selector")

// Order is the sidebar order of the cascading selectors.
var Order = []string{schema.Year, schema.Product, schema.Region, schema.State, schema.Municipality}

// Defaults configures the initial state of each selector, keyed by dimension.
type Defaults struct {
	Selected map[string][]string
	All      map[string]bool
}

// FuelDefaults mirrors the dashboard's landing view: 2025 gasoline prices in
// Juiz de Fora (MG, Southeast).
func FuelDefaults() Defaults {
	return Defaults{
		Selected: map[string][]string{
			schema.Year:         {"2025"},
			schema.Product:      {"GASOLINA"},
			schema.Region:       {"SE"},
			schema.State:        {"MG"},
			schema.Municipality: {"JUIZ DE FORA"},
		},
	}
}

// Cascade keeps the five sidebar selectors consistent with each other.
// Options of a dimension with a schema parent are the distinct values found
// in records whose parent value is currently selected.
//
// A Cascade is not safe for concurrent use; the server guards each session's
// cascade with its own lock.
type Cascade struct {
	view      engine.RecordView
	sch       schema.Config
	selectors []*Selector
	index     map[string]*Selector
}

// New builds a cascade over view, deriving option lists top-down.
func New(view engine.RecordView, sch schema.Config, defaults Defaults) *Cascade {
	c := &Cascade{
		view:  view,
		sch:   sch,
		index: make(map[string]*Selector, len(Order)),
	}
	for _, key := range Order {
		label := "Select " + sch.DisplayName(key)
		sel := NewSelector(key, label, c.optionsFor(key), defaults.Selected[key], defaults.All[key])
		c.selectors = append(c.selectors, sel)
		c.index[key] = sel
	}
	return c
}

// Select replaces the selection of key and refreshes its descendants.
func (c *Cascade) Select(key string, values []string) error {
	sel, ok := c.index[key]
	if !ok {
		return errors.Wrapf(ErrUnknownSelector, "selector %q", key)
	}
	sel.Select(values)
	c.refreshBelow(key)
	log.Debug().Str("selector", key).Strs("selected", sel.Selected).Bool("all", sel.All).Msg("🎛️ selection changed")
	return nil
}

// SetAll toggles the "Select all" checkbox of key and refreshes its descendants.
func (c *Cascade) SetAll(key string, checked bool) error {
	sel, ok := c.index[key]
	if !ok {
		return errors.Wrapf(ErrUnknownSelector, "selector %q", key)
	}
	sel.SetAll(checked)
	c.refreshBelow(key)
	log.Debug().Str("selector", key).Bool("all", checked).Msg("🎛️ select-all toggled")
	return nil
}

// Selector returns a copy of the selector for key.
func (c *Cascade) Selector(key string) (Selector, bool) {
	sel, ok := c.index[key]
	if !ok {
		return Selector{}, false
	}
	return sel.clone(), true
}

// Selected returns the current selection for key.
func (c *Cascade) Selected(key string) []string {
	if sel, ok := c.index[key]; ok {
		return append([]string(nil), sel.Selected...)
	}
	return nil
}

// Snapshot returns copies of every selector in sidebar order.
func (c *Cascade) Snapshot() []Selector {
	out := make([]Selector, len(c.selectors))
	for i, sel := range c.selectors {
		out[i] = sel.clone()
	}
	return out
}

// Filters returns the selections as engine filters. Empty selections stay in
// the map so engine.ApplySelections matches nothing for them.
func (c *Cascade) Filters() engine.Filters {
	f := engine.Filters{Dimensions: make(map[string][]string, len(c.selectors))}
	for _, sel := range c.selectors {
		f.Dimensions[sel.Key] = append([]string{}, sel.Selected...)
	}
	return f
}

// FiltersWithout returns Filters without the constraint on key.
func (c *Cascade) FiltersWithout(key string) engine.Filters {
	return c.Filters().Without(key)
}

// Apply narrows view to the records matching every selection.
func (c *Cascade) Apply(view engine.RecordView) engine.RecordView {
	return engine.ApplySelections(view, c.Filters())
}

// refreshBelow recomputes option lists of every selector after key in
// sidebar order. Order lists parents before children, so one pass suffices.
func (c *Cascade) refreshBelow(key string) {
	after := false
	for _, sel := range c.selectors {
		if after {
			sel.Refresh(c.optionsFor(sel.Key))
		}
		if sel.Key == key {
			after = true
		}
	}
}

// optionsFor lists the sorted distinct values of key, restricted by the
// parent's selection when the schema declares one.
func (c *Cascade) optionsFor(key string) []string {
	view := c.view
	if d, ok := c.sch.Dimension(key); ok && d.Parent != "" {
		if parent, ok := c.index[d.Parent]; ok {
			view = engine.ApplySelections(view, engine.Filters{
				Dimensions: map[string][]string{d.Parent: parent.Selected},
			})
		}
	}
	return engine.SortedUniqueValues(view, key)
}
