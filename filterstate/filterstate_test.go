package filterstate

import (
	"errors"
	"strings"
	"testing"

	"github.com/spektr-org/fuelscope/engine"
	"github.com/spektr-org/fuelscope/schema"
)

// ============================================================================
// FIXTURES
// ============================================================================

func row(year, product, region, state, city string) engine.Record {
	return engine.Record{
		Dimensions: map[string]string{
			schema.Year:         year,
			schema.Product:      product,
			schema.Region:       region,
			schema.State:        state,
			schema.Municipality: city,
		},
		Measures: map[string]float64{schema.SalePrice: 6},
	}
}

func fixture() engine.RecordView {
	return engine.NewSliceView([]engine.Record{
		row("2025", "GASOLINA", "SE", "MG", "JUIZ DE FORA"),
		row("2025", "ETANOL", "SE", "MG", "BELO HORIZONTE"),
		row("2025", "GASOLINA", "SE", "RJ", "NITEROI"),
		row("2024", "GASOLINA", "SE", "SP", "CAMPINAS"),
		row("2024", "DIESEL", "NE", "BA", "SALVADOR"),
		row("2025", "GASOLINA", "NE", "PE", "RECIFE"),
	})
}

func joined(vals []string) string { return strings.Join(vals, ",") }

func assertList(t *testing.T, what string, got []string, want string) {
	t.Helper()
	if joined(got) != want {
		t.Errorf("%s = [%s], want [%s]", what, joined(got), want)
	}
}

// ============================================================================
// SELECTOR
// ============================================================================

func TestSelectorSeedsFromDefaults(t *testing.T) {
	s := NewSelector("state", "State", []string{"BA", "MG", "RJ"}, []string{"MG", "XX"}, false)
	assertList(t, "selected", s.Selected, "MG")
	if s.All {
		t.Error("checkbox should start unchecked")
	}

	s = NewSelector("state", "State", []string{"BA", "MG"}, []string{"XX"}, false)
	assertList(t, "fallback selection", s.Selected, "BA")

	s = NewSelector("state", "State", nil, []string{"MG"}, false)
	if !s.IsEmpty() || s.All {
		t.Errorf("no options should mean empty, unchecked: %+v", s)
	}
}

func TestSelectorAllByDefault(t *testing.T) {
	s := NewSelector("year", "Year", []string{"2024", "2025"}, nil, true)
	if !s.All {
		t.Error("checkbox should start checked")
	}
	assertList(t, "selected", s.Selected, "2024,2025")
}

func TestSelectorSelectSynchronizesCheckbox(t *testing.T) {
	s := NewSelector("product", "Product", []string{"DIESEL", "ETANOL", "GASOLINA"}, []string{"GASOLINA"}, false)

	s.Select([]string{"GASOLINA", "DIESEL", "ETANOL", "GASOLINA"})
	assertList(t, "selected", s.Selected, "DIESEL,ETANOL,GASOLINA")
	if !s.All {
		t.Error("selecting every option should check the box")
	}

	s.Select([]string{"ETANOL", "GNV"})
	assertList(t, "selected", s.Selected, "ETANOL")
	if s.All {
		t.Error("deselecting an option should uncheck the box")
	}

	s.Select(nil)
	if !s.IsEmpty() || s.All {
		t.Errorf("explicit empty selection should stay empty: %+v", s)
	}
}

func TestSelectorSetAllToggles(t *testing.T) {
	s := NewSelector("region", "Region", []string{"N", "NE", "SE"}, []string{"SE"}, false)

	s.SetAll(true)
	assertList(t, "checked", s.Selected, "N,NE,SE")

	s.SetAll(false)
	assertList(t, "unchecked", s.Selected, "SE")
	if s.All {
		t.Error("box should be unchecked")
	}
}

func TestSelectorRefresh(t *testing.T) {
	s := NewSelector("state", "State", []string{"MG", "RJ", "SP"}, []string{"MG"}, false)
	s.Select([]string{"MG", "RJ"})

	s.Refresh([]string{"BA", "RJ"})
	assertList(t, "pruned", s.Selected, "RJ")

	s.Refresh([]string{"BA", "PE"})
	assertList(t, "reseeded", s.Selected, "BA")

	s.SetAll(true)
	s.Refresh([]string{"AL", "BA", "SE"})
	assertList(t, "follows all", s.Selected, "AL,BA,SE")
	if !s.All {
		t.Error("checked box should survive refresh")
	}

	s.Select(nil)
	s.Refresh([]string{"AL"})
	if !s.IsEmpty() {
		t.Errorf("user-emptied selection should stay empty, got %v", s.Selected)
	}
}

func TestChoice(t *testing.T) {
	c := NewChoice("city", "City", []string{"A", "B"}, "B")
	if c.Value != "B" {
		t.Errorf("value = %q, want B", c.Value)
	}
	if c.Set("Z") || c.Value != "B" {
		t.Error("unknown value must be rejected")
	}
	c.Refresh([]string{"C", "D"})
	if c.Value != "C" {
		t.Errorf("refresh without current value should pick first, got %q", c.Value)
	}
	c.Refresh(nil)
	if c.Value != "" {
		t.Errorf("no options should clear value, got %q", c.Value)
	}
}

// ============================================================================
// CASCADE
// ============================================================================

func TestCascadeInitialState(t *testing.T) {
	c := New(fixture(), schema.FuelPrices(), FuelDefaults())

	assertList(t, "year options", mustSelector(t, c, schema.Year).Options, "2024,2025")
	assertList(t, "state options", mustSelector(t, c, schema.State).Options, "MG,RJ,SP")
	assertList(t, "city options", mustSelector(t, c, schema.Municipality).Options, "BELO HORIZONTE,JUIZ DE FORA")
	assertList(t, "city selection", c.Selected(schema.Municipality), "JUIZ DE FORA")

	if got := c.Apply(fixture()).Len(); got != 1 {
		t.Errorf("filtered rows = %d, want 1", got)
	}
}

func TestCascadeRegionChangePropagates(t *testing.T) {
	c := New(fixture(), schema.FuelPrices(), FuelDefaults())

	if err := c.Select(schema.Region, []string{"NE"}); err != nil {
		t.Fatalf("Select: %v", err)
	}

	assertList(t, "state options", mustSelector(t, c, schema.State).Options, "BA,PE")
	assertList(t, "state reseeded", c.Selected(schema.State), "BA")
	assertList(t, "city options", mustSelector(t, c, schema.Municipality).Options, "SALVADOR")
	assertList(t, "city reseeded", c.Selected(schema.Municipality), "SALVADOR")

	// Upstream selectors are untouched.
	assertList(t, "year", c.Selected(schema.Year), "2025")
}

func TestCascadeSelectAllStatesFollowsRegions(t *testing.T) {
	c := New(fixture(), schema.FuelPrices(), FuelDefaults())

	if err := c.SetAll(schema.State, true); err != nil {
		t.Fatalf("SetAll: %v", err)
	}
	assertList(t, "all SE states", c.Selected(schema.State), "MG,RJ,SP")
	assertList(t, "city options", mustSelector(t, c, schema.Municipality).Options, "BELO HORIZONTE,CAMPINAS,JUIZ DE FORA,NITEROI")
	assertList(t, "city keeps selection", c.Selected(schema.Municipality), "JUIZ DE FORA")

	if err := c.SetAll(schema.Region, true); err != nil {
		t.Fatalf("SetAll region: %v", err)
	}
	assertList(t, "states follow region", c.Selected(schema.State), "BA,MG,PE,RJ,SP")
	if sel := mustSelector(t, c, schema.State); !sel.All {
		t.Error("state checkbox should stay checked")
	}
}

func TestCascadeChildrenRecoverAfterParentCleared(t *testing.T) {
	c := New(fixture(), schema.FuelPrices(), FuelDefaults())
	if err := c.SetAll(schema.State, true); err != nil {
		t.Fatalf("SetAll: %v", err)
	}

	if err := c.Select(schema.Region, nil); err != nil {
		t.Fatalf("clear region: %v", err)
	}
	assertList(t, "state while region empty", c.Selected(schema.State), "")
	assertList(t, "city while region empty", c.Selected(schema.Municipality), "")

	if err := c.Select(schema.Region, []string{"SE"}); err != nil {
		t.Fatalf("restore region: %v", err)
	}
	assertList(t, "state back to all", c.Selected(schema.State), "MG,RJ,SP")
	if sel := mustSelector(t, c, schema.State); !sel.All {
		t.Error("state checkbox should come back checked")
	}
	assertList(t, "city reseeded", c.Selected(schema.Municipality), "JUIZ DE FORA")
	if got := c.Apply(fixture()).Len(); got != 1 {
		t.Errorf("filtered rows after restore = %d, want 1", got)
	}
}

func TestSelectorReseedsWhenOptionsReturn(t *testing.T) {
	s := NewSelector("state", "State", []string{"MG", "RJ"}, []string{"MG"}, false)

	s.Refresh(nil)
	if !s.IsEmpty() || s.All {
		t.Fatalf("no options should mean no selection: %+v", s)
	}
	s.Refresh(nil)
	s.Refresh([]string{"MG", "SP"})
	assertList(t, "reseeded", s.Selected, "MG")
}

func TestCascadeEmptySelectionFiltersEverything(t *testing.T) {
	c := New(fixture(), schema.FuelPrices(), FuelDefaults())
	if err := c.Select(schema.Product, nil); err != nil {
		t.Fatalf("Select: %v", err)
	}
	if got := c.Apply(fixture()).Len(); got != 0 {
		t.Errorf("empty product selection should filter everything, got %d", got)
	}

	withoutProduct := engine.ApplySelections(fixture(), c.FiltersWithout(schema.Product))
	if withoutProduct.Len() != 1 {
		t.Errorf("rows ignoring product = %d, want 1", withoutProduct.Len())
	}
}

func TestCascadeUnknownSelector(t *testing.T) {
	c := New(fixture(), schema.FuelPrices(), FuelDefaults())
	err := c.Select("brand", []string{"SHELL"})
	if !errors.Is(err, ErrUnknownSelector) {
		t.Errorf("Select(brand) err = %v, want ErrUnknownSelector", err)
	}
	if err == nil || !strings.Contains(err.Error(), `"brand"`) {
		t.Errorf("error should name the selector: %v", err)
	}
	if err := c.SetAll("nope", true); !errors.Is(err, ErrUnknownSelector) {
		t.Errorf("SetAll(nope) err = %v, want ErrUnknownSelector", err)
	}
}

func TestCascadeSnapshotIsCopy(t *testing.T) {
	c := New(fixture(), schema.FuelPrices(), FuelDefaults())
	snap := c.Snapshot()
	if len(snap) != len(Order) {
		t.Fatalf("snapshot size = %d", len(snap))
	}
	snap[0].Selected[0] = "1999"
	assertList(t, "year after snapshot mutation", c.Selected(schema.Year), "2025")
}

func TestCascadeEmptyDataset(t *testing.T) {
	c := New(engine.NewSliceView(nil), schema.FuelPrices(), FuelDefaults())
	for _, sel := range c.Snapshot() {
		if len(sel.Options) != 0 || len(sel.Selected) != 0 {
			t.Errorf("%s should be empty: %+v", sel.Key, sel)
		}
	}
}

func TestControls(t *testing.T) {
	base := fixture()
	c := New(base, schema.FuelPrices(), FuelDefaults())
	ctl := NewControls(base, c.Apply(base))

	if ctl.Granularity.Value != GranularityDay {
		t.Errorf("granularity = %q", ctl.Granularity.Value)
	}
	assertList(t, "fuel options", ctl.Fuel.Options, "DIESEL,ETANOL,GASOLINA")
	if ctl.City.Value != "JUIZ DE FORA" {
		t.Errorf("city = %q", ctl.City.Value)
	}

	_ = c.SetAll(schema.Municipality, true)
	ctl.Refresh(c.Apply(base))
	if ctl.City.Value != "JUIZ DE FORA" {
		t.Errorf("city should survive refresh, got %q", ctl.City.Value)
	}
}

func mustSelector(t *testing.T, c *Cascade, key string) Selector {
	t.Helper()
	sel, ok := c.Selector(key)
	if !ok {
		t.Fatalf("selector %q missing", key)
	}
	return sel
}
