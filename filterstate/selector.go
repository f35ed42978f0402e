// Package filterstate holds the widget state behind the dashboard sidebar:
// multiselects paired with a "Select all" checkbox, single-choice pickers,
// and the cascade that keeps dependent option lists (region → state →
// municipality) consistent with their parents' selections.
package filterstate

// Selector is one multiselect widget and its "Select all" checkbox.
//
// Invariants after every mutation:
//   - Selected ⊆ Options, in option order, without duplicates
//   - All == (len(Options) > 0 && Selected == Options)
type Selector struct {
	Key      string   `json:"key"`
	Label    string   `json:"label"`
	Options  []string `json:"options"`
	Selected []string `json:"selected"`
	All      bool     `json:"all"`

	defaults []string
	// checked survives an empty option list so "Select all" comes back
	// with the options.
	checked bool
	// pruned marks a selection emptied by Refresh rather than by the user.
	pruned bool
}

// NewSelector builds a selector. The selection starts from defaults that are
// present in options, or the first option when none are. With allByDefault
// the checkbox starts checked and every option is selected.
func NewSelector(key, label string, options, defaults []string, allByDefault bool) *Selector {
	s := &Selector{
		Key:      key,
		Label:    label,
		Options:  append([]string(nil), options...),
		defaults: append([]string(nil), defaults...),
	}
	if allByDefault {
		s.SetAll(true)
	} else {
		s.Selected = s.seed()
		s.sync()
	}
	return s
}

// Select replaces the selection. Values not offered are dropped and the
// checkbox follows: it is checked exactly when every option is selected.
func (s *Selector) Select(values []string) {
	s.Selected = s.intersect(values)
	s.sync()
	s.checked, s.pruned = s.All, false
}

// SetAll mirrors toggling the checkbox: checking selects every option,
// unchecking restores the initial selection.
func (s *Selector) SetAll(checked bool) {
	if checked {
		s.Selected = append([]string(nil), s.Options...)
	} else {
		s.Selected = s.seed()
	}
	s.sync()
	s.checked, s.pruned = checked, false
}

// Refresh replaces the option list after a parent selection changed.
// A checked selector keeps selecting everything; otherwise the selection is
// pruned to the surviving options and reseeded if pruning emptied it.
// Both survive a parent that briefly offers no options: the checkbox and
// the reseed apply again once options come back.
func (s *Selector) Refresh(options []string) {
	s.Options = append([]string(nil), options...)
	if s.checked {
		s.Selected = append([]string(nil), s.Options...)
		s.sync()
		return
	}

	hadSelection := len(s.Selected) > 0 || s.pruned
	s.Selected = s.intersect(s.Selected)
	if hadSelection && len(s.Selected) == 0 {
		s.Selected = s.seed()
	}
	s.pruned = hadSelection && len(s.Selected) == 0
	s.sync()
}

// Contains reports whether value is selected.
func (s *Selector) Contains(value string) bool {
	for _, v := range s.Selected {
		if v == value {
			return true
		}
	}
	return false
}

// IsEmpty reports whether nothing is selected.
func (s *Selector) IsEmpty() bool { return len(s.Selected) == 0 }

// clone returns a deep copy safe to hand out.
func (s *Selector) clone() Selector {
	c := *s
	c.Options = append([]string(nil), s.Options...)
	c.Selected = append([]string(nil), s.Selected...)
	c.defaults = append([]string(nil), s.defaults...)
	return c
}

func (s *Selector) seed() []string {
	if sel := s.intersect(s.defaults); len(sel) > 0 {
		return sel
	}
	if len(s.Options) > 0 {
		return []string{s.Options[0]}
	}
	return nil
}

// intersect returns the options present in values, in option order.
func (s *Selector) intersect(values []string) []string {
	want := make(map[string]bool, len(values))
	for _, v := range values {
		want[v] = true
	}
	out := make([]string, 0, len(values))
	for _, o := range s.Options {
		if want[o] {
			out = append(out, o)
			delete(want, o)
		}
	}
	return out
}

func (s *Selector) sync() {
	s.All = len(s.Options) > 0 && len(s.Selected) == len(s.Options)
}

// Choice is a single-select widget.
type Choice struct {
	Key     string   `json:"key"`
	Label   string   `json:"label"`
	Options []string `json:"options"`
	Value   string   `json:"value"`
}

// NewChoice builds a choice preselecting preferred when offered, else the first option.
func NewChoice(key, label string, options []string, preferred string) *Choice {
	c := &Choice{Key: key, Label: label}
	c.Refresh(options)
	c.Set(preferred)
	return c
}

// Set selects value and reports whether it was one of the options.
func (c *Choice) Set(value string) bool {
	for _, o := range c.Options {
		if o == value {
			c.Value = value
			return true
		}
	}
	return false
}

// Refresh replaces the options, keeping the current value when still offered.
func (c *Choice) Refresh(options []string) {
	c.Options = append([]string(nil), options...)
	if c.Set(c.Value) {
		return
	}
	c.Value = ""
	if len(c.Options) > 0 {
		c.Value = c.Options[0]
	}
}
