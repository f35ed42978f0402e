package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"

	"github.com/spektr-org/fuelscope/dashboard"
	"github.com/spektr-org/fuelscope/engine"
	"github.com/spektr-org/fuelscope/filterstate"
	"github.com/spektr-org/fuelscope/render"
)

// ============================================================================
// PAGE
// ============================================================================

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.get(w, r)
	sess.mu.Lock()
	d := s.build(sess, s.recordLimit)
	sess.mu.Unlock()

	s.renderPage(w, d)
}

// handleForm applies a sidebar submission. Selectors are processed in
// cascade order; a checkbox whose state changed toggles "Select all",
// otherwise a multiselect whose values changed replaces the selection.
// Unchanged widgets are left alone so parents can reseed their children.
func (s *Server) handleForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	sess := s.sessions.get(w, r)
	sess.mu.Lock()
	for _, key := range filterstate.Order {
		s.applyWidget(sess.cascade, key, r.PostForm)
	}
	sess.refresh(s.base)
	applyControls(sess.controls, r.PostForm.Get("granularity"), r.PostForm.Get("city"), r.PostForm.Get("fuel"))
	d := s.build(sess, s.recordLimit)
	sess.mu.Unlock()

	s.renderPage(w, d)
}

// applyWidget applies one selector's form fields. A rejected change is
// logged and the selector keeps its previous state.
func (s *Server) applyWidget(c *filterstate.Cascade, key string, form url.Values) {
	before, _ := c.Selector(key)
	checked := form.Get(key+"_all") != ""
	wasChecked := form.Get(key+"_all_prev") == "true"

	var err error
	switch {
	case checked != wasChecked:
		err = c.SetAll(key, checked)
	case !sameValues(form[key], before.Selected) && !sameValues(form[key], form[key+"_prev"]):
		err = c.Select(key, form[key])
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("selector", key).Msg("⚠️ form selection rejected")
	}
}

func (s *Server) renderPage(w http.ResponseWriter, d *dashboard.Dashboard) {
	var buf bytes.Buffer
	if err := s.page.Execute(&buf, d); err != nil {
		s.logger.Error().Err(err).Msg("❌ page render failed")
		http.Error(w, "Error rendering page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

// sameValues compares two selections as sets.
func sameValues(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, v := range a {
		set[v] = true
	}
	for _, v := range b {
		if !set[v] {
			return false
		}
	}
	return true
}

func applyControls(c *filterstate.Controls, granularity, city, fuel string) {
	if granularity != "" {
		c.Granularity.Set(granularity)
	}
	if city != "" {
		c.City.Set(city)
	}
	if fuel != "" {
		c.Fuel.Set(fuel)
	}
}

// ============================================================================
// JSON API
// ============================================================================

type filtersResponse struct {
	Filters  []filterstate.Selector `json:"filters"`
	Controls filterstate.Controls   `json:"controls"`
}

func (s *Server) filtersOf(sess *session) filtersResponse {
	return filtersResponse{Filters: sess.cascade.Snapshot(), Controls: sess.controls.Clone()}
}

func (s *Server) handleFilters(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.get(w, r)
	sess.mu.Lock()
	resp := s.filtersOf(sess)
	sess.mu.Unlock()
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Values []string `json:"values"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	s.mutate(w, r, func(c *filterstate.Cascade, key string) error {
		return c.Select(key, body.Values)
	})
}

func (s *Server) handleSelectAll(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Checked bool `json:"checked"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	s.mutate(w, r, func(c *filterstate.Cascade, key string) error {
		return c.SetAll(key, body.Checked)
	})
}

// mutate applies fn to the session cascade for the {key} URL parameter and
// answers with the new widget state.
func (s *Server) mutate(w http.ResponseWriter, r *http.Request, fn func(*filterstate.Cascade, string) error) {
	key := chi.URLParam(r, "key")
	sess := s.sessions.get(w, r)
	sess.mu.Lock()
	err := fn(sess.cascade, key)
	if err == nil {
		sess.refresh(s.base)
	}
	resp := s.filtersOf(sess)
	sess.mu.Unlock()

	if errors.Is(err, filterstate.ErrUnknownSelector) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleControls(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Granularity string `json:"granularity"`
		City        string `json:"city"`
		Fuel        string `json:"fuel"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	sess := s.sessions.get(w, r)
	sess.mu.Lock()
	applyControls(sess.controls, body.Granularity, body.City, body.Fuel)
	resp := s.filtersOf(sess)
	sess.mu.Unlock()
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.get(w, r)
	sess.mu.Lock()
	d := s.build(sess, s.recordLimit)
	sess.mu.Unlock()
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"records":  s.base.Len(),
		"sessions": s.sessions.len(),
	})
}

// ============================================================================
// CHARTS AND EXPORTS
// ============================================================================

// maxChartSide caps the ?w= and ?h= chart parameters, in pixels.
const maxChartSide = 4000

// panel builds the session dashboard and picks one panel, answering the
// request itself when that fails.
func (s *Server) panel(w http.ResponseWriter, r *http.Request, recordLimit int) (dashboard.Panel, bool) {
	sess := s.sessions.get(w, r)
	sess.mu.Lock()
	d := s.build(sess, recordLimit)
	sess.mu.Unlock()

	p, err := d.Panel(chi.URLParam(r, "panel"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return dashboard.Panel{}, false
	}
	return p, true
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	p, ok := s.panel(w, r, s.recordLimit)
	if !ok {
		return
	}
	if p.Empty || p.Chart == nil {
		msg := p.Warning
		if msg == "" {
			msg = fmt.Sprintf("panel %q has no chart", p.ID)
		}
		writeError(w, http.StatusUnprocessableEntity, msg)
		return
	}

	width, _ := strconv.Atoi(r.URL.Query().Get("w"))
	height, _ := strconv.Atoi(r.URL.Query().Get("h"))
	width, height = min(width, maxChartSide), min(height, maxChartSide)

	var buf bytes.Buffer
	if err := render.PNG(&buf, p.Chart, width, height); err != nil {
		s.logger.Warn().Err(err).Str("panel", p.ID).Msg("⚠️ chart render failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}

func (s *Server) handleCSV(w http.ResponseWriter, r *http.Request) {
	p, ok := s.panel(w, r, 0)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := render.WriteCSV(&buf, p.Result()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.csv", p.ID))
	w.Write(buf.Bytes())
}

func (s *Server) handleWorkbook(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.get(w, r)
	sess.mu.Lock()
	d := s.build(sess, 0)
	sess.mu.Unlock()

	var buf bytes.Buffer
	if err := render.WriteXLSX(&buf, WorkbookTables(d)...); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename=fuelscope_dashboard.xlsx")
	w.Write(buf.Bytes())
}

// WorkbookTables lays out a dashboard as spreadsheet tables: the KPIs first,
// then every non-empty panel.
func WorkbookTables(d *dashboard.Dashboard) []*engine.TableData {
	k := d.KPIs
	tables := []*engine.TableData{{
		Title: "KPIs",
		Columns: []engine.Column{
			{Key: "metric", Label: "Metric", Type: "text"},
			{Key: "value", Label: "Value", Type: "text"},
		},
		Rows: [][]string{
			{"Average price", k.MeanLabel},
			{"Minimum price", k.MinLabel},
			{"Maximum price", k.MaxLabel},
			{"Records", k.CountLabel},
			{"Most expensive product", k.TopProduct},
			{"Period", k.Period},
		},
	}}

	for _, p := range d.Panels {
		switch {
		case p.Empty:
			continue
		case p.Table != nil:
			t := *p.Table
			t.Title = p.Heading
			tables = append(tables, &t)
		case p.Chart != nil:
			t := render.ChartTable(p.Chart)
			t.Title = p.Heading
			tables = append(tables, t)
		}
	}
	return tables
}

// ============================================================================
// HELPERS
// ============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
