package server

import (
	"html/template"
	"strconv"

	"github.com/spektr-org/fuelscope/engine"
	"github.com/spektr-org/fuelscope/filterstate"
)

var pageFuncs = template.FuncMap{
	"selected": func(s filterstate.Selector, value string) bool {
		return s.Contains(value)
	},
	"progressPct": func(cell string, max float64) int {
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil || max <= 0 {
			return 0
		}
		return int(v / max * 100)
	},
	"summaryValue": func(s *engine.Summary, key string) string {
		if s == nil {
			return ""
		}
		return s.Values[key]
	},
}

const pageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Fuel prices in Brazil 2020-2025</title>
<style>
body { font-family: sans-serif; margin: 0; display: flex; }
aside { width: 280px; padding: 1rem; background: #f4f6f8; min-height: 100vh; }
main { flex: 1; padding: 1rem 2rem; }
select[multiple] { width: 100%; min-height: 6rem; }
.kpis { display: flex; gap: 1rem; }
.kpi { background: #fff; border: 1px solid #ddd; border-radius: 6px; padding: .75rem 1rem; flex: 1; }
.kpi b { display: block; font-size: 1.4rem; }
.warning { background: #fff3cd; border: 1px solid #ffe08a; padding: .75rem; }
table { border-collapse: collapse; width: 100%; }
th, td { border-bottom: 1px solid #ddd; padding: .3rem .5rem; }
td.right { text-align: right; }
section { margin: 1.5rem 0; }
</style>
</head>
<body>
<aside>
<h2>Filters</h2>
<form method="post" action="/">
{{- range .Filters }}
<fieldset>
<legend>{{ .Label }}</legend>
<select name="{{ .Key }}" multiple>
{{- $sel := . }}
{{- range .Options }}
<option value="{{ . }}"{{ if selected $sel . }} selected{{ end }}>{{ . }}</option>
{{- end }}
</select>
{{- range .Selected }}
<input type="hidden" name="{{ $sel.Key }}_prev" value="{{ . }}">
{{- end }}
<label><input type="checkbox" name="{{ .Key }}_all"{{ if .All }} checked{{ end }}> Select all</label>
<input type="hidden" name="{{ .Key }}_all_prev" value="{{ .All }}">
</fieldset>
{{- end }}
<fieldset>
<legend>Panels</legend>
{{- with .Controls.Granularity }}
<label>{{ .Label }} <select name="{{ .Key }}">{{ $v := .Value }}{{ range .Options }}<option value="{{ . }}"{{ if eq . $v }} selected{{ end }}>{{ . }}</option>{{ end }}</select></label>
{{- end }}
{{- with .Controls.City }}
<label>{{ .Label }} <select name="{{ .Key }}">{{ $v := .Value }}{{ range .Options }}<option value="{{ . }}"{{ if eq . $v }} selected{{ end }}>{{ . }}</option>{{ end }}</select></label>
{{- end }}
{{- with .Controls.Fuel }}
<label>{{ .Label }} <select name="{{ .Key }}">{{ $v := .Value }}{{ range .Options }}<option value="{{ . }}"{{ if eq . $v }} selected{{ end }}>{{ . }}</option>{{ end }}</select></label>
{{- end }}
</fieldset>
<button type="submit">Apply</button>
</form>
<p><a href="/export/dashboard.xlsx">Download workbook</a></p>
</aside>
<main>
<h1>Fuel prices in Brazil 2020-2025</h1>
<p>{{ .Filtered }} of {{ .Records }} records selected.</p>
<p class="headline">{{ .Headline }}</p>
<div class="kpis">
<div class="kpi">Average price<b>{{ .KPIs.MeanLabel }}</b></div>
<div class="kpi">Minimum price<b>{{ .KPIs.MinLabel }}</b></div>
<div class="kpi">Maximum price<b>{{ .KPIs.MaxLabel }}</b></div>
<div class="kpi">Records<b>{{ .KPIs.CountLabel }}</b></div>
<div class="kpi">Most expensive product<b>{{ .KPIs.TopProduct }}</b></div>
<div class="kpi">Period<b>{{ .KPIs.Period }}</b></div>
</div>
{{- range .Panels }}
<section id="{{ .ID }}">
<h3>{{ .Heading }}</h3>
{{- if .Empty }}
<div class="warning">{{ .Warning }}</div>
{{- else if .Chart }}
<img src="/charts/{{ .ID }}.png" alt="{{ .Chart.Title }}">
{{- else if .Table }}
{{- $t := .Table }}
<table>
<thead><tr>{{ range $t.Columns }}<th>{{ .Label }}</th>{{ end }}</tr></thead>
<tbody>
{{- range $t.Rows }}
<tr>{{ range $i, $cell := . }}{{ with index $t.Columns $i }}{{ if eq .Type "progress" }}<td><progress max="100" value="{{ progressPct $cell .Max }}"></progress> {{ $cell }}</td>{{ else }}<td class="{{ .Align }}">{{ $cell }}</td>{{ end }}{{ end }}{{ end }}</tr>
{{- end }}
</tbody>
{{- with $t.Summary }}
<tfoot><tr>{{ range $i, $c := $t.Columns }}<th>{{ if eq $i 0 }}{{ $t.Summary.Label }}{{ else }}{{ summaryValue $t.Summary $c.Key }}{{ end }}</th>{{ end }}</tr></tfoot>
{{- end }}
</table>
{{- end }}
{{- if .Caption }}<p><small>{{ .Caption }}</small></p>{{ end }}
{{- if not .Empty }}<p><a href="/export/{{ .ID }}.csv">CSV</a></p>{{ end }}
</section>
{{- end }}
</main>
</body>
</html>
`
