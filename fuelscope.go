// Package fuelscope is an analytics dashboard over the ANP retail fuel price
// survey for 2020-2025.
//
// The pieces compose bottom-up:
//
//	sales, _ := dataset.LoadFile("consolidada_tratada.csv", schema.FuelPrices())
//	view := dataset.View(sales)
//
//	cascade := filterstate.New(view, schema.FuelPrices(), filterstate.FuelDefaults())
//	d := dashboard.Build(view, cascade, nil)
//
//	render.PNG(w, d.Panels[0].Chart, 0, 0)
//
// The engine never calls any external service; only fetch talks to Kaggle.
// cmd/fuelscope wires everything behind a CLI and an HTTP server.
package fuelscope
