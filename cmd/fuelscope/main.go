package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spektr-org/fuelscope/config"
	"github.com/spektr-org/fuelscope/dashboard"
	"github.com/spektr-org/fuelscope/dataset"
	"github.com/spektr-org/fuelscope/engine"
	"github.com/spektr-org/fuelscope/fetch"
	"github.com/spektr-org/fuelscope/filterstate"
	"github.com/spektr-org/fuelscope/render"
	"github.com/spektr-org/fuelscope/schema"
	"github.com/spektr-org/fuelscope/server"
)

// ============================================================================
// FUELSCOPE CLI — ANP fuel prices 2020-2025
// ============================================================================

const version = "0.3.0"

// app carries what every command needs after flags and config are resolved.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config

	// Selection flags shared by every command.
	all         []string
	granularity string
	city        string
	fuel        string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:   "fuelscope",
		Short: "Interactive dashboard over ANP retail fuel prices (2020-2025)",
		Long: `fuelscope serves a filterable dashboard of Brazilian retail fuel prices
and renders the same panels from the command line.

Environment:
  FUELSCOPE_*                       Any config key, e.g. FUELSCOPE_DATA_PATH
  KAGGLE_USERNAME / KAGGLE_KEY      Credentials for downloading the dataset`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default ./fuelscope.yaml if present)")
	pf.String("data", "", "path to the consolidated CSV (downloads from Kaggle when empty)")
	pf.String("delimiter", ",", `CSV field separator ("tab" for tabs)`)
	pf.Bool("latin1", false, "decode the CSV as ISO-8859-1")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("log-format", "console", "log format: console or json")
	for flag, key := range map[string]string{
		"data":       "data.path",
		"delimiter":  "data.delimiter",
		"latin1":     "data.latin1",
		"log-level":  "log.level",
		"log-format": "log.format",
	} {
		_ = a.v.BindPFlag(key, pf.Lookup(flag))
	}

	a.selectionFlags(root)

	root.AddCommand(
		a.serveCmd(),
		a.summaryCmd(),
		a.chartCmd(),
		a.exportCmd(),
		a.fetchCmd(),
		versionCmd(),
	)
	return root
}

func (a *app) init() error {
	cfg, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	a.cfg = cfg
	log.Logger = cfg.Log.Logger(os.Stderr)
	return nil
}

// ============================================================================
// COMMANDS
// ============================================================================

func (a *app) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			view, err := a.load(cmd.Context())
			if err != nil {
				return err
			}
			srv := server.New(view, schema.FuelPrices(),
				server.WithDefaults(a.defaults()),
				server.WithRecordLimit(a.cfg.Dashboard.RecordLimit),
				server.WithSessionTTL(a.cfg.Dashboard.SessionTTL),
				server.WithLogger(log.Logger),
			)
			return srv.ListenAndServe(cmd.Context(), a.cfg.Addr)
		},
	}
	cmd.Flags().String("addr", ":8080", "listen address")
	cmd.Flags().Int("record-limit", 500, "rows shown in the records table")
	_ = a.v.BindPFlag("addr", cmd.Flags().Lookup("addr"))
	cmd.Flags().Duration("session-ttl", server.DefaultSessionTTL, "drop sessions idle for longer than this (0 keeps them)")
	_ = a.v.BindPFlag("dashboard.record_limit", cmd.Flags().Lookup("record-limit"))
	_ = a.v.BindPFlag("dashboard.session_ttl", cmd.Flags().Lookup("session-ttl"))
	return cmd
}

func (a *app) summaryCmd() *cobra.Command {
	var panel string
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print the KPIs and one panel as a table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.dashboard(cmd.Context(), 20)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			printKPIs(out, d)

			p, err := d.Panel(panel)
			if err != nil {
				return err
			}
			fmt.Fprintln(out)
			color.New(color.FgYellow).Fprintln(out, p.Heading)
			if p.Empty {
				color.New(color.FgRed).Fprintln(out, p.Warning)
				return nil
			}
			render.WriteTable(out, panelTable(p))
			if p.Caption != "" {
				fmt.Fprintln(out, p.Caption)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&panel, "panel", dashboard.PanelCompetition, "panel to print: "+strings.Join(dashboard.PanelIDs, ", "))
	return cmd
}

func (a *app) chartCmd() *cobra.Command {
	var out string
	var width, height int
	cmd := &cobra.Command{
		Use:   "chart <panel>",
		Short: "Render one chart panel as PNG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.dashboard(cmd.Context(), 0)
			if err != nil {
				return err
			}
			p, err := d.Panel(args[0])
			if err != nil {
				return err
			}
			if p.Empty {
				return errors.New(p.Warning)
			}
			if p.Chart == nil {
				return errors.Errorf("panel %q is a table; use export", p.ID)
			}
			if out == "" {
				out = p.ID + ".png"
			}
			return writeFile(out, func(w io.Writer) error {
				return render.PNG(w, p.Chart, width, height)
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default <panel>.png)")
	cmd.Flags().IntVar(&width, "width", render.DefaultWidth, "image width in pixels")
	cmd.Flags().IntVar(&height, "height", render.DefaultHeight, "image height in pixels")
	return cmd
}

func (a *app) exportCmd() *cobra.Command {
	var format, panel, out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a panel as CSV or the whole dashboard as XLSX",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.dashboard(cmd.Context(), 0)
			if err != nil {
				return err
			}

			switch format {
			case "xlsx":
				if out == "" {
					out = "fuelscope_dashboard.xlsx"
				}
				return writeFile(out, func(w io.Writer) error {
					return render.WriteXLSX(w, server.WorkbookTables(d)...)
				})
			case "csv":
				p, err := d.Panel(panel)
				if err != nil {
					return err
				}
				if out == "" || out == "-" {
					return render.WriteCSV(cmd.OutOrStdout(), p.Result())
				}
				return writeFile(out, func(w io.Writer) error {
					return render.WriteCSV(w, p.Result())
				})
			default:
				return errors.Errorf("unknown format %q (want csv or xlsx)", format)
			}
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "csv", "csv or xlsx")
	cmd.Flags().StringVar(&panel, "panel", dashboard.PanelRecords, "panel exported as CSV")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (CSV defaults to stdout)")
	return cmd
}

func (a *app) fetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Download the dataset from Kaggle into the cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := fetch.Download(cmd.Context(), a.cfg.Fetch(os.Stderr))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "fuelscope %s\n", version)
		},
	}
}

// ============================================================================
// SELECTION
// ============================================================================

// selectionFlags adds the sidebar filters. Each overrides the configured
// landing selection of its dimension, for the server as well.
func (a *app) selectionFlags(root *cobra.Command) {
	f := root.PersistentFlags()
	for _, key := range filterstate.Order {
		flag := strings.ReplaceAll(key, "_", "-")
		f.StringSlice(flag, nil, "selected "+schema.FuelPrices().DisplayName(key)+" values")
		_ = a.v.BindPFlag("defaults."+key, f.Lookup(flag))
	}
	f.StringSliceVar(&a.all, "all", nil, "dimensions with every option selected, e.g. --all state,municipality")
	f.StringVar(&a.granularity, "granularity", filterstate.GranularityDay, "timeline granularity: day or month")
	f.StringVar(&a.city, "city", "", "timeline city (default: first filtered city)")
	f.StringVar(&a.fuel, "fuel", "", "top-cities product (default: first product)")
}

// defaults are the configured landing selections plus --all.
func (a *app) defaults() filterstate.Defaults {
	d := a.cfg.CascadeDefaults()
	d.All = make(map[string]bool, len(a.all))
	for _, key := range a.all {
		d.All[key] = true
	}
	return d
}

// dashboard loads the data and builds the dashboard for the flags.
func (a *app) dashboard(ctx context.Context, recordLimit int) (*dashboard.Dashboard, error) {
	view, err := a.load(ctx)
	if err != nil {
		return nil, err
	}

	cascade := filterstate.New(view, schema.FuelPrices(), a.defaults())
	controls := filterstate.NewControls(view, cascade.Apply(view))
	controls.Granularity.Set(a.granularity)
	if a.city != "" && !controls.City.Set(a.city) {
		log.Warn().Str("city", a.city).Msg("⚠️ city not in the filtered rows, using " + controls.City.Value)
	}
	if a.fuel != "" && !controls.Fuel.Set(a.fuel) {
		log.Warn().Str("fuel", a.fuel).Msg("⚠️ unknown fuel, using " + controls.Fuel.Value)
	}

	return dashboard.Build(view, cascade, controls,
		dashboard.WithRecordLimit(recordLimit),
		dashboard.WithLogger(log.Logger),
	), nil
}

// load reads the configured CSV, downloading it first when no path is set.
func (a *app) load(ctx context.Context) (engine.RecordView, error) {
	path := a.cfg.Data.Path
	if path == "" {
		var err error
		path, err = fetch.Download(ctx, a.cfg.Fetch(os.Stderr))
		if err != nil {
			return nil, errors.Wrap(err, "no data.path configured and download failed")
		}
	}
	sales, err := dataset.LoadFile(path, schema.FuelPrices(), a.cfg.Data.LoadOptions()...)
	if err != nil {
		return nil, err
	}
	return dataset.View(sales), nil
}

// ============================================================================
// OUTPUT
// ============================================================================

func printKPIs(w io.Writer, d *dashboard.Dashboard) {
	label := color.New(color.FgCyan)
	value := color.New(color.FgGreen, color.Bold)
	k := d.KPIs

	color.New(color.FgCyan, color.Bold).Fprintf(w, "Fuel prices: %d of %d records selected\n", d.Filtered, d.Records)
	for _, row := range [][2]string{
		{"Average price", k.MeanLabel},
		{"Minimum price", k.MinLabel},
		{"Maximum price", k.MaxLabel},
		{"Records", k.CountLabel},
		{"Most expensive product", k.TopProduct},
		{"Period", k.Period},
	} {
		label.Fprintf(w, "  %-24s", row[0])
		value.Fprintln(w, row[1])
	}
	fmt.Fprintln(w, d.Headline)
}

func panelTable(p dashboard.Panel) *engine.TableData {
	if p.Table != nil {
		return p.Table
	}
	return render.ChartTable(p.Chart)
}

func writeFile(path string, write func(io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "create %s", dir)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return errors.Wrapf(err, "close %s", path)
	}
	log.Info().Str("path", path).Msg("📄 written")
	return nil
}
