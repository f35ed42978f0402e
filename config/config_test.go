package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/spektr-org/fuelscope/schema"
)

// chdir moves into a scratch directory so no stray fuelscope.yaml or .env
// leaks into the test.
func chdir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(wd) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdir(t)
	cfg, err := Load(viper.New(), "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":8080" || cfg.Data.DelimiterRune() != ',' || cfg.Data.Latin1 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.Kaggle.Dataset != "dataset-combustiveis-2020-a-2025" || cfg.Kaggle.File != "consolidada_tratada.csv" {
		t.Errorf("kaggle = %+v", cfg.Kaggle)
	}
	d := cfg.CascadeDefaults()
	if strings.Join(d.Selected[schema.Municipality], ",") != "JUIZ DE FORA" || strings.Join(d.Selected[schema.Year], ",") != "2025" {
		t.Errorf("cascade defaults = %+v", d.Selected)
	}
	if cfg.Dashboard.RecordLimit != 500 {
		t.Errorf("record limit = %d", cfg.Dashboard.RecordLimit)
	}
	if cfg.Dashboard.SessionTTL != 12*time.Hour {
		t.Errorf("session ttl = %v", cfg.Dashboard.SessionTTL)
	}
}

func TestLoadFileAndEnvironment(t *testing.T) {
	dir := chdir(t)
	file := filepath.Join(dir, "custom.yaml")
	yaml := "addr: \":9000\"\ndata:\n  path: /data/precos.csv\n  delimiter: \";\"\n  latin1: true\ndefaults:\n  state: [RJ, SP]\n"
	if err := os.WriteFile(file, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FUELSCOPE_ADDR", ":7000")
	t.Setenv("KAGGLE_USERNAME", "ana")

	cfg, err := Load(viper.New(), file)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":7000" {
		t.Errorf("env should override file, addr = %q", cfg.Addr)
	}
	if cfg.Data.Path != "/data/precos.csv" || cfg.Data.DelimiterRune() != ';' || !cfg.Data.Latin1 {
		t.Errorf("data = %+v", cfg.Data)
	}
	if strings.Join(cfg.Defaults.State, ",") != "RJ,SP" {
		t.Errorf("state defaults = %v", cfg.Defaults.State)
	}
	if cfg.Kaggle.Username != "ana" {
		t.Errorf("kaggle username = %q", cfg.Kaggle.Username)
	}
	if fc := cfg.Fetch(nil); fc.Owner != "paulobosco" || fc.Username != "ana" || fc.CacheDir == "" {
		t.Errorf("fetch config = %+v", fc)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := chdir(t)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("FUELSCOPE_LOG_LEVEL=debug\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("FUELSCOPE_LOG_LEVEL") })

	cfg, err := Load(viper.New(), "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q, want debug from .env", cfg.Log.Level)
	}
}

func TestLoadMissingFile(t *testing.T) {
	chdir(t)
	if _, err := Load(viper.New(), "nope.yaml"); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestDelimiterRune(t *testing.T) {
	cases := map[string]rune{"": ',', ",": ',', ";": ';', "tab": '\t', `\t`: '\t', "|": '|'}
	for in, want := range cases {
		if got := (DataConfig{Delimiter: in}).DelimiterRune(); got != want {
			t.Errorf("DelimiterRune(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := LogConfig{Level: "warn", Format: "json"}.Logger(&buf)
	logger.Info().Msg("hidden")
	logger.Warn().Str("panel", "region").Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, `"panel":"region"`) {
		t.Errorf("log output = %q", out)
	}
}
