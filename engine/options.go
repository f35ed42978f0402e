package engine

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ============================================================================
// ENGINE OPTIONS — Functional options for Execute()
// ============================================================================

// Option configures engine behavior via functional options pattern.
type Option func(*config)

type config struct {
	DefaultMeasure string // default measure key if Query.Measure is empty
	Unit           string // display unit for monetary values
	DateDimension  string // dimension used to derive the period label
	Logger         zerolog.Logger
}

// WithDefaultMeasure sets the measure to aggregate when Query.Measure is empty.
func WithDefaultMeasure(measure string) Option {
	return func(c *config) {
		c.DefaultMeasure = measure
	}
}

// WithUnit sets the display unit (e.g., "R$") used when formatting values.
func WithUnit(unit string) Option {
	return func(c *config) {
		c.Unit = unit
	}
}

// WithDateDimension sets the dimension DerivePeriod reads dates from.
func WithDateDimension(dimension string) Option {
	return func(c *config) {
		c.DateDimension = dimension
	}
}

// WithLogger routes engine logs to l instead of the global zerolog logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *config) {
		c.Logger = l
	}
}

// applyOptions creates a config from functional options.
func applyOptions(opts []Option) *config {
	cfg := &config{
		DefaultMeasure: "sale_price",
		Unit:           "R$",
		DateDimension:  "collected_on",
		Logger:         log.Logger,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
