package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/arloliu/czi/geom"
	"github.com/arloliu/czi/internal/config"
	"github.com/arloliu/czi/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

// commonFlags are accepted by every subcommand.
type commonFlags struct {
	configPath string
	logLevel   string
	metrics    bool
}

func addCommonFlags(flagSet *pflag.FlagSet) *commonFlags {
	c := &commonFlags{}
	flagSet.StringVar(&c.configPath, "config", "", "YAML file with defaults")
	flagSet.StringVar(&c.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flagSet.BoolVar(&c.metrics, "metrics", false, "print the collected metrics when done")
	flagSet.BoolP("help", "h", false, "show help")

	return c
}

// environment is what a subcommand runs with.
type environment struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	dump     bool
}

// load reads the configuration, applies the flag overrides of flagSet via
// override and sets up logging and metrics.
func (c *commonFlags) load(flagSet *pflag.FlagSet, override func(cfg *config.Config) error) (*environment, error) {
	cfg := config.DefaultConfig()
	if c.configPath != "" {
		var err error
		if cfg, err = config.Load(c.configPath); err != nil {
			return nil, err
		}
	}

	if flagSet.Changed("log-level") {
		cfg.Logging.Level = c.logLevel
	}
	if override != nil {
		if err := override(cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := cfg.Logging.NewLogger()
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	registry := prometheus.NewRegistry()

	return &environment{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		metrics:  metrics.New(registry),
		dump:     c.metrics,
	}, nil
}

// close flushes the logger and prints the metrics if requested.
func (e *environment) close(w io.Writer) {
	if e.dump {
		if err := dumpMetrics(w, e.registry); err != nil {
			e.logger.Warn("gathering metrics failed", zap.Error(err))
		}
	}
	_ = e.logger.Sync()
}

// dumpMetrics prints every non-zero sample of reg, one per line.
func dumpMetrics(w io.Writer, reg prometheus.Gatherer) error {
	families, err := reg.Gather()
	if err != nil {
		return err
	}

	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				if v := m.GetCounter().GetValue(); v != 0 {
					fmt.Fprintf(w, "%s %g\n", mf.GetName(), v)
				}
			case m.GetGauge() != nil:
				if v := m.GetGauge().GetValue(); v != 0 {
					fmt.Fprintf(w, "%s %g\n", mf.GetName(), v)
				}
			case m.GetHistogram() != nil:
				h := m.GetHistogram()
				if h.GetSampleCount() != 0 {
					fmt.Fprintf(w, "%s_count %d\n%s_sum %g\n", mf.GetName(), h.GetSampleCount(), mf.GetName(), h.GetSampleSum())
				}
			}
		}
	}

	return nil
}

// parseInts parses n comma separated integers.
func parseInts(s string, n int) ([]int, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("expected %d comma separated values, got %q", n, s)
	}

	values := make([]int, n)
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid value %q: %w", p, err)
		}
		values[i] = v
	}

	return values, nil
}

// parseROI parses a rectangle given as "x,y,w,h".
func parseROI(s string) (geom.IntRect, error) {
	v, err := parseInts(s, 4)
	if err != nil {
		return geom.IntRect{}, fmt.Errorf("rectangle: %w", err)
	}
	if v[2] <= 0 || v[3] <= 0 {
		return geom.IntRect{}, fmt.Errorf("rectangle: width and height must be positive, got %s", s)
	}

	return geom.IntRect{X: v[0], Y: v[1], W: v[2], H: v[3]}, nil
}

// parseColor parses "r,g,b" with components in [0, 1].
func parseColor(s string) ([]float32, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return nil, fmt.Errorf("expected r,g,b, got %q", s)
	}

	color := make([]float32, 3)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("invalid color component %q: %w", p, err)
		}
		color[i] = float32(v)
	}

	return color, nil
}
