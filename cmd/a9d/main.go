package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"a9d/internal/config"
	"a9d/internal/manager"
	"a9d/internal/runtime"
)

func main() {
	if err := buildRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// options collects persistent flags. Flags that were set explicitly override
// values from the config file.
type options struct {
	configPath   string
	addr         string
	modelPath    string
	bundlesDir   string
	backendOrder string
	auxPath      string
	strict       bool
	logLevel     string
	logFormat    string
	swagger      bool
}

// envOr returns the environment value of key, or def when unset.
func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func buildRootCmd(stdout, stderr io.Writer) *cobra.Command {
	return buildRootCmdWith(&options{}, stdout, stderr)
}

// buildRootCmdWith constructs the command tree bound to o.
func buildRootCmdWith(o *options, stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "a9d",
		Short:         "Load a network bundle and an aux module, then serve evaluations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&o.configPath, "config", os.Getenv("A9D_CONFIG"), "Config file (.yaml, .json, .toml, .hcl); defaults A9D_CONFIG")
	pf.StringVar(&o.modelPath, "model-path", runtime.DefaultPath, "Bundle directory or base URL")
	pf.StringVar(&o.backendOrder, "backend-order", strings.Join(runtime.DefaultBackendOrder(), ","), "Comma-separated backend preference list")
	pf.StringVar(&o.auxPath, "aux", "", "Aux WebAssembly module path or URL (empty disables)")
	pf.BoolVar(&o.strict, "strict", false, "Return evaluation failures as errors instead of null output")
	pf.StringVar(&o.logLevel, "log-level", envOr("A9D_LOG_LEVEL", config.DefaultLogLevel), "Log level: debug|info|warn|error (defaults A9D_LOG_LEVEL or info)")
	pf.StringVar(&o.logFormat, "log-format", config.DefaultLogFormat, "Log format: json|console")

	root.AddCommand(newServeCmd(o), newEvalCmd(o), newBackendsCmd())
	return root
}

// resolveConfig loads the config file (if any), applies explicitly set flags
// on top, and fills defaults.
func resolveConfig(cmd *cobra.Command, o *options) (config.Config, error) {
	var cfg config.Config
	if o.configPath != "" {
		c, err := config.Load(o.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
		cfg = c
	}
	changed := func(name string) bool {
		f := cmd.Flags().Lookup(name)
		return f != nil && f.Changed
	}
	// flags override file values; untouched flags only fill gaps
	setStr := func(name string, dst *string, v string) {
		if changed(name) || *dst == "" {
			*dst = v
		}
	}
	setStr("addr", &cfg.Addr, o.addr)
	setStr("model-path", &cfg.ModelPath, o.modelPath)
	setStr("bundles-dir", &cfg.BundlesDir, o.bundlesDir)
	setStr("aux", &cfg.AuxModulePath, o.auxPath)
	setStr("log-level", &cfg.LogLevel, o.logLevel)
	setStr("log-format", &cfg.LogFormat, o.logFormat)
	if changed("backend-order") || len(cfg.BackendOrder) == 0 {
		cfg.BackendOrder = splitCSV(o.backendOrder)
	}
	if changed("strict") {
		cfg.Strict = o.strict
	}
	if changed("swagger") {
		cfg.Swagger = o.swagger
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// newLogger builds the process logger from level and format.
func newLogger(w io.Writer, level, format string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	if format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Str("service", "a9d").Logger()
}

// newManager wires a manager from resolved config.
func newManager(cfg config.Config, log zerolog.Logger) *manager.Manager {
	return manager.NewWithConfig(manager.ManagerConfig{
		ModelPath:       cfg.ModelPath,
		BackendOrder:    cfg.BackendOrder,
		Strict:          cfg.Strict,
		AuxModulePath:   cfg.AuxModulePath,
		AuxImportModule: cfg.AuxImportModule,
		Logger:          &log,
		Publisher:       manager.NewRingPublisher(256),
		MaxQueueDepth:   cfg.MaxQueueDepth,
		MaxWait:         time.Duration(cfg.MaxWaitMS) * time.Millisecond,
		DrainTimeout:    time.Duration(cfg.DrainTimeoutMS) * time.Millisecond,
	})
}

// splitCSV splits a comma-separated list, trimming blanks.
func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseFeature parses a comma-separated list of floats.
func parseFeature(s string) ([]float32, error) {
	parts := splitCSV(s)
	out := make([]float32, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(p, 32)
		if err != nil {
			return nil, fmt.Errorf("feature value %q: %w", p, err)
		}
		out = append(out, float32(v))
	}
	return out, nil
}
