package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"a9d/internal/common/fsutil"
	"a9d/internal/runtime"
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and are replaced by ApplyDefaults.
type Config struct {
	Addr            string   `json:"addr" yaml:"addr" toml:"addr" hcl:"addr,optional"`
	ModelPath       string   `json:"model_path" yaml:"model_path" toml:"model_path" hcl:"model_path,optional"`
	BundlesDir      string   `json:"bundles_dir" yaml:"bundles_dir" toml:"bundles_dir" hcl:"bundles_dir,optional"`
	BackendOrder    []string `json:"backend_order" yaml:"backend_order" toml:"backend_order" hcl:"backend_order,optional"`
	Strict          bool     `json:"strict" yaml:"strict" toml:"strict" hcl:"strict,optional"`
	AuxModulePath   string   `json:"aux_module_path" yaml:"aux_module_path" toml:"aux_module_path" hcl:"aux_module_path,optional"`
	AuxImportModule string   `json:"aux_import_module" yaml:"aux_import_module" toml:"aux_import_module" hcl:"aux_import_module,optional"`
	MaxQueueDepth   int      `json:"max_queue_depth" yaml:"max_queue_depth" toml:"max_queue_depth" hcl:"max_queue_depth,optional"`
	MaxWaitMS       int      `json:"max_wait_ms" yaml:"max_wait_ms" toml:"max_wait_ms" hcl:"max_wait_ms,optional"`
	DrainTimeoutMS  int      `json:"drain_timeout_ms" yaml:"drain_timeout_ms" toml:"drain_timeout_ms" hcl:"drain_timeout_ms,optional"`
	MaxBodyBytes    int64    `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes" hcl:"max_body_bytes,optional"`
	LogLevel        string   `json:"log_level" yaml:"log_level" toml:"log_level" hcl:"log_level,optional"`
	LogFormat       string   `json:"log_format" yaml:"log_format" toml:"log_format" hcl:"log_format,optional"`
	CORSEnabled     bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled" hcl:"cors_enabled,optional"`
	CORSOrigins     []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins" hcl:"cors_origins,optional"`
	Swagger         bool     `json:"swagger" yaml:"swagger" toml:"swagger" hcl:"swagger,optional"`
}

// Defaults used by ApplyDefaults.
const (
	DefaultAddr           = ":8080"
	DefaultMaxQueueDepth  = 32
	DefaultMaxWaitMS      = 30000
	DefaultDrainTimeoutMS = 5000
	DefaultMaxBodyBytes   = 1 << 20
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "json"
)

// Defaults returns a Config with every defaultable field set.
func Defaults() Config {
	var c Config
	c.ApplyDefaults()
	return c
}

// ApplyDefaults fills unset fields in place.
func (c *Config) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.ModelPath == "" {
		c.ModelPath = runtime.DefaultPath
	}
	if len(c.BackendOrder) == 0 {
		c.BackendOrder = runtime.DefaultBackendOrder()
	}
	if c.MaxQueueDepth <= 0 {
		c.MaxQueueDepth = DefaultMaxQueueDepth
	}
	if c.MaxWaitMS <= 0 {
		c.MaxWaitMS = DefaultMaxWaitMS
	}
	if c.DrainTimeoutMS <= 0 {
		c.DrainTimeoutMS = DefaultDrainTimeoutMS
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = DefaultLogFormat
	}
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml, .hcl
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	path, err := fsutil.ExpandHome(path)
	if err != nil {
		return cfg, err
	}
	if !fsutil.PathExists(path) {
		return cfg, fmt.Errorf("config file not found: %s", path)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".hcl":
		if err := decodeHCL(path, b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

func decodeHCL(path string, b []byte, cfg *Config) error {
	f, diags := hclparse.NewParser().ParseHCL(b, path)
	if diags.HasErrors() {
		return fmt.Errorf("failed to parse HCL file %s: %w", path, diags)
	}
	if diags := gohcl.DecodeBody(f.Body, nil, cfg); diags.HasErrors() {
		return fmt.Errorf("failed to decode HCL file %s: %w", path, diags)
	}
	return nil
}
