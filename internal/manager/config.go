package manager

import (
	"time"

	"github.com/rs/zerolog"

	"a9d/internal/auxmod"
	"a9d/internal/fetch"
	"a9d/internal/runtime"
)

// Defaults applied when corresponding ManagerConfig fields are unset.
const (
	defaultMaxQueueDepth = 32
	defaultMaxWait       = 30 * time.Second
	defaultDrainTimeout  = 5 * time.Second
)

// ManagerConfig encapsulates all tunables for Manager construction.
type ManagerConfig struct {
	ModelPath    string
	BackendOrder []string
	Registry     *runtime.Registry
	// Strict makes run failures return errors instead of a nil output.
	Strict bool

	// AuxModulePath is optional; empty disables the aux module.
	AuxModulePath   string
	AuxImportModule string
	Callbacks       auxmod.HostCallbacks

	Fetcher   fetch.Fetcher
	Logger    *zerolog.Logger
	Publisher EventPublisher

	MaxQueueDepth int
	MaxWait       time.Duration
	DrainTimeout  time.Duration
}

// NewWithConfig constructs a Manager from ManagerConfig.
func NewWithConfig(cfg ManagerConfig) *Manager {
	m := &Manager{
		state:     StateLoading,
		modelPath: cfg.ModelPath,
		strict:    cfg.Strict,
		auxPath:   cfg.AuxModulePath,
		registry:  cfg.Registry,
		fetcher:   cfg.Fetcher,
		publisher: cfg.Publisher,
		startTime: time.Now(),
	}
	if m.modelPath == "" {
		m.modelPath = runtime.DefaultPath
	}
	m.backendOrder = append([]string(nil), cfg.BackendOrder...)
	if len(m.backendOrder) == 0 {
		m.backendOrder = runtime.DefaultBackendOrder()
	}
	if m.registry == nil {
		m.registry = runtime.DefaultRegistry()
	}
	if m.fetcher == nil {
		m.fetcher = fetch.New(0)
	}
	if m.publisher == nil {
		m.publisher = noopPublisher{}
	}
	if cfg.Logger != nil {
		m.log = *cfg.Logger
	} else {
		m.log = zerolog.Nop()
	}
	// Apply defaults if unset
	if cfg.MaxQueueDepth <= 0 {
		m.maxQueueDepth = defaultMaxQueueDepth
	} else {
		m.maxQueueDepth = cfg.MaxQueueDepth
	}
	if cfg.MaxWait <= 0 {
		m.maxWait = defaultMaxWait
	} else {
		m.maxWait = cfg.MaxWait
	}
	if cfg.DrainTimeout <= 0 {
		m.drainTimeout = defaultDrainTimeout
	} else {
		m.drainTimeout = cfg.DrainTimeout
	}
	cb := cfg.Callbacks
	if cb == nil {
		cb = auxmod.LoggerCallbacks{Logger: m.log}
	}
	m.auxLoader = &auxmod.Loader{Fetcher: m.fetcher, Callbacks: cb, ImportModule: cfg.AuxImportModule}
	return m
}
