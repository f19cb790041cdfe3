package types

// EvaluateRequest is the payload for POST /evaluate.
type EvaluateRequest struct {
	// Input feature, copied into the first input slot. Its length must match
	// the slot's shape.
	// example: [0,0,1,0]
	Feature []float32 `json:"feature" example:"0,0,1,0"`
	// If true, every output slot is returned in outputs.
	// example: true
	All bool `json:"all,omitempty" example:"true"`
}

// EvaluateResponse is returned by POST /evaluate.
type EvaluateResponse struct {
	// Snapshot of the first output slot. Null when the evaluation was skipped
	// in lenient mode.
	Output []float32 `json:"output"`
	// Snapshots of every output slot, in declaration order (only when all=true).
	Outputs [][]float32 `json:"outputs,omitempty"`
	// Handle that served the request.
	// example: 1b4e28ba-2fa1-11d2-883f-0016d3cca427
	HandleID string `json:"handle_id,omitempty" example:"1b4e28ba-2fa1-11d2-883f-0016d3cca427"`
	// Backend the handle runs on.
	// example: cpu
	Backend string `json:"backend,omitempty" example:"cpu"`
}

// ReloadRequest is the payload for POST /reload. Path wins over Bundle; both
// empty reloads the configured path.
type ReloadRequest struct {
	// Bundle path or base URL.
	// example: ./output
	Path string `json:"path,omitempty" example:"./output"`
	// Bundle id from GET /bundles.
	// example: pyaq-9x9
	Bundle string `json:"bundle,omitempty" example:"pyaq-9x9"`
	// If true, return 202 with an operation id instead of waiting.
	// example: false
	Async bool `json:"async,omitempty" example:"false"`
}

// ReloadResponse is returned by POST /reload.
type ReloadResponse struct {
	// example: reloaded
	Status string `json:"status" example:"reloaded"`
	// Operation id for async reloads.
	OpID string `json:"op_id,omitempty"`
	// Handle now serving evaluations (sync reloads).
	HandleID string `json:"handle_id,omitempty"`
}

// BundlesResponse wraps the list returned by GET /bundles.
type BundlesResponse struct {
	Bundles []Bundle `json:"bundles"`
}

// BackendsResponse wraps the list of registered backends.
type BackendsResponse struct {
	Backends []Backend `json:"backends"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// SlotInfo describes a named input or output slot.
type SlotInfo struct {
	// example: policy
	Name string `json:"name" example:"policy"`
	// example: [82]
	Shape []int `json:"shape" example:"82"`
}

// NetworkStatus summarizes the loaded network for /status.
type NetworkStatus struct {
	// example: 1b4e28ba-2fa1-11d2-883f-0016d3cca427
	HandleID string `json:"handle_id" example:"1b4e28ba-2fa1-11d2-883f-0016d3cca427"`
	// example: ./output
	Path string `json:"path" example:"./output"`
	// example: cpu
	Backend string `json:"backend" example:"cpu"`
	// example: ready
	State string `json:"state" example:"ready"`
	// Load time (unix seconds).
	LoadedAt int64 `json:"loaded_at_unix"`
	// Last time this handle served a request (unix seconds).
	LastUsed int64 `json:"last_used_unix"`
	// Completed runs on this handle.
	Runs uint64 `json:"runs"`
	// Current queue length.
	QueueLen int `json:"queue_len"`
	// In-flight runs (0 or 1).
	Inflight int `json:"inflight"`
	// Maximum queued requests allowed before backpressure triggers.
	// example: 32
	MaxQueueDepth int        `json:"max_queue_depth" example:"32"`
	Inputs        []SlotInfo `json:"inputs"`
	Outputs       []SlotInfo `json:"outputs"`
}

// AuxStatus summarizes the aux module for /status.
type AuxStatus struct {
	// Module path or URL; empty when disabled.
	Path string `json:"path,omitempty"`
	// example: true
	Loaded bool `json:"loaded" example:"true"`
	// Exported function names.
	Functions []string `json:"functions,omitempty"`
	// Load error, if any.
	Error string `json:"error,omitempty"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Overall state (loading, ready, degraded).
	// example: ready
	State string `json:"state" example:"ready"`
	// Whether evaluations can be served.
	Ready bool `json:"ready"`
	// Failure mode of Evaluate.
	Strict bool `json:"strict"`
	// Configured backend preference order.
	// example: ["webgpu","cpu","fallback"]
	BackendOrder []string `json:"backend_order" example:"webgpu,cpu,fallback"`
	// Loaded network, absent while loading or after a failed load.
	Network *NetworkStatus `json:"network,omitempty"`
	// Network load error, if any.
	NetworkError string    `json:"network_error,omitempty"`
	Aux          AuxStatus `json:"aux"`
	// Last error observed by the manager (if any).
	LastError string `json:"last_error,omitempty"`
	// Uptime of the server in seconds.
	UptimeSeconds int64 `json:"uptime_seconds"`
	// Server time in unix seconds.
	ServerTimeUnix int64 `json:"server_time_unix"`
	// Total number of network and aux module loads.
	LoadsTotal uint64 `json:"loads_total"`
	// Total number of evaluations that reached the network.
	EvaluationsTotal uint64 `json:"evaluations_total"`
}

// AuxThinkRequest is the payload for POST /aux/think.
type AuxThinkRequest struct {
	// Move history passed to the module.
	// example: [40,30]
	History []uint32 `json:"history" example:"40,30"`
	// Time budget in seconds.
	// example: 1.5
	Budget float64 `json:"budget" example:"1.5"`
}

// AuxCallResponse carries raw results of an aux module call.
type AuxCallResponse struct {
	// example: think
	Function string `json:"function" example:"think"`
	// Raw result words; meaning is owned by the module.
	Results []uint64 `json:"results"`
}

// AuxFunctionsResponse is returned by GET /aux.
type AuxFunctionsResponse struct {
	Functions []string `json:"functions"`
}
