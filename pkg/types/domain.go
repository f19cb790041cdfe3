package types

// Bundle represents a network bundle directory found under the bundles dir.
type Bundle struct {
	// Stable identifier for the bundle (directory name).
	// example: pyaq-9x9
	ID string `json:"id" example:"pyaq-9x9"`
	// Absolute path to the bundle directory.
	// example: /srv/a9d/bundles/pyaq-9x9
	Path string `json:"path" example:"/srv/a9d/bundles/pyaq-9x9"`
	// Backends with a dedicated graph descriptor (graph_<backend>.json).
	// A bundle with only graph.json lists no backends and serves any of them.
	// example: ["cpu"]
	Backends []string `json:"backends,omitempty" example:"[\"cpu\"]"`
}

// Backend describes a registered execution backend.
type Backend struct {
	// Backend identifier as used in backend_order.
	// example: cpu
	Name string `json:"name" example:"cpu"`
	// Whether the backend can run on this host.
	// example: true
	Available bool `json:"available" example:"true"`
	// Reason the backend is unavailable, if any.
	Reason string `json:"reason,omitempty"`
	// Free-form details (kernel width, cpu brand).
	// example: avx2 dot8, 8 workers
	Info string `json:"info,omitempty" example:"avx2 dot8, 8 workers"`
}
