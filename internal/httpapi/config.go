package httpapi

import "time"

// maxBodyBytes controls the maximum allowed request body size for JSON endpoints.
var maxBodyBytes int64 = 1 << 20

// SetMaxBodyBytes allows configuring the maximum request body size.
func SetMaxBodyBytes(n int64) {
	if n <= 0 {
		maxBodyBytes = 1 << 20
		return
	}
	maxBodyBytes = n
}

// evaluateTimeout bounds a single /evaluate request, queue wait included.
// Zero means no additional timeout beyond server/connection timeouts.
var evaluateTimeout time.Duration

// SetEvaluateTimeout sets the evaluate timeout (0 disables).
func SetEvaluateTimeout(d time.Duration) {
	if d < 0 {
		d = 0
	}
	evaluateTimeout = d
}

// bundlesDir is scanned by GET /bundles and resolves bundle ids for /reload.
var bundlesDir string

// SetBundlesDir sets the bundles directory. Empty disables bundle lookup.
func SetBundlesDir(dir string) { bundlesDir = dir }

// swaggerEnabled mounts /swagger/* when true.
var swaggerEnabled bool

// SetSwaggerEnabled toggles the API docs route.
func SetSwaggerEnabled(on bool) { swaggerEnabled = on }

// CORS configuration (opt-in). If disabled, no CORS middleware is added.
var (
	corsEnabled        bool
	corsAllowedOrigins []string
	corsAllowedMethods []string
	corsAllowedHeaders []string
)

// SetCORSOptions configures CORS behavior for the HTTP server.
func SetCORSOptions(enabled bool, origins, methods, headers []string) {
	corsEnabled = enabled
	corsAllowedOrigins = append([]string(nil), origins...)
	corsAllowedMethods = append([]string(nil), methods...)
	corsAllowedHeaders = append([]string(nil), headers...)
}
