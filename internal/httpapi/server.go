package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"a9d/internal/auxmod"
	"a9d/internal/manager"
	"a9d/internal/registry"
	"a9d/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Ready() bool
	Status() types.StatusResponse
	Backends() []types.Backend
	EvaluateAll(ctx context.Context, feature []float32) (*manager.Result, error)
	Reload(ctx context.Context, path string) error
	ReloadAsync(path string) string
	AuxFunctions() ([]string, error)
	AuxSelfTest(ctx context.Context) ([]uint64, error)
	AuxThink(ctx context.Context, history []uint32, budget float64) ([]uint64, error)
}

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5))
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	if corsEnabled {
		methods := corsAllowedMethods
		if len(methods) == 0 {
			methods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
		}
		headers := corsAllowedHeaders
		if len(headers) == 0 {
			headers = []string{"Content-Type", "X-Request-Id", "X-Log-Level"}
		}
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: methods,
			AllowedHeaders: headers,
			MaxAge:         300,
		}))
	}

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Status())
	})

	r.Get("/backends", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, types.BackendsResponse{Backends: svc.Backends()})
	})

	r.Get("/bundles", func(w http.ResponseWriter, r *http.Request) {
		resp := types.BundlesResponse{Bundles: []types.Bundle{}}
		if bundlesDir != "" {
			bundles, err := registry.LoadDir(bundlesDir)
			if err != nil {
				writeJSONError(w, http.StatusInternalServerError, err.Error())
				return
			}
			resp.Bundles = append(resp.Bundles, bundles...)
		}
		writeJSON(w, http.StatusOK, resp)
	})

	r.Post("/evaluate", func(w http.ResponseWriter, r *http.Request) {
		var req types.EvaluateRequest
		if !decodeJSON(w, r, &req, false) {
			return
		}
		if len(req.Feature) == 0 {
			writeJSONError(w, http.StatusBadRequest, "feature is required")
			return
		}
		start := time.Now()
		lvl := requestLogLevel(r)
		logStart(r, lvl, "evaluate start")
		// Join server base context with request context so shutdown cancels work too.
		ctx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		if evaluateTimeout > 0 {
			var cancelT context.CancelFunc
			ctx, cancelT = context.WithTimeout(ctx, evaluateTimeout)
			defer cancelT()
		}
		res, err := svc.EvaluateAll(ctx, req.Feature)
		if err != nil {
			// Client went away or server is shutting down.
			if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
				return
			}
			status := statusForError(err)
			if errors.Is(err, context.DeadlineExceeded) {
				status = http.StatusGatewayTimeout
			}
			if status == http.StatusTooManyRequests {
				IncrementBackpressure("evaluate")
			}
			writeJSONError(w, status, err.Error())
			logEnd(r, lvl, "evaluate end", status, start, err)
			return
		}
		resp := types.EvaluateResponse{}
		if res != nil {
			resp.Output = res.Outputs[0]
			resp.HandleID = res.HandleID
			resp.Backend = res.Backend
			if req.All {
				resp.Outputs = res.Outputs
			}
		}
		writeJSON(w, http.StatusOK, resp)
		logEnd(r, lvl, "evaluate end", http.StatusOK, start, nil)
	})

	r.Post("/reload", func(w http.ResponseWriter, r *http.Request) {
		var req types.ReloadRequest
		if !decodeJSON(w, r, &req, true) {
			return
		}
		path := req.Path
		if path == "" && req.Bundle != "" {
			if bundlesDir == "" {
				writeJSONError(w, http.StatusNotFound, "bundles dir not configured")
				return
			}
			b, err := registry.Find(bundlesDir, req.Bundle)
			if err != nil {
				writeJSONError(w, statusForError(err), err.Error())
				return
			}
			path = b.Path
		}
		if req.Async {
			op := svc.ReloadAsync(path)
			writeJSON(w, http.StatusAccepted, types.ReloadResponse{Status: "accepted", OpID: op})
			return
		}
		start := time.Now()
		lvl := requestLogLevel(r)
		ctx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		if err := svc.Reload(ctx, path); err != nil {
			status := statusForError(err)
			writeJSONError(w, status, err.Error())
			logEnd(r, lvl, "reload end", status, start, err)
			return
		}
		var handleID string
		if st := svc.Status(); st.Network != nil {
			handleID = st.Network.HandleID
		}
		writeJSON(w, http.StatusOK, types.ReloadResponse{Status: "reloaded", HandleID: handleID})
		logEnd(r, lvl, "reload end", http.StatusOK, start, nil)
	})

	r.Route("/aux", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			fns, err := svc.AuxFunctions()
			if err != nil {
				writeJSONError(w, statusForError(err), err.Error())
				return
			}
			writeJSON(w, http.StatusOK, types.AuxFunctionsResponse{Functions: fns})
		})
		r.Post("/test", func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := joinContexts(serverBaseCtx, r.Context())
			defer cancel()
			res, err := svc.AuxSelfTest(ctx)
			if err != nil {
				writeJSONError(w, statusForError(err), err.Error())
				return
			}
			writeJSON(w, http.StatusOK, types.AuxCallResponse{Function: auxmod.FuncTest, Results: res})
		})
		r.Post("/think", func(w http.ResponseWriter, r *http.Request) {
			var req types.AuxThinkRequest
			if !decodeJSON(w, r, &req, false) {
				return
			}
			ctx, cancel := joinContexts(serverBaseCtx, r.Context())
			defer cancel()
			res, err := svc.AuxThink(ctx, req.History, req.Budget)
			if err != nil {
				writeJSONError(w, statusForError(err), err.Error())
				return
			}
			writeJSON(w, http.StatusOK, types.AuxCallResponse{Function: auxmod.FuncThink, Results: res})
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("loading"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	if swaggerEnabled {
		MountSwagger(r)
	}

	return r
}

// decodeJSON checks the content type, limits the body, and decodes it into v.
// With allowEmpty an empty body leaves v untouched. It writes the error
// response and returns false on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any, allowEmpty bool) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" && allowEmpty && r.ContentLength <= 0 {
		return true
	}
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	// Limit body size (configurable, default 1MiB)
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return true
		}
		// If exceeded size, MaxBytesReader may cause an error; still return 400 to avoid size leak details
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}
