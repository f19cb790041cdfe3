package e2e

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"a9d/internal/httpapi"
	"a9d/internal/manager"
	"a9d/internal/runtime"
)

// writeBundle writes a one-layer bundle computing y = w0*x0 + w1*x1 under
// root/id and returns its path.
func writeBundle(t *testing.T, root, id string, w0, w1 float32) string {
	t.Helper()
	dir := filepath.Join(root, id)
	g := &runtime.Graph{
		Inputs:  []runtime.TensorSpec{{Name: "x", Shape: []int{2}}},
		Outputs: []runtime.TensorSpec{{Name: "y", Shape: []int{1}}},
		Layers:  []runtime.Layer{{Op: runtime.OpDense, Input: "x", Output: "y", In: 2, Out: 1, Activation: runtime.ActLinear}},
	}
	if err := runtime.WriteBundle(dir, "", g, []float32{w0, w1}); err != nil {
		t.Fatalf("write bundle %s: %v", id, err)
	}
	return dir
}

// newServer starts cfg's manager behind the HTTP mux and waits for the
// readiness barrier.
func newServer(t *testing.T, cfg manager.ManagerConfig) (*httptest.Server, *manager.Manager) {
	t.Helper()
	mgr := manager.NewWithConfig(cfg)
	srv := httptest.NewServer(httpapi.NewMux(mgr))
	t.Cleanup(func() {
		srv.Close()
		_ = mgr.Close(context.Background())
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	mgr.Start(ctx)
	return srv, mgr
}

// slowBackend wraps the cpu backend and delays every run.
type slowBackend struct {
	delay time.Duration
}

func (b slowBackend) Name() string     { return "slow" }
func (b slowBackend) Available() error { return nil }
func (b slowBackend) Compile(g *runtime.Graph, w []float32) (runtime.Program, error) {
	p, err := runtime.NewCPUBackend(1).Compile(g, w)
	if err != nil {
		return nil, err
	}
	return slowProgram{Program: p, delay: b.delay}, nil
}

type slowProgram struct {
	runtime.Program
	delay time.Duration
}

func (p slowProgram) Run(ctx context.Context) error {
	select {
	case <-time.After(p.delay):
	case <-ctx.Done():
		return ctx.Err()
	}
	return p.Program.Run(ctx)
}

func httpGet(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

func httpPostJSON(t *testing.T, url string, payload string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewBufferString(payload))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}
