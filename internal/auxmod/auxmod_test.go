package auxmod

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero/api"

	"a9d/internal/auxmod/auxmodtest"
	"a9d/internal/fetch"
)

type recordingCallbacks struct {
	mu   sync.Mutex
	args []int32
}

func (r *recordingCallbacks) Log(arg int32) {
	r.mu.Lock()
	r.args = append(r.args, arg)
	r.mu.Unlock()
}

func writeModule(t *testing.T) string {
	t.Helper()
	p, err := auxmodtest.WriteModule(t.TempDir())
	require.NoError(t, err)
	return p
}

func TestLoad_SelfTestInvokesHostCallback(t *testing.T) {
	ctx := context.Background()
	cb := &recordingCallbacks{}
	l := &Loader{Fetcher: fetch.New(0), Callbacks: cb}
	m, err := l.Load(ctx, writeModule(t))
	require.NoError(t, err)
	defer m.Close(ctx)

	require.Equal(t, []string{"alloc", "test", "think"}, m.Functions())
	require.True(t, m.Has(FuncTest))
	require.False(t, m.Has("ponder"))

	res, err := m.SelfTest(ctx)
	require.NoError(t, err)
	require.Equal(t, int32(7), api.DecodeI32(res[0]))
	require.Equal(t, []int32{42}, cb.args)
}

func TestThink_WritesHistoryIntoMemory(t *testing.T) {
	ctx := context.Background()
	m, err := (&Loader{}).Instantiate(ctx, "mem", auxmodtest.EngineWasm)
	require.NoError(t, err)
	defer m.Close(ctx)

	res, err := m.Think(ctx, []uint32{5, 9}, 1.0)
	require.NoError(t, err)
	require.Equal(t, uint32(7), api.DecodeU32(res[0]))

	res, err = m.Think(ctx, nil, 0.5)
	require.NoError(t, err)
	require.Equal(t, uint32(0), api.DecodeU32(res[0]))
}

func TestCall_MissingExport(t *testing.T) {
	ctx := context.Background()
	m, err := (&Loader{}).Instantiate(ctx, "mem", auxmodtest.EngineWasm)
	require.NoError(t, err)
	defer m.Close(ctx)

	_, err = m.Call(ctx, "ponder")
	require.True(t, errors.Is(err, ErrFunctionNotFound))
}

func TestLoad_Failures(t *testing.T) {
	ctx := context.Background()

	_, err := (&Loader{}).Load(ctx, filepath.Join(t.TempDir(), "missing.wasm"))
	var le *LoadError
	require.ErrorAs(t, err, &le)
	require.True(t, fetch.IsNotFound(err))

	_, err = (&Loader{}).Instantiate(ctx, "garbage", []byte("not wasm"))
	require.ErrorAs(t, err, &le)

	// import table mismatch: module expects imports.imported_func
	_, err = (&Loader{ImportModule: "env"}).Instantiate(ctx, "env", auxmodtest.EngineWasm)
	require.ErrorAs(t, err, &le)
}

func TestLoggerCallbacks(t *testing.T) {
	var buf bytes.Buffer
	LoggerCallbacks{Logger: zerolog.New(&buf)}.Log(3)
	require.Contains(t, buf.String(), `"arg":3`)
	require.Contains(t, buf.String(), "aux_log")
}

func spinModule(t *testing.T) *Module {
	t.Helper()
	m, err := (&Loader{}).Instantiate(context.Background(), "spin", auxmodtest.SpinWasm)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close(context.Background()) })
	return m
}

func awaitCall(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatalf("call did not return")
		return nil
	}
}

func TestCall_DeadlineInterruptsLoop(t *testing.T) {
	m := spinModule(t)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := m.Call(ctx, "spin")
		done <- err
	}()
	err := awaitCall(t, done)
	require.Error(t, err)
	require.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)

	// the runtime closes the module once a call's context ends
	require.True(t, m.Closed())
	_, err = m.Call(context.Background(), "spin")
	require.True(t, errors.Is(err, ErrModuleClosed), "got %v", err)
}

func TestClose_InterruptsRunningCall(t *testing.T) {
	m := spinModule(t)
	done := make(chan error, 1)
	go func() {
		_, err := m.Call(context.Background(), "spin")
		done <- err
	}()
	time.Sleep(50 * time.Millisecond)

	closed := make(chan error, 1)
	go func() { closed <- m.Close(context.Background()) }()
	select {
	case err := <-closed:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatalf("Close blocked on a running call")
	}
	require.Error(t, awaitCall(t, done))
	require.True(t, m.Closed())
}
