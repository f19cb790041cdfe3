package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"a9d/internal/config"
	"a9d/internal/runtime"
	"a9d/pkg/types"
)

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := buildRootCmd(&out, &errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeBundle(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	g := &runtime.Graph{
		Inputs:  []runtime.TensorSpec{{Name: "x", Shape: []int{2}}},
		Outputs: []runtime.TensorSpec{{Name: "y", Shape: []int{1}}, {Name: "z", Shape: []int{1}}},
		Layers: []runtime.Layer{
			{Op: runtime.OpDense, Input: "x", Output: "y", In: 2, Out: 1},
			{Op: runtime.OpDense, Input: "x", Output: "z", In: 2, Out: 1, WeightOffset: 2},
		},
	}
	if err := runtime.WriteBundle(dir, "", g, []float32{1, 2, 3, 4}); err != nil {
		t.Fatalf("write bundle: %v", err)
	}
	return dir
}

func TestEvalCommand(t *testing.T) {
	out, err := runCmd(t, "eval", "--model-path", writeBundle(t), "--feature", "1,1", "--all", "--strict", "--log-level", "error")
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	var resp types.EvaluateResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("json: %v (%s)", err, out)
	}
	if len(resp.Output) != 1 || resp.Output[0] != 3 || len(resp.Outputs) != 2 || resp.Outputs[1][0] != 7 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.Backend != runtime.CPUName {
		t.Fatalf("expected cpu backend, got %q", resp.Backend)
	}
}

func TestEvalCommand_StrictShapeError(t *testing.T) {
	_, err := runCmd(t, "eval", "--model-path", writeBundle(t), "--feature", "1,1,1", "--strict", "--log-level", "error")
	if err == nil || !runtime.IsShapeError(err) {
		t.Fatalf("expected shape error, got %v", err)
	}
}

func TestEvalCommand_LenientMissingBundle(t *testing.T) {
	out, err := runCmd(t, "eval", "--model-path", filepath.Join(t.TempDir(), "missing"), "--feature", "1", "--log-level", "error")
	if err != nil {
		t.Fatalf("lenient eval should not fail: %v", err)
	}
	if !strings.Contains(out, `"output": null`) {
		t.Fatalf("expected null output, got %s", out)
	}
}

func TestEvalCommand_FeatureRequired(t *testing.T) {
	if _, err := runCmd(t, "eval", "--model-path", writeBundle(t)); err == nil {
		t.Fatalf("expected error without --feature")
	}
}

func TestBackendsCommand(t *testing.T) {
	out, err := runCmd(t, "backends")
	if err != nil {
		t.Fatalf("backends: %v", err)
	}
	if !strings.Contains(out, "cpu") || !strings.Contains(out, "fallback") || !strings.Contains(out, "NAME") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestResolveConfig_FlagsOverrideFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "a9d.yaml")
	if err := os.WriteFile(p, []byte("model_path: /from/file\nstrict: true\nbackend_order: [fallback]\nmax_queue_depth: 3\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	o := &options{}
	root := buildRootCmdWith(o, &bytes.Buffer{}, &bytes.Buffer{})
	var got config.Config
	root.AddCommand(&cobra.Command{
		Use: "inspect",
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			got, err = resolveConfig(cmd, o)
			return err
		},
	})
	root.SetArgs([]string{"inspect", "--config", p, "--backend-order", "cpu,fallback"})
	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got.ModelPath != "/from/file" || !got.Strict || got.MaxQueueDepth != 3 {
		t.Fatalf("file values lost: %+v", got)
	}
	if len(got.BackendOrder) != 2 || got.BackendOrder[0] != "cpu" {
		t.Fatalf("flag did not override file: %v", got.BackendOrder)
	}
	if got.Addr != config.DefaultAddr || got.LogFormat != config.DefaultLogFormat {
		t.Fatalf("defaults not applied: %+v", got)
	}
}

func TestResolveConfig_BadFile(t *testing.T) {
	if _, err := runCmd(t, "eval", "--config", filepath.Join(t.TempDir(), "nope.yaml"), "--feature", "1"); err == nil {
		t.Fatalf("expected config load error")
	}
}
