package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"a9d/internal/config"
	"a9d/internal/httpapi"
	"a9d/internal/manager"
	"a9d/internal/runtime"
	"a9d/pkg/types"
)

func newServeCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Start loads in the background and serve the HTTP API",
		Example: "  a9d serve --model-path ./output --aux ./engine.wasm",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, o)
			if err != nil {
				return err
			}
			return serve(cmd, cfg)
		},
	}
	cmd.Flags().StringVar(&o.addr, "addr", envOr("A9D_ADDR", config.DefaultAddr), "HTTP listen address (defaults A9D_ADDR or :8080)")
	cmd.Flags().StringVar(&o.bundlesDir, "bundles-dir", "", "Directory listed by GET /bundles")
	cmd.Flags().BoolVar(&o.swagger, "swagger", false, "Serve API docs at /swagger/")
	return cmd
}

func serve(cmd *cobra.Command, cfg config.Config) error {
	log := newLogger(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mgr := newManager(cfg, log)
	// Loads run behind the readiness barrier; /readyz reports 503 until then.
	go mgr.Start(ctx)

	httpapi.SetLogger(log)
	httpapi.SetBaseContext(ctx)
	httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)
	httpapi.SetBundlesDir(cfg.BundlesDir)
	httpapi.SetSwaggerEnabled(cfg.Swagger)
	httpapi.SetCORSOptions(cfg.CORSEnabled, cfg.CORSOrigins, nil, nil)

	srv := &http.Server{Addr: cfg.Addr, Handler: httpapi.NewMux(mgr), ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Str("model_path", cfg.ModelPath).Strs("backend_order", cfg.BackendOrder).Msg("a9d listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown error")
	}
	return mgr.Close(shutdownCtx)
}

func newEvalCmd(o *options) *cobra.Command {
	var feature string
	var all bool
	cmd := &cobra.Command{
		Use:     "eval",
		Short:   "Load the bundle once and evaluate a single feature",
		Example: "  a9d eval --model-path ./output --feature 0,1,0,0 --all",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, o)
			if err != nil {
				return err
			}
			feat, err := parseFeature(feature)
			if err != nil {
				return err
			}
			if len(feat) == 0 {
				return fmt.Errorf("--feature is required")
			}
			log := newLogger(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
			mgr := newManager(cfg, log)
			defer mgr.Close(context.Background())
			mgr.Start(cmd.Context())
			res, err := mgr.EvaluateAll(cmd.Context(), feat)
			if err != nil {
				return err
			}
			resp := types.EvaluateResponse{}
			if res != nil {
				resp.Output = res.Outputs[0]
				resp.HandleID = res.HandleID
				resp.Backend = res.Backend
				if all {
					resp.Outputs = res.Outputs
				}
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		},
	}
	cmd.Flags().StringVar(&feature, "feature", "", "Comma-separated feature values")
	cmd.Flags().BoolVar(&all, "all", false, "Print every output slot")
	return cmd
}

func newBackendsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "List built-in backends and whether they can run here",
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tAVAILABLE\tINFO")
			for _, b := range manager.DescribeBackends(runtime.DefaultRegistry()) {
				info := b.Info
				if !b.Available {
					info = b.Reason
				}
				fmt.Fprintf(tw, "%s\t%t\t%s\n", b.Name, b.Available, info)
			}
			return tw.Flush()
		},
	}
}
