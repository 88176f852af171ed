package main

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/seetara/ReconBox/config"
	"github.com/seetara/ReconBox/internal/services/recon"
)

type workerHTTPOpts struct {
	httpAddr string
	onListen func(httpAddr string)

	runner *recon.Runner
	cfg    *config.Config
}

// runWorkerHTTPServer serves the admin surface: health, stats, config echo,
// and the manual reconciliation triggers.
func runWorkerHTTPServer(ctx context.Context, opts workerHTTPOpts) error {
	if opts.httpAddr == "" {
		opts.httpAddr = ":8082"
	}

	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	})

	r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if opts.runner == nil {
			_, _ = w.Write([]byte(`{"error":"runner not wired"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(opts.runner.Stats())
	})

	r.Get("/config", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if opts.cfg == nil {
			_, _ = w.Write([]byte(`{"error":"config not wired"}`))
			return
		}
		// Only operational settings; no credentials.
		out := map[string]any{
			"providerTags":          opts.cfg.ReconBox.CourierProviderTags,
			"passIntervalMinutes":   opts.cfg.ReconBox.WorkerPassIntervalMinutes,
			"batchSize":             opts.cfg.ReconBox.WorkerBatchSize,
			"itemDelayMillis":       opts.cfg.ReconBox.WorkerItemDelayMillis,
			"batchDelayMillis":      opts.cfg.ReconBox.WorkerBatchDelayMillis,
			"rateLimitPerMinute":    opts.cfg.ReconBox.WorkerRateLimitPerMinute,
			"activeWindowStartHour": opts.cfg.ReconBox.ActiveWindowStartHour,
			"activeWindowEndHour":   opts.cfg.ReconBox.ActiveWindowEndHour,
		}
		_ = json.NewEncoder(w).Encode(out)
	})

	// Fire-and-forget trigger. The pass runs on the worker loop; a pass
	// already in flight absorbs the trigger.
	r.Post("/trigger", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if opts.runner == nil {
			_, _ = w.Write([]byte(`{"error":"runner not wired"}`))
			return
		}
		opts.runner.Trigger()
		_, _ = w.Write([]byte(`{"triggered":true}`))
	})

	// Synchronous manual pass, for administrative re-runs: responds with the
	// full RunResult once the pass completes.
	r.Post("/run", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if opts.runner == nil {
			_, _ = w.Write([]byte(`{"error":"runner not wired"}`))
			return
		}
		res, started := opts.runner.RunPass(r.Context())
		if !started {
			w.WriteHeader(http.StatusConflict)
			_ = json.NewEncoder(w).Encode(map[string]any{"skipped": true, "lastRun": res})
			return
		}
		_ = json.NewEncoder(w).Encode(res)
	})

	r.Get("/runs/last", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if opts.runner == nil {
			_, _ = w.Write([]byte(`{"error":"runner not wired"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(opts.runner.LastRun(r.Context()))
	})

	srv := &http.Server{Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = lis.Close()
	}()

	return srv.Serve(lis)
}
