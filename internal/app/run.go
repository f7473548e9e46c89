package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/k00jax/omi/internal/config"
	"github.com/k00jax/omi/internal/health"
	"github.com/k00jax/omi/internal/observe"
	"github.com/k00jax/omi/internal/resilience"
	"github.com/k00jax/omi/internal/transcribe"
)

const shutdownTimeout = 10 * time.Second

// Run starts every configured subsystem and blocks until ctx is cancelled
// or one of them fails. A clean cancellation returns nil.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if a.source != nil {
		g.Go(func() error { return a.source.Run(ctx) })
	}
	g.Go(func() error { return a.streamer.Run(ctx) })
	if a.backends.Archiver != nil {
		g.Go(func() error { return a.backends.Archiver.Run(ctx) })
	}
	g.Go(func() error {
		a.buildSemanticIndex(ctx)
		return nil
	})
	g.Go(func() error {
		a.observeQueueDepth(ctx, a.metrics)
		return nil
	})

	a.runOpsServer(ctx, g)
	a.runMCP(ctx, g)

	slog.Info("app running",
		"source", string(a.cfg.Device.Source),
		"stt", a.cfg.Providers.STT.Name,
		"mcp", a.cfg.MCP.Enabled)

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// runOpsServer serves /healthz, /readyz, and /metrics on the observe listen
// address.
func (a *App) runOpsServer(ctx context.Context, g *errgroup.Group) {
	mux := http.NewServeMux()
	health.New(a.healthCheckers()...).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              a.cfg.Observe.ListenAddr,
		Handler:           observe.Middleware(a.metrics)(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
	serveHTTP(ctx, g, srv, "ops")
}

// runMCP exposes the MCP memory server over the configured transport.
func (a *App) runMCP(ctx context.Context, g *errgroup.Group) {
	if a.mcp == nil {
		return
	}
	switch a.cfg.MCP.Transport {
	case config.TransportStdio:
		g.Go(func() error {
			if err := a.mcp.ServeStdio(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("mcp stdio server: %w", err)
			}
			return nil
		})
	default:
		srv := &http.Server{
			Addr:              a.cfg.MCP.ListenAddr,
			Handler:           a.mcp.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		serveHTTP(ctx, g, srv, "mcp")
	}
}

// serveHTTP runs srv under the group and shuts it down when ctx ends.
func serveHTTP(ctx context.Context, g *errgroup.Group, srv *http.Server, name string) {
	g.Go(func() error {
		slog.Info("http server listening", "server", name, "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s server: %w", name, err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
}

// breakerStates is implemented by the resilience failover wrappers.
type breakerStates interface {
	BreakerStates() map[string]resilience.State
}

// pinger is implemented by archive stores with a live connection to check.
type pinger interface {
	Ping(ctx context.Context) error
}

func (a *App) healthCheckers() []health.Checker {
	checkers := []health.Checker{
		health.CheckFunc("stt", func(context.Context) error {
			if st := a.streamer.State(); st != transcribe.StateStreaming {
				return fmt.Errorf("stream %s", st)
			}
			return nil
		}),
	}
	if a.source != nil {
		checkers = append(checkers, health.CheckFunc("device", func(context.Context) error {
			if st, _ := a.deviceState.Load().(string); st == "disconnected" {
				return errors.New("device disconnected")
			}
			return nil
		}))
	}
	if bs, ok := a.backends.Memory.(breakerStates); ok {
		// Ready as long as any memory backend can still take writes.
		checkers = append(checkers, health.CheckFunc("memory", func(context.Context) error {
			states := bs.BreakerStates()
			for _, st := range states {
				if st != resilience.StateOpen {
					return nil
				}
			}
			return fmt.Errorf("all %d memory backends open", len(states))
		}))
	}
	if a.backends.Archiver != nil {
		checkers = append(checkers, health.CheckFunc("archive", func(ctx context.Context) error {
			if p, ok := a.backends.Archive.(pinger); ok {
				if err := p.Ping(ctx); err != nil {
					return fmt.Errorf("archive store: %w", err)
				}
			}
			return a.backends.Archiver.Check(ctx)
		}))
	}
	return checkers
}
