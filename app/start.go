package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Black-And-White-Club/photoseason/pkg/observability/attr"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

func newHTTPRouter(app *App) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if err := app.HealthCheck(req.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if app.Config.Observability.MetricsAddress == "" {
		r.Handle("/metrics", promhttp.HandlerFor(app.Observability.Registry, promhttp.HandlerOpts{}))
	}
	return r
}

// Run serves until ctx is canceled, then shuts every component down.
func (app *App) Run(ctx context.Context) error {
	logger := app.Observability.Logger

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return app.RankingModule.Run(gctx)
	})

	if app.WatermillRouter != nil {
		g.Go(func() error {
			return app.WatermillRouter.Run(gctx)
		})
	}

	servers := []*http.Server{newServer(app.Config.HTTP.Address, app.HTTPRouter)}
	if addr := app.Config.Observability.MetricsAddress; addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(app.Observability.Registry, promhttp.HandlerOpts{}))
		servers = append(servers, newServer(addr, mux))
	}
	for _, srv := range servers {
		g.Go(func() error {
			logger.InfoContext(ctx, "HTTP server listening", attr.String("address", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down application")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		var errs []error
		for _, srv := range servers {
			errs = append(errs, srv.Shutdown(shutdownCtx))
		}
		return errors.Join(errs...)
	})

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
