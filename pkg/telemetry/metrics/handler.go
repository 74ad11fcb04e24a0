package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler returns an HTTP handler for the Prometheus metrics endpoint.
// It serves OpenMetrics when the scraper asks for it and keeps serving the
// metrics that could be gathered when a collector fails.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}

// Serve exposes the metrics endpoint on the configured address until ctx
// is done. It returns once the listener is bound; the returned address is
// the one actually listened on.
func (c *Collector) Serve(ctx context.Context, logger *slog.Logger) (net.Addr, error) {
	ln, err := net.Listen("tcp", c.config.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", c.config.Address, err)
	}

	mux := http.NewServeMux()
	mux.Handle(c.config.Path, c.Handler())
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics endpoint listening", "address", ln.Addr().String(), "path", c.config.Path)
	return ln.Addr(), nil
}
