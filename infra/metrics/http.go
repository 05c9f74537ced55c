package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kilianp07/wsd/infra/logger"
)

// NewServeMux returns a mux exposing /metrics plus the given handlers,
// keyed by pattern.
func NewServeMux(handlers map[string]http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	for pattern, h := range handlers {
		mux.Handle(pattern, h)
	}
	return mux
}

// StartServer serves /metrics and the extra handlers on addr until ctx is
// canceled. A dedicated ServeMux is used to avoid interfering with other
// handlers.
func StartServer(ctx context.Context, addr string, handlers map[string]http.Handler) error {
	srv := &http.Server{Addr: addr, Handler: NewServeMux(handlers), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.New("metrics-server").Errorf("shutdown: %v", err)
		}
		cancel()
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
