package metrics

import (
	"context"
	"net"
	"net/http"
	"time"

	"fuzzctl/infra/utils/logger"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	DefaultAddr = ":9000"

	shutdownTimeout = time.Second
)

func newRouter() *mux.Router {
	router := mux.NewRouter()
	router.Path("/metrics").Handler(promhttp.Handler())
	return router
}

// Serve - отдает /metrics пока не отменят ctx, пустой addr - метрики выключены
func Serve(ctx context.Context, addr string) error {
	if addr == "" {
		<-ctx.Done()
		return nil
	}
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "failed to listen metrics on %s", addr)
	}
	return serve(ctx, l)
}

func serve(ctx context.Context, l net.Listener) error {
	srv := http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       time.Second,
		IdleTimeout:       2 * time.Minute,
		Handler:           newRouter(),
	}
	srv.SetKeepAlivesEnabled(true)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Errorf(err, "failed to shutdown metrics server")
		}
	}()

	logger.Debugf("serving metrics on %s", l.Addr())
	if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "metrics server failed")
	}
	return nil
}
