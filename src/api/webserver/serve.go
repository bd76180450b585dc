package webserver

import (
	"context"
	"net/http"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/stake-plus/cardano-gov-sentiment/src/config"
)

const shutdownTimeout = 10 * time.Second

// Serve runs handler on addr until ctx is cancelled, then shuts down
// gracefully. HTTPS is used when tlsCfg is enabled.
func Serve(ctx context.Context, addr string, handler http.Handler, tlsCfg config.TLS, log *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if tlsCfg.Enabled() {
		reloader, err := NewCertReloader(tlsCfg.CertFile, tlsCfg.KeyFile, log)
		if err != nil {
			return err
		}
		srv.TLSConfig = reloader.Config()
		go reloader.Watch(ctx, clock.WallClock)
	}

	errc := make(chan error, 1)
	go func() {
		var err error
		if srv.TLSConfig != nil {
			err = srv.ListenAndServeTLS("", "")
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()
	log.Info("http listening", zap.String("addr", addr), zap.Bool("tls", srv.TLSConfig != nil))

	select {
	case err := <-errc:
		return errors.Annotate(err, "http")
	case <-ctx.Done():
	}
	shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return errors.Annotate(srv.Shutdown(shutCtx), "http shutdown")
}
