package webserver

import (
	"context"
	"crypto/tls"
	"os"
	"sync"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// CertReloadInterval is how often certificate files are checked for changes.
const CertReloadInterval = 5 * time.Minute

// CertReloader serves a certificate pair that is reloaded from disk when
// either file changes, so renewals need no restart.
type CertReloader struct {
	certFile, keyFile string
	log               *zap.Logger

	mu          sync.RWMutex
	cert        *tls.Certificate
	certModTime time.Time
	keyModTime  time.Time
}

func NewCertReloader(certFile, keyFile string, log *zap.Logger) (*CertReloader, error) {
	r := &CertReloader{certFile: certFile, keyFile: keyFile, log: log}
	if err := r.reload(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *CertReloader) reload() error {
	cert, err := tls.LoadX509KeyPair(r.certFile, r.keyFile)
	if err != nil {
		return errors.Annotate(err, "load tls key pair")
	}
	certInfo, err := os.Stat(r.certFile)
	if err != nil {
		return errors.Trace(err)
	}
	keyInfo, err := os.Stat(r.keyFile)
	if err != nil {
		return errors.Trace(err)
	}

	r.mu.Lock()
	r.cert = &cert
	r.certModTime = certInfo.ModTime()
	r.keyModTime = keyInfo.ModTime()
	r.mu.Unlock()
	return nil
}

// changed reports whether either file is newer than the loaded pair.
func (r *CertReloader) changed() (bool, error) {
	certInfo, err := os.Stat(r.certFile)
	if err != nil {
		return false, errors.Trace(err)
	}
	keyInfo, err := os.Stat(r.keyFile)
	if err != nil {
		return false, errors.Trace(err)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return certInfo.ModTime().After(r.certModTime) || keyInfo.ModTime().After(r.keyModTime), nil
}

// Watch polls the files until ctx is done.
func (r *CertReloader) Watch(ctx context.Context, clk clock.Clock) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-clk.After(CertReloadInterval):
		}
		changed, err := r.changed()
		if err != nil {
			r.log.Warn("stat tls files", zap.Error(err))
			continue
		}
		if !changed {
			continue
		}
		if err := r.reload(); err != nil {
			r.log.Error("reload tls certificate", zap.Error(err))
			continue
		}
		r.log.Info("tls certificate reloaded")
	}
}

func (r *CertReloader) Config() *tls.Config {
	return &tls.Config{
		MinVersion: tls.VersionTLS12,
		GetCertificate: func(*tls.ClientHelloInfo) (*tls.Certificate, error) {
			r.mu.RLock()
			defer r.mu.RUnlock()
			return r.cert, nil
		},
	}
}
