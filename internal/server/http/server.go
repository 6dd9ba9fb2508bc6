package httpserver

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/sluicelabs/sluice/internal/config"
	"github.com/sluicelabs/sluice/internal/durablelog"
	"github.com/sluicelabs/sluice/internal/metrics"
	"github.com/sluicelabs/sluice/internal/topic"
	"github.com/sluicelabs/sluice/internal/writer"
	"github.com/sluicelabs/sluice/pkg/log"
)

// Server is the HTTP/WebSocket binding over the Writer Core, Durable Log
// Store, and Topic Registry. It holds no broker state of its own.
type Server struct {
	writer   *writer.Core
	store    *durablelog.Store
	registry *topic.Registry
	metrics  metrics.Hook
	logger   log.Logger

	srv *http.Server
	lis net.Listener
}

// New wires the mux. m may be nil (defaults to a no-op hook).
func New(w *writer.Core, store *durablelog.Store, registry *topic.Registry, m metrics.Hook, logger log.Logger) *Server {
	if m == nil {
		m = metrics.Noop{}
	}
	s := &Server{writer: w, store: store, registry: registry, metrics: m, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/healthz", s.handleHealth)
	mux.HandleFunc("/v1/topics", s.handleListTopics)
	mux.HandleFunc("/v1/topics/publish", s.handlePublish)
	mux.HandleFunc("/v1/topics/subscribe", s.handleSubscribe)
	s.srv = &http.Server{Handler: cors(mux)}
	return s
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
// within a short deadline (the hard shutdown deadline is enforced by the
// caller's overall shutdown sequence, spec §5). If tlsCfg.Enabled(), the
// listener terminates TLS using tlsCfg's cert/key (and, if set, verifies
// client certificates against client_ca).
func (s *Server) ListenAndServe(ctx context.Context, addr string, tlsCfg config.TLSConfig) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	if tlsCfg.Enabled() {
		serverTLS, err := buildServerTLSConfig(tlsCfg)
		if err != nil {
			_ = l.Close()
			return err
		}
		l = tls.NewListener(l, serverTLS)
	}
	s.lis = l
	// Request contexts (and so every Subscribe session) derive from ctx, so
	// cancelling ctx reaches sessions on hijacked WebSocket connections too.
	s.srv.BaseContext = func(net.Listener) context.Context { return ctx }
	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(l) }()
	select {
	case <-ctx.Done():
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(cctx)
		return nil
	case err := <-errCh:
		return err
	}
}

func buildServerTLSConfig(cfg config.TLSConfig) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(cfg.Cert, cfg.Key)
	if err != nil {
		return nil, fmt.Errorf("httpserver: load tls cert/key: %w", err)
	}
	tc := &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12}
	if cfg.ClientCA != "" {
		pem, err := os.ReadFile(cfg.ClientCA)
		if err != nil {
			return nil, fmt.Errorf("httpserver: read client_ca: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("httpserver: client_ca contains no usable certificates")
		}
		tc.ClientCAs = pool
		tc.ClientAuth = tls.RequireAndVerifyClientCert
	}
	return tc, nil
}

// Close releases the listener without waiting for in-flight requests.
func (s *Server) Close() {
	if s.lis != nil {
		_ = s.lis.Close()
	}
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
