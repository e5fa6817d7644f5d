package kmesim

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/flashbots/go-utils/httplogger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/atomic"

	"github.com/qursa-uc3m/qkd-etsi-client/api"
	"github.com/qursa-uc3m/qkd-etsi-client/interfaces"
)

// HTTPServerConfig configures the simulator's HTTP server.
type HTTPServerConfig struct {
	ListenAddr  string
	EnablePprof bool
	Log         *slog.Logger

	// CertFile, KeyFile and ClientCAFile enable mutual TLS when set. The
	// simulator then requires and verifies client certificates, matching a
	// production KME deployment.
	CertFile     string
	KeyFile      string
	ClientCAFile string

	DrainDuration            time.Duration
	GracefulShutdownDuration time.Duration
	ReadTimeout              time.Duration
	WriteTimeout             time.Duration
}

// Server serves a simulated KME over the ETSI GS QKD 014 endpoints.
type Server struct {
	cfg     *HTTPServerConfig
	isReady atomic.Bool
	log     *slog.Logger
	pool    *KeyPool

	srv *http.Server
}

// New creates a simulator server over the given key pool.
func New(cfg *HTTPServerConfig, pool *KeyPool) (*Server, error) {
	if pool == nil {
		return nil, errors.New("key pool is required")
	}

	srv := &Server{
		cfg:  cfg,
		log:  cfg.Log,
		pool: pool,
	}
	srv.isReady.Store(true)

	var tlsConfig *tls.Config
	if cfg.CertFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("could not load server keypair: %w", err)
		}
		tlsConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}
		if cfg.ClientCAFile != "" {
			caPEM, err := os.ReadFile(cfg.ClientCAFile)
			if err != nil {
				return nil, fmt.Errorf("could not read client CA file: %w", err)
			}
			caPool := x509.NewCertPool()
			if !caPool.AppendCertsFromPEM(caPEM) {
				return nil, fmt.Errorf("no valid CA certificates in %s", cfg.ClientCAFile)
			}
			tlsConfig.ClientCAs = caPool
			tlsConfig.ClientAuth = tls.RequireAndVerifyClientCert
		}
	}

	srv.srv = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      srv.getRouter(),
		TLSConfig:    tlsConfig,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return srv, nil
}

// Handler returns the simulator's HTTP handler for use with httptest.
func (srv *Server) Handler() http.Handler {
	return srv.getRouter()
}

func (srv *Server) getRouter() http.Handler {
	mux := chi.NewRouter()

	mux.With(srv.httpLogger).Get("/api/v1/keys/{peer_sae}/status", srv.handleStatus)
	mux.With(srv.httpLogger).Get("/api/v1/keys/{peer_sae}/enc_keys", srv.handleEncKeys)
	mux.With(srv.httpLogger).Post("/api/v1/keys/{peer_sae}/enc_keys", srv.handleEncKeys)
	mux.With(srv.httpLogger).Post("/api/v1/keys/{peer_sae}/dec_keys", srv.handleDecKeys)

	mux.With(srv.httpLogger).Get("/livez", srv.handleLivenessCheck)
	mux.With(srv.httpLogger).Get("/readyz", srv.handleReadinessCheck)
	mux.With(srv.httpLogger).Get("/drain", srv.handleDrain)
	mux.With(srv.httpLogger).Get("/undrain", srv.handleUndrain)

	if srv.cfg.EnablePprof {
		srv.log.Info("pprof API enabled")
		mux.Mount("/debug", middleware.Profiler())
	}
	return mux
}

func (srv *Server) httpLogger(next http.Handler) http.Handler {
	return httplogger.LoggingMiddlewareSlog(srv.log, next)
}

func (srv *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	srv.writeJSON(w, http.StatusOK, srv.pool.Status())
}

func (srv *Server) handleEncKeys(w http.ResponseWriter, r *http.Request) {
	var req api.KeyRequest
	if r.Method == http.MethodPost {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			srv.writeError(w, http.StatusBadRequest, "could not parse key request")
			return
		}
	}

	number := req.Number
	if number == 0 {
		number = 1
	}
	if number < 0 {
		srv.writeError(w, http.StatusBadRequest, "requested key number must be positive")
		return
	}
	if req.Size != 0 && req.Size != srv.pool.Status().KeySize {
		srv.writeError(w, http.StatusBadRequest, "requested key size is not supported")
		return
	}

	var container api.KeyContainer
	for i := 0; i < number; i++ {
		id, key, err := srv.pool.NewKey()
		if err != nil {
			srv.writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		container.Keys = append(container.Keys, api.Key{
			KeyID: id.String(),
			Key:   base64.StdEncoding.EncodeToString(key),
		})
	}

	srv.writeJSON(w, http.StatusOK, container)
}

func (srv *Server) handleDecKeys(w http.ResponseWriter, r *http.Request) {
	var req api.KeyIDsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		srv.writeError(w, http.StatusBadRequest, "could not parse key_IDs request")
		return
	}
	if len(req.KeyIDs) == 0 {
		srv.writeError(w, http.StatusBadRequest, "key_IDs must not be empty")
		return
	}

	var container api.KeyContainer
	for _, entry := range req.KeyIDs {
		key, err := srv.pool.KeyByID(interfaces.KeyID(entry.KeyID))
		if err != nil {
			srv.writeError(w, http.StatusNotFound, err.Error())
			return
		}
		container.Keys = append(container.Keys, api.Key{
			KeyID: entry.KeyID,
			Key:   base64.StdEncoding.EncodeToString(key),
		})
	}

	srv.writeJSON(w, http.StatusOK, container)
}

func (srv *Server) handleLivenessCheck(w http.ResponseWriter, r *http.Request) {
	srv.writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

func (srv *Server) handleReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if !srv.isReady.Load() {
		srv.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
		return
	}
	srv.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (srv *Server) handleDrain(w http.ResponseWriter, r *http.Request) {
	if !srv.isReady.Swap(false) {
		srv.writeJSON(w, http.StatusOK, map[string]string{"status": "already draining"})
		return
	}
	srv.log.Info("Server marked as not ready")
	go func() {
		time.Sleep(srv.cfg.DrainDuration)
		srv.log.Info("Drain period completed")
	}()
	srv.writeJSON(w, http.StatusOK, map[string]string{"status": "draining"})
}

func (srv *Server) handleUndrain(w http.ResponseWriter, r *http.Request) {
	if srv.isReady.Swap(true) {
		srv.writeJSON(w, http.StatusOK, map[string]string{"status": "already ready"})
		return
	}
	srv.log.Info("Server marked as ready")
	srv.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (srv *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		srv.log.Error("could not encode response", "err", err)
	}
}

func (srv *Server) writeError(w http.ResponseWriter, status int, msg string) {
	srv.writeJSON(w, status, map[string]string{"message": msg})
}

// RunInBackground starts the server. When TLS is configured the server
// requires client certificates signed by the configured CA.
func (srv *Server) RunInBackground() {
	go func() {
		srv.log.Info("Starting KME simulator", "listenAddress", srv.cfg.ListenAddr, "tls", srv.srv.TLSConfig != nil)
		var err error
		if srv.srv.TLSConfig != nil {
			err = srv.srv.ListenAndServeTLS("", "")
		} else {
			err = srv.srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			srv.log.Error("HTTP server failed", "err", err)
		}
	}()
}

// Shutdown stops the server gracefully.
func (srv *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), srv.cfg.GracefulShutdownDuration)
	defer cancel()
	if err := srv.srv.Shutdown(ctx); err != nil {
		srv.log.Error("Graceful HTTP server shutdown failed", "err", err)
	} else {
		srv.log.Info("HTTP server gracefully stopped")
	}
}
