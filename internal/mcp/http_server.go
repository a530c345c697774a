/*-------------------------------------------------------------------------
 *
 * BigQuery Data Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package mcp

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"bq-data-agent/internal/auth"
	"bq-data-agent/internal/logging"
	"bq-data-agent/internal/session"
)

// HTTPConfig holds configuration for HTTP/HTTPS server mode
type HTTPConfig struct {
	Addr        string           // Server address (e.g., ":8080")
	TLSEnable   bool             // Enable HTTPS
	CertFile    string           // Path to TLS certificate file
	KeyFile     string           // Path to TLS key file
	ChainFile   string           // Optional path to certificate chain file
	AuthEnabled bool             // Enable API token authentication
	TokenStore  *auth.TokenStore // Token store for authentication

	// AuthID is the delegation flow whose token the DelegationHeader carries.
	// Delegation is ignored when either is empty.
	AuthID           string
	DelegationHeader string

	// SessionIdle is how long an unused session lives
	SessionIdle time.Duration
}

type httpTransport struct {
	server   *Server
	cfg      *HTTPConfig
	sessions *session.Store
}

// HTTPHandler returns the HTTP routes serving the MCP endpoint
func (s *Server) HTTPHandler(cfg *HTTPConfig, sessions *session.Store) http.Handler {
	t := &httpTransport{server: s, cfg: cfg, sessions: sessions}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)

	r.Get(auth.HealthCheckPath, t.handleHealthCheck)

	r.Group(func(r chi.Router) {
		if cfg.AuthEnabled {
			r.Use(auth.Middleware(cfg.TokenStore))
		}
		r.Post("/mcp/v1", t.handlePost)
		r.Delete("/mcp/v1", t.handleDelete)
	})
	return r
}

// RunHTTP serves MCP over HTTP until ctx is cancelled
func (s *Server) RunHTTP(ctx context.Context, cfg *HTTPConfig) error {
	if cfg == nil {
		return fmt.Errorf("HTTP config is required")
	}
	if cfg.AuthEnabled && cfg.TokenStore == nil {
		return fmt.Errorf("authentication is enabled but no token store is configured")
	}

	sessions := session.NewStore()
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.HTTPHandler(cfg, sessions),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if cfg.TLSEnable {
		tlsConfig, err := loadTLSConfig(cfg)
		if err != nil {
			return fmt.Errorf("failed to load TLS config: %w", err)
		}
		httpServer.TLSConfig = tlsConfig
	}

	idle := cfg.SessionIdle
	if idle <= 0 {
		idle = DefaultSessionIdle
	}
	go expireSessions(ctx, sessions, idle)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logging.Error("http_shutdown_failed", "error", err)
		}
	}()

	logging.Info("http_server_started", "address", cfg.Addr, "tls", cfg.TLSEnable, "auth", cfg.AuthEnabled)

	var err error
	if cfg.TLSEnable {
		// Certificates are already in TLSConfig
		err = httpServer.ListenAndServeTLS("", "")
	} else {
		err = httpServer.ListenAndServe()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func expireSessions(ctx context.Context, sessions *session.Store, idle time.Duration) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := sessions.Expire(idle); n > 0 {
				logging.Debug("http_sessions_expired", "count", n)
			}
		}
	}
}

// loadTLSConfig loads the certificate, the key and an optional PEM chain
func loadTLSConfig(cfg *HTTPConfig) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load certificate and key: %w", err)
	}

	if cfg.ChainFile != "" {
		chainData, err := os.ReadFile(cfg.ChainFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read certificate chain: %w", err)
		}
		for {
			var block *pem.Block
			block, chainData = pem.Decode(chainData)
			if block == nil {
				break
			}
			if block.Type == "CERTIFICATE" {
				cert.Certificate = append(cert.Certificate, block.Bytes)
			}
		}
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

func (t *httpTransport) handlePost(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, ScannerMaxBufferSize))
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	var req JSONRPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, errorResponse(nil, CodeParseError, "Parse error", err.Error()))
		return
	}

	var state *session.State
	switch id := r.Header.Get(SessionHeader); {
	case req.Method == "initialize":
		id = uuid.NewString()
		state = t.sessions.GetOrCreate(id)
		w.Header().Set(SessionHeader, id)
	case id != "":
		var ok bool
		state, ok = t.sessions.Get(id)
		if !ok {
			http.Error(w, "Session not found", http.StatusNotFound)
			return
		}
	default:
		// Requests outside a session still get a private state bag
		state = session.NewState()
	}

	t.applyDelegation(r, state)

	resp, ok := t.server.Handle(session.WithState(r.Context(), state), req)
	if !ok {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	writeJSON(w, resp)
}

func (t *httpTransport) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.Header.Get(SessionHeader)
	if id == "" {
		http.Error(w, "Missing "+SessionHeader+" header", http.StatusBadRequest)
		return
	}
	t.sessions.Delete(id)
	w.WriteHeader(http.StatusNoContent)
}

// applyDelegation stores the delegated bearer token of the request in the
// session under the reserved key
func (t *httpTransport) applyDelegation(r *http.Request, state *session.State) {
	if t.cfg.AuthID == "" || t.cfg.DelegationHeader == "" {
		return
	}
	header := strings.TrimSpace(r.Header.Get(t.cfg.DelegationHeader))
	if header == "" {
		return
	}

	token, ok := auth.BearerToken(header)
	if !ok {
		token = header
	}
	state.Set(session.TokenKey(t.cfg.AuthID), token)
	logging.Debug("delegated_token_received", "auth_id", t.cfg.AuthID)
}

// handleHealthCheck provides a simple health check endpoint
func (t *httpTransport) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{
		"status":  "ok",
		"server":  ServerName,
		"version": ServerVersion,
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK) // JSON-RPC errors are still HTTP 200
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn("http_response_write_failed", "error", err)
	}
}
