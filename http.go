package driftwatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// maxBodySize is the maximum allowed request body size (10MB)
	maxBodySize = 10 * 1024 * 1024
)

// Server exposes the detector's control surface, sample ingestion, the
// anomaly journal, and the live WebSocket feed over HTTP. A thin UI layer
// maps user actions (a stop button, a sensitivity slider) onto these
// endpoints.
type Server struct {
	srv      *http.Server
	detector *Detector
	journal  *Journal
	cfg      HTTPConfig
}

// middlewareWrapper wraps handlers with authentication
type middlewareWrapper func(h http.HandlerFunc) http.HandlerFunc

// authenticator validates API keys on control endpoints.
type authenticator struct {
	keys map[string]bool
}

func newAuthenticator(apiKeys []string) *authenticator {
	if len(apiKeys) == 0 {
		return nil
	}
	keys := make(map[string]bool, len(apiKeys))
	for _, k := range apiKeys {
		keys[k] = true
	}
	return &authenticator{keys: keys}
}

func (a *authenticator) allow(r *http.Request) bool {
	if a == nil {
		return true
	}
	key := r.Header.Get("X-API-Key")
	if key == "" {
		auth := r.Header.Get("Authorization")
		if strings.HasPrefix(auth, "Bearer ") {
			key = strings.TrimPrefix(auth, "Bearer ")
		}
	}
	return a.keys[key]
}

func authMiddleware(a *authenticator, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !a.allow(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		h(w, r)
	}
}

// newServer builds the server and its routes without binding a listener.
func newServer(d *Detector, journal *Journal, cfg HTTPConfig) *Server {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = Duration(10 * time.Second)
	}
	return &Server{detector: d, journal: journal, cfg: cfg}
}

// routes builds the HTTP handler tree.
func (s *Server) routes() http.Handler {
	auth := newAuthenticator(s.cfg.APIKeys)
	wrap := func(h http.HandlerFunc) http.HandlerFunc {
		return authMiddleware(auth, h)
	}

	mux := http.NewServeMux()
	s.setupControlRoutes(mux, wrap)
	s.setupIngestRoutes(mux, wrap)
	setupRemoteWriteRoute(mux, s.detector, s.cfg, wrap)

	mux.HandleFunc("/stream", streamHandler(s.detector, s.cfg))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "state": s.detector.State().String()})
	})
	return mux
}

// StartServer starts the HTTP API server on the configured port. The journal
// may be nil, in which case /api/v1/anomalies returns 404.
func StartServer(d *Detector, journal *Journal, cfg HTTPConfig) (*Server, error) {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		cfg.Port = 8099
	}

	s := newServer(d, journal, cfg)
	mux := s.routes()

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	s.srv = &http.Server{
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		_ = s.srv.Serve(listener)
	}()

	return s, nil
}

// Close shuts the server down gracefully.
func (s *Server) Close() error {
	if s == nil || s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

func (s *Server) setupControlRoutes(mux *http.ServeMux, wrap middlewareWrapper) {
	controls := map[string]func(){
		"/api/v1/control/start":  s.detector.Start,
		"/api/v1/control/pause":  s.detector.Pause,
		"/api/v1/control/resume": s.detector.Resume,
		"/api/v1/control/stop":   s.detector.Stop,
	}
	for path, op := range controls {
		op := op
		mux.HandleFunc(path, wrap(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			op()
			writeJSON(w, http.StatusOK, map[string]string{"state": s.detector.State().String()})
		}))
	}

	mux.HandleFunc("/api/v1/sensitivity", wrap(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, map[string]float64{"sensitivity": s.detector.Sensitivity()})
		case http.MethodPut, http.MethodPost:
			var req struct {
				Sensitivity float64 `json:"sensitivity"`
			}
			if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			if err := s.detector.SetSensitivity(req.Sensitivity); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			writeJSON(w, http.StatusOK, map[string]float64{"sensitivity": s.detector.Sensitivity()})
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))

	mux.HandleFunc("/api/v1/status", wrap(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.detector.Stats())
	}))

	mux.HandleFunc("/api/v1/anomalies", wrap(func(w http.ResponseWriter, r *http.Request) {
		if s.journal == nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		limit := 100
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				limit = n
			}
		}
		var entries []JournalEntry
		var err error
		if v := r.URL.Query().Get("since"); v != "" {
			ns, perr := strconv.ParseInt(v, 10, 64)
			if perr != nil {
				http.Error(w, "invalid since timestamp", http.StatusBadRequest)
				return
			}
			entries, err = s.journal.Since(time.Unix(0, ns), limit)
		} else {
			entries, err = s.journal.Recent(limit)
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"anomalies": entries})
	}))
}

type ingestRequest struct {
	Samples []Sample `json:"samples"`
}

type ingestResponse struct {
	Accepted int `json:"accepted"`
	Dropped  int `json:"dropped"`
	Invalid  int `json:"invalid"`
}

func (s *Server) setupIngestRoutes(mux *http.ServeMux, wrap middlewareWrapper) {
	mux.HandleFunc("/api/v1/samples", wrap(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var req ingestRequest
		if err := json.Unmarshal(body, &req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		running := s.detector.State() == StateRunning
		var resp ingestResponse
		for _, sample := range req.Samples {
			err := s.detector.Submit(sample)
			switch {
			case errors.Is(err, ErrInvalidSample):
				resp.Invalid++
			case err == nil && running:
				resp.Accepted++
			default:
				resp.Dropped++
			}
		}
		writeJSON(w, http.StatusAccepted, resp)
	}))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
