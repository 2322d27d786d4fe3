// Package httpapi is the read-only surface over the published cycle
// results: JSON endpoints, Prometheus metrics, and a websocket feed of
// cycle completions.
package httpapi

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/coinpulse/regimescan/internal/domain"
)

// ResultSource exposes the latest published cycle.
type ResultSource interface {
	Latest() *domain.CycleResult
}

// Server routes the read-only API.
type Server struct {
	source   ResultSource
	registry *prometheus.Registry
	router   *mux.Router

	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

func NewServer(source ResultSource, registry *prometheus.Registry) *Server {
	s := &Server{
		source:   source,
		registry: registry,
		router:   mux.NewRouter(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		conns: make(map[*websocket.Conn]struct{}),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/api/v1/result", s.handleResult).Methods(http.MethodGet)
	s.router.HandleFunc("/api/v1/regime", s.handleRegime).Methods(http.MethodGet)
	s.router.HandleFunc("/ws", s.handleWS)
	s.router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleResult(w http.ResponseWriter, _ *http.Request) {
	result := s.source.Latest()
	if result == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no cycle published yet"})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleRegime(w http.ResponseWriter, _ *http.Request) {
	result := s.source.Latest()
	if result == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no cycle published yet"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"regime":         result.Regime,
		"regime_changed": result.RegimeChanged,
		"as_of":          result.FinishedAt,
		"snapshot":       result.Snapshot,
	})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()

	// Reader loop only to notice the close.
	go func() {
		defer s.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *Server) drop(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	conn.Close()
}

// Broadcast pushes a cycle result to every websocket subscriber. Wire
// it to the pipeline's Subscribe hook.
func (s *Server) Broadcast(result *domain.CycleResult) {
	s.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		if err := c.WriteJSON(result); err != nil {
			log.Debug().Err(err).Msg("websocket write failed, dropping client")
			s.drop(c)
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("encode response failed")
	}
}
