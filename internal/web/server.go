// Package web provides an HTTP status server for the iibd daemon.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/sweeney/iib-interlock/internal/interlock"
	"github.com/sweeney/iib-interlock/internal/log"
	"github.com/sweeney/iib-interlock/internal/status"
)

// Clearer accepts operator clear requests.
type Clearer interface {
	ClearAlarm()
	RequestClear()
}

// History returns recent interlock events, newest first.
type History interface {
	Recent(n int) ([]interlock.Event, error)
}

// Server serves the status page, the JSON API and the live WebSocket feed.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	clearer    Clearer
	history    History
	upgrader   websocket.Upgrader

	// pushEvery is the WebSocket refresh interval between events.
	pushEvery time.Duration
}

// New creates a Server that reads state from the given tracker. clearer and
// history may be nil; the matching endpoints then answer 503.
func New(addr string, tracker *status.Tracker, clearer Clearer, history History) *Server {
	s := &Server{
		tracker:   tracker,
		clearer:   clearer,
		history:   history,
		pushEvery: time.Second,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           handlers.RecoveryHandler(handlers.RecoveryLogger(panicLogger{}))(s.routes()),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", s.handleIndex).Methods("GET")
	r.HandleFunc("/index.html", s.handleIndex).Methods("GET")
	r.HandleFunc("/index.json", s.handleJSON).Methods("GET")
	r.HandleFunc("/ws", s.handleWS).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/channels", s.handleChannels).Methods("GET")
	api.HandleFunc("/history", s.handleHistory).Methods("GET")
	api.HandleFunc("/clear", s.handleClear).Methods("POST")
	return r
}

// panicLogger routes handler panics to the daemon log.
type panicLogger struct{}

func (panicLogger) Println(v ...interface{}) {
	log.Error("web: %s", fmt.Sprint(v...))
}

// Handler returns the root handler. Useful for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderHTML(w, snap); err != nil {
		log.Warning("web: render index: %v", err)
	}
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(s.tracker.Snapshot()))
}

func (s *Server) handleChannels(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatChannelsJSON(s.tracker.Snapshot()))
}

// ClearResponse is the body of a clear request reply.
type ClearResponse struct {
	Accepted bool `json:"accepted"`
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if s.clearer == nil {
		http.Error(w, "clear not available", http.StatusServiceUnavailable)
		return
	}
	log.Info("web: clear requested from %s", r.RemoteAddr)
	s.clearer.ClearAlarm()
	s.clearer.RequestClear()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(ClearResponse{Accepted: true})
}

// HistoryEntry is one event in the history endpoint.
type HistoryEntry struct {
	Timestamp     string   `json:"timestamp"`
	Type          string   `json:"type"`
	Variant       string   `json:"variant"`
	InterlockBits uint32   `json:"interlock_bits"`
	AlarmBits     uint32   `json:"alarm_bits"`
	Causes        []string `json:"causes,omitempty"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		http.Error(w, "history not available", http.StatusServiceUnavailable)
		return
	}
	n := 50
	if v := r.URL.Query().Get("n"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			http.Error(w, "bad n", http.StatusBadRequest)
			return
		}
		n = parsed
	}
	events, err := s.history.Recent(n)
	if err != nil {
		log.Warning("web: history: %v", err)
		http.Error(w, "history unavailable", http.StatusInternalServerError)
		return
	}

	out := make([]HistoryEntry, 0, len(events))
	for _, e := range events {
		out = append(out, HistoryEntry{
			Timestamp:     e.Timestamp.UTC().Format(time.RFC3339),
			Type:          string(e.Type),
			Variant:       e.Variant,
			InterlockBits: e.InterlockBits,
			AlarmBits:     e.AlarmBits,
			Causes:        e.Causes,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

// handleWS pushes the JSON status on connect, on every recorded event and
// once per pushEvery.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	events, unsubscribe := s.tracker.Subscribe()
	defer unsubscribe()

	// The reader only notices the peer going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.pushEvery)
	defer ticker.Stop()

	for {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, status.FormatJSON(s.tracker.Snapshot())); err != nil {
			return
		}
		select {
		case <-events:
		case <-ticker.C:
		case <-gone:
			return
		case <-r.Context().Done():
			return
		}
	}
}
