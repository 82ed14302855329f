// Package server exposes process health and the early departure export over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/theoremus-urban-solutions/trainearly/gtfsrt"
	"github.com/theoremus-urban-solutions/trainearly/stats"
	"github.com/theoremus-urban-solutions/trainearly/subscription"
)

// FeedStatus reports the state of the feed subscription
type FeedStatus interface {
	State() subscription.State
	Connects() uint64
}

// StatsSource exposes the current statistics window
type StatsSource interface {
	Snapshot() stats.DelayStatistics
}

type healthResponse struct {
	Status       string    `json:"status"`
	Subscription string    `json:"subscription"`
	Connects     uint64    `json:"connects"`
	StatsEpoch   time.Time `json:"stats_epoch"`
	EarlyToday   int       `json:"early_today"`
}

// Server is the status HTTP server
type Server struct {
	srv      *http.Server
	feed     FeedStatus
	stats    StatsSource
	recorder *gtfsrt.Recorder
}

// New creates a server listening on port
func New(port int, feed FeedStatus, st StatsSource, recorder *gtfsrt.Recorder) *Server {
	s := &Server{feed: feed, stats: st, recorder: recorder}
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the routes served
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/early-departures.pb", s.handleEarlyDepartures)
	return mux
}

// Start listens in the background. Listen errors are returned synchronously.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.srv.Addr, err)
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "err", err)
		}
	}()
	slog.Info("server listening", "addr", s.srv.Addr)
	return nil
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.stats.Snapshot()
	state := s.feed.State()
	resp := healthResponse{
		Status:       "ok",
		Subscription: state.String(),
		Connects:     s.feed.Connects(),
		StatsEpoch:   snap.Created,
		EarlyToday:   len(snap.EarlyDepartures),
	}
	code := http.StatusOK
	if state != subscription.Subscribed {
		resp.Status = "degraded"
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleEarlyDepartures(w http.ResponseWriter, r *http.Request) {
	text := r.URL.Query().Get("format") == "text"
	data, err := s.recorder.Marshal(text)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if text {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	} else {
		w.Header().Set("Content-Type", "application/x-protobuf")
	}
	_, _ = w.Write(data)
}
