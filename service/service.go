// Package service runs the early departure pipeline: decode, detect, enrich,
// notify and record, plus the once a day summary.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/theoremus-urban-solutions/trainearly/detection"
	"github.com/theoremus-urban-solutions/trainearly/enrichment"
	"github.com/theoremus-urban-solutions/trainearly/feed"
	"github.com/theoremus-urban-solutions/trainearly/gtfsrt"
	"github.com/theoremus-urban-solutions/trainearly/stats"
)

// Notifier publishes notification text without reporting failures
type Notifier interface {
	Publish(ctx context.Context, text string)
}

// Service holds the pipeline state shared by every feed message
type Service struct {
	mu sync.Mutex

	composer detection.Composer
	lookup   enrichment.Lookup // nil disables enrichment
	notifier Notifier
	stats    *stats.Store
	recorder *gtfsrt.Recorder // optional
	now      func() time.Time
}

// Option configures a Service
type Option func(*Service)

// WithLookup enables route enrichment
func WithLookup(l enrichment.Lookup) Option {
	return func(s *Service) { s.lookup = l }
}

// WithRecorder records detections for the GTFS-Realtime export
func WithRecorder(r *gtfsrt.Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates a pipeline
func New(composer detection.Composer, notifier Notifier, store *stats.Store, opts ...Option) *Service {
	s := &Service{
		composer: composer,
		notifier: notifier,
		stats:    store,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start publishes the summary for any previous day left in the statistics
// file. It runs before the feed subscription opens.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rollover(ctx)
}

// HandleMessage processes one raw feed message. Faults are logged and never
// stop the feed.
func (s *Service) HandleMessage(ctx context.Context, raw []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.rollover(ctx); err != nil {
		slog.Error("failed to roll over statistics", "err", err)
	}

	ev, err := feed.Decode(raw)
	if err != nil {
		slog.Debug("skipping malformed feed message", "err", err)
		return
	}
	if ev == nil {
		return
	}

	ed, early := detection.Evaluate(*ev)
	if !early {
		return
	}
	slog.Info("early departure detected", "train_id", ed.TrainID, "minutes_early", ed.MinutesEarly,
		"expected", ed.Expected, "actual", ed.Actual)

	route := s.enrich(ctx, ed.TrainID)
	s.notifier.Publish(ctx, s.composer.Compose(ed, route))

	if err := s.stats.Append(ed.MinutesEarly); err != nil {
		slog.Error("failed to record early departure", "err", err, "minutes_early", ed.MinutesEarly)
	}
	if s.recorder != nil {
		tripID := ""
		if route != nil {
			tripID = route.TrainUID
		}
		s.recorder.Add(ed, tripID, s.now())
	}
}

// enrich looks up route details. Not found and failures both yield nil; the
// caller falls back to the generic text.
func (s *Service) enrich(ctx context.Context, trainID string) *enrichment.RouteDetails {
	if s.lookup == nil {
		return nil
	}
	route, err := s.lookup.GetTrain(ctx, trainID)
	switch {
	case errors.Is(err, enrichment.ErrNotFound):
		slog.Info("no route details, using generic text", "train_id", trainID)
		return nil
	case err != nil:
		slog.Warn("route lookup failed, using generic text", "train_id", trainID, "err", err)
		return nil
	}
	return route
}

func (s *Service) rollover(ctx context.Context) error {
	now := s.now()
	summary, ok, err := s.stats.RolloverIfNeeded(now)
	if !ok {
		return err
	}
	slog.Info("daily statistics rolled over", "summary", summary)
	s.notifier.Publish(ctx, summary)
	if s.recorder != nil {
		s.recorder.Reset(now)
	}
	return err
}
