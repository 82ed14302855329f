package notify

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// Coordinates is a fixed location attached to every status
type Coordinates struct {
	Latitude  float64
	Longitude float64
}

// Status is one post handed to a Publisher
type Status struct {
	Text               string
	Coordinates        *Coordinates
	DisplayCoordinates bool
}

// Publisher sends a status to the publishing service
type Publisher interface {
	Publish(ctx context.Context, st Status) error
}

// Dispatcher attaches configured coordinates, paces statuses and logs the outcome
type Dispatcher struct {
	publisher Publisher
	coords    *Coordinates
	limiter   *rate.Limiter
}

// Option configures a Dispatcher
type Option func(*Dispatcher)

// WithCoordinates attaches a fixed location to every status
func WithCoordinates(lat, long float64) Option {
	return func(d *Dispatcher) {
		d.coords = &Coordinates{Latitude: lat, Longitude: long}
	}
}

// WithMinInterval spaces consecutive statuses at least interval apart
func WithMinInterval(interval time.Duration) Option {
	return func(d *Dispatcher) {
		if interval > 0 {
			d.limiter = rate.NewLimiter(rate.Every(interval), 1)
		}
	}
}

// NewDispatcher creates a dispatcher sending through p
func NewDispatcher(p Publisher, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		publisher: p,
		limiter:   rate.NewLimiter(rate.Inf, 1),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Publish sends text. Failures are logged and otherwise ignored.
func (d *Dispatcher) Publish(ctx context.Context, text string) {
	if err := d.limiter.Wait(ctx); err != nil {
		slog.Warn("notification dropped", "err", err, "text", text)
		return
	}

	st := Status{Text: text}
	if d.coords != nil {
		c := *d.coords
		st.Coordinates = &c
		st.DisplayCoordinates = true
	}

	if err := d.publisher.Publish(ctx, st); err != nil {
		slog.Error("failed to publish notification", "err", err, "text", text)
		return
	}
	slog.Info("published notification", "text", text)
}
