// Package enrichment looks up route metadata for a live feed train id.
//
// Lookups are best effort: callers treat ErrNotFound and any query failure the
// same way and fall back to unenriched notifications.
package enrichment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when no journey matches the train id
var ErrNotFound = errors.New("train not found")

// DefaultQuery selects the most recently originated journey for a train id.
// The placeholder and LIMIT syntax suit SQLite; other dialects can supply
// their own query with the same columns in the same order.
const DefaultQuery = `
SELECT
	LiveTrain.OriginDepartTimestamp,
	ScheduleTrain.TrainUid,
	LiveTrain.Headcode,
	OriginTiploc.CRS,
	OriginTiploc.Description,
	DestinationTiploc.CRS,
	DestinationTiploc.Description
FROM LiveTrain
INNER JOIN ScheduleTrain ON LiveTrain.ScheduleTrain = ScheduleTrain.ScheduleId
INNER JOIN Tiploc OriginTiploc ON ScheduleTrain.OriginStopTiplocId = OriginTiploc.TiplocId
INNER JOIN Tiploc DestinationTiploc ON ScheduleTrain.DestinationStopTiplocId = DestinationTiploc.TiplocId
WHERE LiveTrain.TrainId = ?
ORDER BY LiveTrain.OriginDepartTimestamp DESC
LIMIT 1`

// RouteDetails describes the scheduled journey behind a live train id
type RouteDetails struct {
	Headcode              string
	TrainUID              string
	OriginName            string
	OriginCRS             string
	DestinationName       string
	DestinationCRS        string
	OriginDepartTimestamp time.Time
}

// Lookup resolves a train id to route metadata
type Lookup interface {
	GetTrain(ctx context.Context, trainID string) (*RouteDetails, error)
}

// Repository reads route metadata from a relational schedule store
type Repository struct {
	db      *sql.DB
	query   string
	timeout time.Duration
}

// NewRepository creates a repository. An empty query selects DefaultQuery and
// a zero timeout leaves the query bounded only by the caller's context.
func NewRepository(db *sql.DB, query string, timeout time.Duration) *Repository {
	if query == "" {
		query = DefaultQuery
	}
	return &Repository{db: db, query: query, timeout: timeout}
}

// Open opens the store with the given database/sql driver
func Open(driver, dsn, query string, timeout time.Duration) (*Repository, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", driver, err)
	}
	return NewRepository(db, query, timeout), nil
}

// GetTrain returns the latest journey recorded for trainID
func (r *Repository) GetTrain(ctx context.Context, trainID string) (*RouteDetails, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	var d RouteDetails
	err := r.db.QueryRowContext(ctx, r.query, trainID).Scan(
		&d.OriginDepartTimestamp,
		&d.TrainUID,
		&d.Headcode,
		&d.OriginCRS,
		&d.OriginName,
		&d.DestinationCRS,
		&d.DestinationName,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup train %s: %w", trainID, err)
	}
	return &d, nil
}

// Close releases the underlying connection pool
func (r *Repository) Close() error {
	return r.db.Close()
}
