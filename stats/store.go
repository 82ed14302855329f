// Package stats keeps the durable daily record of how early detected
// departures were.
//
// The record is a single indented JSON file, rewritten in full after every
// change and rolled over on the first opportunity after a calendar day ends.
package stats

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/theoremus-urban-solutions/trainearly/utils"
)

// DelayStatistics is the persisted accumulation window
type DelayStatistics struct {
	Created         time.Time `json:"Created"`
	EarlyDepartures []int     `json:"EarlyDepartures"`
}

// Store is the single writer of the statistics file. All methods are safe for
// concurrent use.
type Store struct {
	mu    sync.Mutex
	path  string
	loc   *time.Location
	stats DelayStatistics
}

// Load reads the statistics file at path. When none exists a fresh window
// starting at now is created and written before returning.
func Load(path string, loc *time.Location, now time.Time) (*Store, error) {
	if loc == nil {
		loc = time.UTC
	}
	s := &Store{path: path, loc: loc}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		s.stats = fresh(now)
		if err := s.save(); err != nil {
			return nil, err
		}
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("read stats: %w", err)
	}

	if err := json.Unmarshal(data, &s.stats); err != nil {
		return nil, fmt.Errorf("decode stats %s: %w", path, err)
	}
	if s.stats.EarlyDepartures == nil {
		s.stats.EarlyDepartures = []int{}
	}
	return s, nil
}

func fresh(now time.Time) DelayStatistics {
	return DelayStatistics{Created: now.UTC(), EarlyDepartures: []int{}}
}

// Snapshot returns a copy of the current window
func (s *Store) Snapshot() DelayStatistics {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.stats
	out.EarlyDepartures = append([]int{}, s.stats.EarlyDepartures...)
	return out
}

// Append records one early departure and persists the window
func (s *Store) Append(minutes int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.EarlyDepartures = append(s.stats.EarlyDepartures, minutes)
	return s.save()
}

// RolloverIfNeeded starts a new window when the current one began on an
// earlier calendar day than now. The summary of the closed window is returned
// with ok set only when a rollover happened. When the new window cannot be
// written the current one is kept and the rollover is retried on the next call.
func (s *Store) RolloverIfNeeded(now time.Time) (summary string, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !utils.DayBefore(s.stats.Created, now, s.loc) {
		return "", false, nil
	}
	next := fresh(now)
	if err := s.write(next); err != nil {
		return "", false, err
	}
	summary = Summarise(s.stats, s.loc)
	s.stats = next
	return summary, true, nil
}

// Summarise renders a window as
// "Early Departure for dd-MM-yy:{mins}mins:{count},...", groups in order of
// first appearance.
func Summarise(stats DelayStatistics, loc *time.Location) string {
	var order []int
	counts := map[int]int{}
	for _, m := range stats.EarlyDepartures {
		if _, seen := counts[m]; !seen {
			order = append(order, m)
		}
		counts[m]++
	}

	groups := make([]string, 0, len(order))
	for _, m := range order {
		groups = append(groups, fmt.Sprintf("%dmins:%d", m, counts[m]))
	}
	return fmt.Sprintf("Early Departure for %s:%s", utils.ShortDate(stats.Created, loc), strings.Join(groups, ","))
}

func (s *Store) save() error {
	return s.write(s.stats)
}

// write rewrites the whole file through a temporary sibling and a rename
func (s *Store) write(stats DelayStatistics) error {
	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return fmt.Errorf("encode stats: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("write stats: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write stats: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write stats: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write stats: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("write stats: %w", err)
	}
	return nil
}
