// Package detection decides whether a departure left early and composes the
// notification text for it. Everything here is free of side effects.
package detection

import (
	"fmt"
	"time"

	"github.com/theoremus-urban-solutions/trainearly/enrichment"
	"github.com/theoremus-urban-solutions/trainearly/feed"
	"github.com/theoremus-urban-solutions/trainearly/utils"
)

// EarlyDeparture is a departure that happened before its published time
type EarlyDeparture struct {
	TrainID      string
	Expected     time.Time
	Actual       time.Time
	MinutesEarly int
}

// Evaluate reports whether ev departed early. Events without an actual time
// never qualify.
func Evaluate(ev feed.DepartureEvent) (EarlyDeparture, bool) {
	if !ev.HasActual() || !ev.Actual.Before(ev.Expected) {
		return EarlyDeparture{}, false
	}
	return EarlyDeparture{
		TrainID:      ev.TrainID,
		Expected:     ev.Expected,
		Actual:       ev.Actual,
		MinutesEarly: int(ev.Expected.Sub(ev.Actual) / time.Minute),
	}, true
}

// Composer builds notification text. BaseURL is the link prefix the train
// reference is appended to; Location controls how times are displayed.
type Composer struct {
	BaseURL  string
	Location *time.Location
}

func (c Composer) location() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

// Compose returns the enriched text when route is non-nil, the generic text otherwise
func (c Composer) Compose(ed EarlyDeparture, route *enrichment.RouteDetails) string {
	if route == nil {
		return c.Generic(ed)
	}
	return c.Enriched(ed, *route)
}

// Generic describes ed using only the feed train id
func (c Composer) Generic(ed EarlyDeparture) string {
	loc := c.location()
	return fmt.Sprintf("Train %s expected to depart at %s actual departure %s - %s%s",
		ed.TrainID,
		utils.ClockTime(ed.Expected, loc),
		utils.ClockTime(ed.Actual, loc),
		c.BaseURL,
		ed.TrainID)
}

// Enriched describes ed with its route and links to the scheduled journey
func (c Composer) Enriched(ed EarlyDeparture, route enrichment.RouteDetails) string {
	loc := c.location()
	return fmt.Sprintf("%s from %s(%s) to %s(%s) expected to depart %s, actual %s %s%s/%s",
		route.Headcode,
		route.OriginName,
		route.OriginCRS,
		route.DestinationName,
		route.DestinationCRS,
		utils.ClockTime(ed.Expected, loc),
		utils.ClockTime(ed.Actual, loc),
		c.BaseURL,
		route.TrainUID,
		utils.SlashDate(route.OriginDepartTimestamp, loc))
}
