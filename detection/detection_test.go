package detection

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/theoremus-urban-solutions/trainearly/enrichment"
	"github.com/theoremus-urban-solutions/trainearly/feed"
)

var expected = time.Date(2024, 3, 7, 8, 30, 0, 0, time.UTC)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name    string
		actual  time.Time
		early   bool
		minutes int
	}{
		{name: "seven minutes early", actual: expected.Add(-7 * time.Minute), early: true, minutes: 7},
		{name: "partial minute truncates", actual: expected.Add(-(2*time.Minute + 59*time.Second)), early: true, minutes: 2},
		{name: "under a minute", actual: expected.Add(-30 * time.Second), early: true, minutes: 0},
		{name: "on time", actual: expected, early: false},
		{name: "late", actual: expected.Add(3 * time.Minute), early: false},
		{name: "no actual", actual: time.Time{}, early: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ed, ok := Evaluate(feed.DepartureEvent{TrainID: "1", Expected: expected, Actual: tt.actual})
			assert.Equal(t, tt.early, ok)
			if !tt.early {
				assert.Equal(t, EarlyDeparture{}, ed)
				return
			}
			assert.Equal(t, tt.minutes, ed.MinutesEarly)
			assert.GreaterOrEqual(t, ed.MinutesEarly, 0)
			assert.Equal(t, "1", ed.TrainID)
		})
	}
}

func TestComposer_Generic(t *testing.T) {
	c := Composer{BaseURL: "https://trainnotifier.example.com/train/"}
	ed := EarlyDeparture{TrainID: "872B26MA07", Expected: expected, Actual: expected.Add(-7 * time.Minute), MinutesEarly: 7}

	text := c.Compose(ed, nil)

	assert.Equal(t, "Train 872B26MA07 expected to depart at 08:30:00 actual departure 08:23:00 - https://trainnotifier.example.com/train/872B26MA07", text)
	assert.Equal(t, 2, strings.Count(text, "872B26MA07"))
}

func TestComposer_Enriched(t *testing.T) {
	c := Composer{BaseURL: "https://trainnotifier.example.com/train/"}
	ed := EarlyDeparture{TrainID: "872B26MA07", Expected: expected, Actual: expected.Add(-4 * time.Minute), MinutesEarly: 4}
	route := &enrichment.RouteDetails{
		Headcode:              "2B26",
		TrainUID:              "C12345",
		OriginName:            "Birmingham New Street",
		OriginCRS:             "BHM",
		DestinationName:       "London Euston",
		DestinationCRS:        "EUS",
		OriginDepartTimestamp: time.Date(2024, 3, 7, 7, 15, 0, 0, time.UTC),
	}

	assert.Equal(t,
		"2B26 from Birmingham New Street(BHM) to London Euston(EUS) expected to depart 08:30:00, actual 08:26:00 https://trainnotifier.example.com/train/C12345/2024/03/07",
		c.Compose(ed, route))
}

func TestComposer_Location(t *testing.T) {
	c := Composer{BaseURL: "u/", Location: time.FixedZone("BST", 60*60)}
	ed := EarlyDeparture{TrainID: "X", Expected: expected, Actual: expected.Add(-time.Minute)}

	assert.Contains(t, c.Generic(ed), "at 09:30:00 actual departure 09:29:00")
}
