package gtfsrt

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/encoding/prototext"
	"google.golang.org/protobuf/proto"

	"github.com/theoremus-urban-solutions/trainearly/detection"
)

// Recorder keeps the early departures of the current day
type Recorder struct {
	mu         sync.RWMutex
	stopID     string
	loc        *time.Location
	departures []detection.EarlyDeparture
	tripIDs    []string
	updated    time.Time
}

// NewRecorder creates an empty recorder whose updates refer to stopID. Start
// dates are calendar days in loc; now stamps the empty feed.
func NewRecorder(stopID string, loc *time.Location, now time.Time) *Recorder {
	if loc == nil {
		loc = time.UTC
	}
	return &Recorder{stopID: stopID, loc: loc, updated: now}
}

// Add records one detection. tripID identifies the journey in the exported
// feed, falling back to the feed train id when empty.
func (r *Recorder) Add(ed detection.EarlyDeparture, tripID string, now time.Time) {
	if tripID == "" {
		tripID = ed.TrainID
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.departures = append(r.departures, ed)
	r.tripIDs = append(r.tripIDs, tripID)
	r.updated = now
}

// Reset discards all recorded departures
func (r *Recorder) Reset(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.departures = nil
	r.tripIDs = nil
	r.updated = now
}

// Len returns the number of recorded departures
func (r *Recorder) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.departures)
}

// FeedMessage renders the recorded departures as a full dataset
func (r *Recorder) FeedMessage() *gtfsrtpb.FeedMessage {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entities := make([]*gtfsrtpb.FeedEntity, 0, len(r.departures))
	for i, ed := range r.departures {
		tripID := r.tripIDs[i]
		delay := int32(ed.Actual.Sub(ed.Expected) / time.Second)
		entities = append(entities, &gtfsrtpb.FeedEntity{
			Id: proto.String(entityID(ed)),
			TripUpdate: &gtfsrtpb.TripUpdate{
				Trip: &gtfsrtpb.TripDescriptor{
					TripId:    proto.String(tripID),
					StartDate: proto.String(ed.Expected.In(r.loc).Format("20060102")),
				},
				StopTimeUpdate: []*gtfsrtpb.TripUpdate_StopTimeUpdate{{
					StopId: proto.String(r.stopID),
					Departure: &gtfsrtpb.TripUpdate_StopTimeEvent{
						Time:  proto.Int64(ed.Actual.Unix()),
						Delay: proto.Int32(delay),
					},
				}},
				Timestamp: proto.Uint64(uint64(ed.Actual.Unix())),
			},
		})
	}

	return &gtfsrtpb.FeedMessage{
		Header: &gtfsrtpb.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
			Incrementality:      gtfsrtpb.FeedHeader_FULL_DATASET.Enum(),
			Timestamp:           proto.Uint64(headerTimestamp(r.updated)),
		},
		Entity: entities,
	}
}

// Marshal encodes the feed as protobuf, or as prototext when humanReadable is set
func (r *Recorder) Marshal(humanReadable bool) ([]byte, error) {
	m := r.FeedMessage()
	var data []byte
	var err error
	if humanReadable {
		data, err = prototext.MarshalOptions{Multiline: true}.Marshal(m)
	} else {
		data, err = proto.Marshal(m)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to marshal feed: %w", err)
	}
	return data, nil
}

func entityID(ed detection.EarlyDeparture) string {
	return ed.TrainID + ":" + strconv.FormatInt(ed.Expected.Unix(), 10)
}

func headerTimestamp(t time.Time) uint64 {
	if t.IsZero() || t.Unix() < 0 {
		return 0
	}
	return uint64(t.Unix())
}
