package feed

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/theoremus-urban-solutions/trainearly/utils"
)

const (
	expectedKey  = "gbtt_timestamp"
	trainIDKey   = "train_id"
	eventTypeKey = "event_type"
	actualMarker = "act"
)

// ErrMissingExpected is returned for departures without a schedule timestamp
var ErrMissingExpected = errors.New("departure has no " + expectedKey)

// Decode converts one raw feed message into a departure event. A nil event
// with a nil error means the message is not a departure and should be skipped.
// An error means the message was malformed; it should be skipped as well.
func Decode(raw []byte) (*DepartureEvent, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode feed message: %w", err)
	}
	if len(env.Response) == 0 {
		return nil, nil
	}
	msg := env.Response[0]

	msgType, err := msg.Header.MsgType.Int()
	if err != nil || msgType != ActivityMessageType {
		return nil, nil
	}
	eventType, _ := msg.Body.Get(eventTypeKey)
	if !strings.EqualFold(eventType.String(), DepartureEventType) {
		return nil, nil
	}

	return decodeDeparture(msg.Body)
}

func decodeDeparture(body Fields) (*DepartureEvent, error) {
	expectedValue, ok := body.Get(expectedKey)
	if !ok || expectedValue.String() == "" {
		return nil, ErrMissingExpected
	}
	expected, err := utils.ParseUnixMillis(expectedValue.String())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", expectedKey, err)
	}

	trainID, _ := body.Get(trainIDKey)
	ev := &DepartureEvent{
		TrainID:  trainID.String(),
		Expected: expected,
	}

	if f, ok := actualField(body); ok {
		actual, err := utils.ParseUnixMillis(f.Value.String())
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Key, err)
		}
		ev.Actual = actual
	}
	return ev, nil
}

// actualField returns the first body field whose key contains "act"
func actualField(body Fields) (Field, bool) {
	for _, f := range body {
		if strings.Contains(f.Key, actualMarker) {
			return f, true
		}
	}
	return Field{}, false
}
