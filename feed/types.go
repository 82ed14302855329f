package feed

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ActivityMessageType is the msg_type code of train movement messages
const ActivityMessageType = 3

// DepartureEventType is the event_type of a departure movement
const DepartureEventType = "DEPARTURE"

// DepartureEvent is one departure reported by the feed. Actual is the zero
// time when the message carried no actual timestamp.
type DepartureEvent struct {
	TrainID  string
	Expected time.Time
	Actual   time.Time
}

// HasActual reports whether an actual departure time was present
func (e DepartureEvent) HasActual() bool {
	return !e.Actual.IsZero()
}

type envelope struct {
	Response []message `json:"Response"`
}

type message struct {
	Header header `json:"header"`
	Body   Fields `json:"body"`
}

type header struct {
	MsgType Value `json:"msg_type"`
}

// Field is a single key/value pair of a message body
type Field struct {
	Key   string
	Value Value
}

// Fields is a message body in document order
type Fields []Field

// Get returns the value of the first field named key
func (fs Fields) Get(key string) (Value, bool) {
	for _, f := range fs {
		if f.Key == key {
			return f.Value, true
		}
	}
	return Value{}, false
}

// UnmarshalJSON decodes a JSON object keeping its keys in document order
func (fs *Fields) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*fs = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return errors.New("message body is not an object")
	}
	var out Fields
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected body token %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("body field %q: %w", key, err)
		}
		out = append(out, Field{Key: key, Value: Value{raw: raw}})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*fs = out
	return nil
}

// Value is a scalar feed value; the feed sends numbers both bare and quoted
type Value struct {
	raw json.RawMessage
}

// UnmarshalJSON keeps the raw encoding for later interpretation
func (v *Value) UnmarshalJSON(data []byte) error {
	v.raw = append(json.RawMessage(nil), data...)
	return nil
}

// String returns the value as text. Strings are unquoted, numbers and other
// literals are returned as written, null is empty.
func (v Value) String() string {
	raw := bytes.TrimSpace(v.raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	return string(raw)
}

// Int parses the value as a base 10 integer
func (v Value) Int() (int, error) {
	return strconv.Atoi(v.String())
}
