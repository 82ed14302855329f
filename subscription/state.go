package subscription

// State is the lifecycle position of a Subscription
type State int

const (
	Idle State = iota
	Connecting
	Subscribed
	Disconnected
	Closing
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Subscribed:
		return "subscribed"
	case Disconnected:
		return "disconnected"
	case Closing:
		return "closing"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}
