package supervisor

// State is the supervisor's view of the database connection.
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
	Reconnecting
	ShuttingDown
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	case ShuttingDown:
		return "shutting_down"
	default:
		return "unknown"
	}
}

// States lists every state in declaration order.
var States = []State{Disconnected, Connecting, Connected, Reconnecting, ShuttingDown}

// Hooks receives supervisor events. Nil fields are skipped. Hooks run on the
// supervisor's goroutines and must not block.
type Hooks struct {
	StateChanged    func(from, to State)
	ConnectAttempt  func(err error)
	HeartbeatFailed func(err error)
	Reconnected     func(err error)
}
