package realtime

// State is the connection snapshot. Connecting and Connected never hold
// together, and Joined implies Connected.
type State struct {
	Connected  bool
	Connecting bool
	Joined     bool
	// Error describes why the latest attempt or session failed. It is
	// cleared when a new attempt starts.
	Error string
}

type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
	StatusJoined
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusJoined:
		return "joined"
	default:
		return "disconnected"
	}
}

func (s State) Status() Status {
	switch {
	case s.Connecting:
		return StatusConnecting
	case s.Joined:
		return StatusJoined
	case s.Connected:
		return StatusConnected
	default:
		return StatusDisconnected
	}
}
