package history

// State is the guard state of a History.
type State int32

const (
	// StateIdle accepts both captures and navigations.
	StateIdle State = iota

	// StateCapturing is held while a snapshot is being encoded and pushed.
	StateCapturing

	// StateNavigating is held from the start of an undo or redo until the
	// tool reset callback has returned. Captures are rejected.
	StateNavigating
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCapturing:
		return "capturing"
	case StateNavigating:
		return "navigating"
	default:
		return "unknown"
	}
}

// Direction is the direction of a navigation.
type Direction int

const (
	// DirectionUndo moves back in history.
	DirectionUndo Direction = iota
	// DirectionRedo moves forward in history.
	DirectionRedo
)

// String returns "undo" or "redo".
func (d Direction) String() string {
	if d == DirectionRedo {
		return "redo"
	}
	return "undo"
}

// Navigation outcomes passed to Observer.ObserveNavigation.
const (
	OutcomeOK     = "ok"
	OutcomeFailed = "failed"
)
