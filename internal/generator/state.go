package generator

// State is a generator lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateInitializing
	StateRendering
	StatePackaging
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInitializing:
		return "initializing"
	case StateRendering:
		return "rendering"
	case StatePackaging:
		return "packaging"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}
