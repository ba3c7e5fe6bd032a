package chat

// State is the lifecycle state of a turn.
type State int

const (
	StateIdle State = iota
	StateSending
	StateStreaming
	StateCompleted
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// IsLoading reports whether the loading indicator is shown in this state.
func (s State) IsLoading() bool {
	return s == StateSending || s == StateStreaming
}

type Rating string

const (
	RatingLike    Rating = "like"
	RatingDislike Rating = "dislike"
)
