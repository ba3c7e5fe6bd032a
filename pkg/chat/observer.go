package chat

import (
	"time"

	"github.com/go-go-golems/ragchat/pkg/citations"
	"github.com/go-go-golems/ragchat/pkg/conversation"
	"github.com/go-go-golems/ragchat/pkg/settings"
	"github.com/google/uuid"
)

type UpdateKind string

const (
	// UpdateState is sent on every state transition of a turn.
	UpdateState UpdateKind = "state"
	// UpdateFirstToken is sent once per turn, when its first envelope is applied.
	UpdateFirstToken UpdateKind = "first-token"
	// UpdateLog is sent every time the log is republished.
	UpdateLog    UpdateKind = "log"
	UpdateRating UpdateKind = "rating"
	UpdateClear  UpdateKind = "clear"
)

// Update is what observers of a controller receive. Log is a copy that
// observers may keep.
type Update struct {
	Kind     UpdateKind
	TurnID   uuid.UUID
	State    State
	Question string
	Log      []conversation.Message
	// Answer is the content of the last assistant message of the turn so far.
	Answer    string
	Citations []citations.Citation
	Err       error
	// ErrorText is the text of the error message appended on failure.
	ErrorText string
	Envelopes int
	// Final is set on the log update that commits the finalized answer.
	Final  bool
	Rating Rating
	// Index is the log position of the rated message.
	Index   int
	Consent settings.Consent
	UserID  string
	Started time.Time
	At      time.Time
}

func (u Update) Elapsed() time.Duration {
	if u.Started.IsZero() {
		return 0
	}
	return u.At.Sub(u.Started)
}

type Observer interface {
	OnUpdate(u Update)
}

type ObserverFunc func(u Update)

func (f ObserverFunc) OnUpdate(u Update) {
	f(u)
}
