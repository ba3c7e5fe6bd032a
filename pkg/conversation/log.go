package conversation

import (
	"sync"

	"github.com/huandu/go-clone"
)

// Log is the session-scoped, ordered conversation log.
//
// It has a single writer (the turn controller) and any number of readers.
// Readers get copies and must tolerate the log changing between two reads.
type Log struct {
	mu       sync.RWMutex
	messages []Message
	version  uint64
}

func NewLog(messages ...Message) *Log {
	l := &Log{}
	if len(messages) > 0 {
		l.messages = append([]Message{}, messages...)
	}
	return l
}

// Snapshot returns a deep copy of the current messages.
func (l *Log) Snapshot() []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.messages) == 0 {
		return []Message{}
	}
	return clone.Clone(l.messages).([]Message)
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.messages)
}

func (l *Log) At(index int) (Message, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if index < 0 || index >= len(l.messages) {
		return Message{}, false
	}
	return l.messages[index], true
}

// Version increases every time the log is replaced.
func (l *Log) Version() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.version
}

// Replace publishes a new full view of the log.
func (l *Log) Replace(messages []Message) {
	cp := append([]Message{}, messages...)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = cp
	l.version++
}

func (l *Log) Clear() {
	l.Replace(nil)
}

// CitationSource returns the tool message that carries the citations of the
// assistant message at index.
func (l *Log) CitationSource(index int) (Message, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return PrecedingToolMessage(l.messages, index)
}

// PrecedingToolMessage implements the positional contract of the backend
// protocol: the citations of an assistant message live in the tool message
// directly before it. There is no explicit reference between the two.
func PrecedingToolMessage(messages []Message, index int) (Message, bool) {
	if index <= 0 || index >= len(messages) {
		return Message{}, false
	}
	if messages[index].Role != RoleAssistant {
		return Message{}, false
	}
	prev := messages[index-1]
	if prev.Role != RoleTool {
		return Message{}, false
	}
	return prev, true
}
