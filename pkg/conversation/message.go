package conversation

import (
	"fmt"
	"strings"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	// RoleTool messages carry serialized citation metadata and are never shown directly.
	RoleTool Role = "tool"
	// RoleError messages are synthesized client-side when a turn fails.
	RoleError Role = "error"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleTool, RoleError:
		return true
	default:
		return false
	}
}

// Message is one entry of the conversation log, and also the wire shape of the
// messages exchanged with the backend.
type Message struct {
	Role    Role   `json:"role" yaml:"role"`
	Content string `json:"content" yaml:"content"`
}

func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

func NewToolMessage(content string) Message {
	return Message{Role: RoleTool, Content: content}
}

func NewErrorMessage(content string) Message {
	return Message{Role: RoleError, Content: content}
}

func (m Message) String() string {
	return m.Content
}

func (m Message) View() string {
	return fmt.Sprintf("[%s]: %s", m.Role, strings.TrimRight(m.Content, "\n"))
}

// FilterRole returns the messages with the given role, in order.
func FilterRole(messages []Message, role Role) []Message {
	ret := []Message{}
	for _, m := range messages {
		if m.Role == role {
			ret = append(ret, m)
		}
	}
	return ret
}

// LastIndexOfRole returns the index of the last message with the given role, or -1.
func LastIndexOfRole(messages []Message, role Role) int {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == role {
			return i
		}
	}
	return -1
}

// RequestHistory is the history sent to the backend for a new question:
// every logged message except error entries, followed by the new user message.
func RequestHistory(log []Message, user Message) []Message {
	ret := make([]Message, 0, len(log)+1)
	for _, m := range log {
		if m.Role == RoleError {
			continue
		}
		ret = append(ret, m)
	}
	return append(ret, user)
}
