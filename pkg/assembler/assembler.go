// Package assembler merges decoded envelopes into the conversation log.
//
// Envelopes are snapshots of the whole answer so far. Applying an envelope
// replaces the working answer, it never appends to it.
package assembler

import (
	"github.com/go-go-golems/ragchat/pkg/api"
	"github.com/go-go-golems/ragchat/pkg/citations"
	"github.com/go-go-golems/ragchat/pkg/conversation"
	"github.com/rs/zerolog/log"
)

type Assembler struct {
	prior     []conversation.Message
	user      conversation.Message
	footer    *Footer
	working   []conversation.Message
	last      *api.Envelope
	errorText string
	applied   int
}

type Option func(*Assembler)

func WithFooter(f *Footer) Option {
	return func(a *Assembler) {
		a.footer = f
	}
}

// New starts assembling the answer to user on top of prior. prior is not modified.
func New(prior []conversation.Message, user conversation.Message, options ...Option) *Assembler {
	a := &Assembler{
		prior: append([]conversation.Message{}, prior...),
		user:  user,
	}
	for _, o := range options {
		o(a)
	}
	if a.footer == nil {
		a.footer = MustDefaultFooter()
	}
	return a
}

// Apply makes e the working answer and returns the log view to publish.
func (a *Assembler) Apply(e *api.Envelope) []conversation.Message {
	a.last = e
	a.applied++
	a.working = append([]conversation.Message{}, e.Messages()...)
	if t := e.ErrorText(); t != "" {
		a.errorText = t
	}
	return a.view(a.working)
}

func (a *Assembler) Applied() int {
	return a.applied
}

// Working returns the messages of the latest envelope.
func (a *Assembler) Working() []conversation.Message {
	return append([]conversation.Message{}, a.working...)
}

// Answer returns the content of the last assistant message so far.
func (a *Assembler) Answer() string {
	idx := conversation.LastIndexOfRole(a.working, conversation.RoleAssistant)
	if idx < 0 {
		return ""
	}
	return a.working[idx].Content
}

// ErrorText returns the most recent error text sent by the server.
func (a *Assembler) ErrorText() string {
	return a.errorText
}

// Pending returns the log with only the user message appended, the state of
// a turn before its first envelope.
func (a *Assembler) Pending() []conversation.Message {
	return a.view(nil)
}

func (a *Assembler) view(answer []conversation.Message) []conversation.Message {
	ret := make([]conversation.Message, 0, len(a.prior)+1+len(answer))
	ret = append(ret, a.prior...)
	ret = append(ret, a.user)
	return append(ret, answer...)
}

type Result struct {
	Log []conversation.Message
	// AnswerIndex is the position of the canonical answer in Log.
	AnswerIndex int
	Answer      conversation.Message
	Citations   []citations.Citation
}

// Finalize turns the last applied envelope into the committed log. It fails
// with an EmptyResponseError if that envelope has no assistant message.
func (a *Assembler) Finalize() (*Result, error) {
	messages := append([]conversation.Message{}, a.working...)

	idx := conversation.LastIndexOfRole(messages, conversation.RoleAssistant)
	if a.last == nil || idx < 0 {
		return nil, &EmptyResponseError{ServerText: a.errorText}
	}

	content, err := a.footer.Augment(messages[idx].Content, a.user.Content)
	if err != nil {
		log.Warn().Err(err).Msg("could not render footer, leaving answer as is")
	} else {
		messages[idx].Content = content
	}

	cs := []citations.Citation{}
	if tidx := conversation.LastIndexOfRole(messages, conversation.RoleTool); tidx >= 0 {
		cs = citations.Extract(messages[tidx].Content)
	}

	full := a.view(messages)
	return &Result{
		Log:         full,
		AnswerIndex: len(a.prior) + 1 + idx,
		Answer:      messages[idx],
		Citations:   cs,
	}, nil
}
