// Package chat runs conversation turns against the backend and owns the
// conversation log.
package chat

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/go-go-golems/ragchat/pkg/api"
	"github.com/go-go-golems/ragchat/pkg/assembler"
	"github.com/go-go-golems/ragchat/pkg/citations"
	"github.com/go-go-golems/ragchat/pkg/conversation"
	"github.com/go-go-golems/ragchat/pkg/settings"
	"github.com/go-go-golems/ragchat/pkg/stream"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var (
	ErrEmptyQuestion      = errors.New("question is empty")
	ErrConsentRequired    = errors.New("a consent choice is required before asking")
	ErrNoAssistantMessage = errors.New("no assistant message at this position")
	ErrTurnInProgress     = errors.New("a turn is in progress")
)

// Transport opens the response stream of a conversation request. Cancelling
// ctx must make reads from the returned body fail.
type Transport interface {
	Conversation(ctx context.Context, request *api.ConversationRequest) (io.ReadCloser, error)
}

var _ Transport = (*api.Client)(nil)

// Controller is the only writer of the conversation log.
//
// Every log mutation happens under mu after checking that the turn making it
// has not been cancelled, so a chunk racing a cancellation is dropped.
type Controller struct {
	transport    Transport
	log          *conversation.Log
	footer       *assembler.Footer
	inDomainOnly bool

	mu      sync.Mutex
	pending []*Turn
	consent settings.Consent
	userID  string

	observersMu sync.RWMutex
	observers   []Observer
}

type Option func(*Controller)

func WithFooter(f *assembler.Footer) Option {
	return func(c *Controller) {
		c.footer = f
	}
}

func WithInDomainOnly(b bool) Option {
	return func(c *Controller) {
		c.inDomainOnly = b
	}
}

func WithConsent(consent settings.Consent) Option {
	return func(c *Controller) {
		c.consent = consent
	}
}

func WithUserID(id string) Option {
	return func(c *Controller) {
		c.userID = id
	}
}

func WithObserver(o ...Observer) Option {
	return func(c *Controller) {
		c.observers = append(c.observers, o...)
	}
}

// WithHistory starts the session from a previously saved log.
func WithHistory(messages []conversation.Message) Option {
	return func(c *Controller) {
		c.log.Replace(messages)
	}
}

func NewController(transport Transport, options ...Option) *Controller {
	c := &Controller{
		transport: transport,
		log:       conversation.NewLog(),
	}
	for _, o := range options {
		o(c)
	}
	if c.footer == nil {
		c.footer = assembler.MustDefaultFooter()
	}
	return c
}

func (c *Controller) AddObserver(o Observer) {
	c.observersMu.Lock()
	defer c.observersMu.Unlock()
	c.observers = append(c.observers, o)
}

func (c *Controller) SetConsent(consent settings.Consent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.consent = consent
}

func (c *Controller) Consent() settings.Consent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.consent
}

func (c *Controller) SetUserID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userID = id
}

// Log returns a copy of the conversation log.
func (c *Controller) Log() []conversation.Message {
	return c.log.Snapshot()
}

// Loading reports whether any turn is still sending or streaming.
func (c *Controller) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending) > 0
}

// WaitingFirstToken reports whether the newest live turn has not received
// any envelope yet.
func (c *Controller) WaitingFirstToken() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending) > 0 && !c.pending[0].firstToken
}

// Pending returns the live turns, newest first.
func (c *Controller) Pending() []*Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Turn{}, c.pending...)
}

// Submit starts a turn for question and returns without waiting for the
// answer. No turn is created if the question is blank or no consent choice
// was made.
func (c *Controller) Submit(ctx context.Context, question string) (*Turn, error) {
	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyQuestion
	}

	c.mu.Lock()
	if !c.consent.IsSet() {
		c.mu.Unlock()
		return nil, ErrConsentRequired
	}

	ctx, cancel := context.WithCancel(ctx)
	t := &Turn{
		ID:       uuid.New(),
		Question: question,
		Started:  time.Now(),
		c:        c,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		state:    StateSending,
	}
	c.pending = append([]*Turn{t}, c.pending...)

	prior := c.log.Snapshot()
	user := conversation.NewUserMessage(question)
	a := assembler.New(prior, user, assembler.WithFooter(c.footer))
	view := a.Pending()
	c.log.Replace(view)
	c.mu.Unlock()

	log.Debug().Str("turn", t.ID.String()).Int("history", len(prior)).Msg("turn submitted")

	u := c.update(t, UpdateState, StateSending)
	u.Log = view
	c.notify(u)

	request := &api.ConversationRequest{
		Messages: conversation.RequestHistory(prior, user),
		Settings: api.RequestSettings{InDomainOnly: c.inDomainOnly},
	}
	go c.run(t, a, request)

	return t, nil
}

// Ask submits question and waits for the turn to end. The returned error is
// the validation error, the turn failure, or context.Canceled.
func (c *Controller) Ask(ctx context.Context, question string) (*Result, error) {
	t, err := c.Submit(ctx, question)
	if err != nil {
		return nil, err
	}
	res := t.Wait()
	return res, res.Err
}

// CancelAll cancels every live turn.
func (c *Controller) CancelAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range c.pending {
		t.cancel()
	}
}

// Clear empties the log. It is refused while a turn is live.
func (c *Controller) Clear() error {
	c.mu.Lock()
	if len(c.pending) > 0 {
		c.mu.Unlock()
		return ErrTurnInProgress
	}
	c.log.Clear()
	c.mu.Unlock()

	u := c.update(nil, UpdateClear, StateIdle)
	u.Log = []conversation.Message{}
	c.notify(u)
	return nil
}

// Rate records a like or dislike for the assistant message at index.
func (c *Controller) Rate(index int, rating Rating) error {
	messages := c.log.Snapshot()
	if index < 0 || index >= len(messages) || messages[index].Role != conversation.RoleAssistant {
		return errors.Wrapf(ErrNoAssistantMessage, "index %d", index)
	}

	u := c.update(nil, UpdateRating, StateIdle)
	u.Rating = rating
	u.Index = index
	u.Question = QuestionFor(messages, index)
	u.Answer = messages[index].Content
	u.Citations = citations.ForMessage(messages, index)
	u.Log = messages
	c.notify(u)
	return nil
}

// QuestionFor returns the user message the assistant message at index answers.
func QuestionFor(messages []conversation.Message, index int) string {
	if index > len(messages) {
		index = len(messages)
	}
	idx := conversation.LastIndexOfRole(messages[:index], conversation.RoleUser)
	if idx < 0 {
		return ""
	}
	return messages[idx].Content
}

func (c *Controller) run(t *Turn, a *assembler.Assembler, request *api.ConversationRequest) {
	defer close(t.done)
	defer t.cancel()

	body, err := c.transport.Conversation(t.ctx, request)
	if err != nil {
		c.fail(t, a, err)
		return
	}
	defer func() {
		_ = body.Close()
	}()
	stop := context.AfterFunc(t.ctx, func() {
		_ = body.Close()
	})
	defer stop()

	if !c.transition(t, StateStreaming) {
		c.finishCancelled(t, "")
		return
	}

	d := stream.NewDecoder(body)
	for {
		e, err := d.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			c.fail(t, a, errors.Wrap(err, "could not read response stream"))
			return
		}

		committed := a.Answer()
		view := a.Apply(e)
		first, ok := c.commit(t, view)
		if !ok {
			c.finishCancelled(t, committed)
			return
		}
		if first {
			c.notify(c.update(t, UpdateFirstToken, StateStreaming))
		}
		u := c.update(t, UpdateLog, StateStreaming)
		u.Log = view
		u.Answer = a.Answer()
		u.Envelopes = a.Applied()
		c.notify(u)
	}

	res, err := a.Finalize()
	if err != nil {
		c.fail(t, a, err)
		return
	}
	if _, ok := c.commit(t, res.Log); !ok {
		c.finishCancelled(t, a.Answer())
		return
	}

	u := c.update(t, UpdateLog, StateStreaming)
	u.Final = true
	u.Log = res.Log
	u.Answer = res.Answer.Content
	u.Citations = res.Citations
	u.Envelopes = a.Applied()
	c.notify(u)

	c.finish(t, &Result{
		TurnID:    t.ID,
		State:     StateCompleted,
		Log:       res.Log,
		Answer:    res.Answer.Content,
		Citations: res.Citations,
	}, func(u *Update) {
		u.Answer = res.Answer.Content
		u.Citations = res.Citations
		u.Envelopes = a.Applied()
	})
}

// commit publishes messages as the log unless t was cancelled. first is true
// for the first commit of a streamed envelope of t.
func (c *Controller) commit(t *Turn, messages []conversation.Message) (first bool, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.ctx.Err() != nil {
		log.Debug().Str("turn", t.ID.String()).Msg("dropping update of cancelled turn")
		return false, false
	}
	c.log.Replace(messages)
	if t.state == StateStreaming && !t.firstToken {
		t.firstToken = true
		return true, true
	}
	return false, true
}

func (c *Controller) transition(t *Turn, s State) bool {
	c.mu.Lock()
	if t.ctx.Err() != nil {
		c.mu.Unlock()
		return false
	}
	t.state = s
	c.mu.Unlock()

	c.notify(c.update(t, UpdateState, s))
	return true
}

// fail replaces the working answer with a single error message.
func (c *Controller) fail(t *Turn, a *assembler.Assembler, err error) {
	if t.ctx.Err() != nil {
		c.finishCancelled(t, a.Answer())
		return
	}

	text := assembler.UserFacingText(err)
	if text == assembler.GenericErrorText && a.ErrorText() != "" {
		text = a.ErrorText()
	}
	messages := append(a.Pending(), conversation.NewErrorMessage(text))
	if _, ok := c.commit(t, messages); !ok {
		c.finishCancelled(t, a.Answer())
		return
	}

	log.Warn().Err(err).Str("turn", t.ID.String()).Msg("turn failed")

	u := c.update(t, UpdateLog, t.State())
	u.Log = messages
	c.notify(u)

	c.finish(t, &Result{
		TurnID: t.ID,
		State:  StateFailed,
		Log:    messages,
		Err:    err,
	}, func(u *Update) {
		u.Err = err
		u.ErrorText = text
		u.Envelopes = a.Applied()
		u.Answer = a.Answer()
		u.Citations = workingCitations(a)
	})
}

// workingCitations returns the citations of the partial answer of a.
func workingCitations(a *assembler.Assembler) []citations.Citation {
	working := a.Working()
	return citations.ForMessage(working, conversation.LastIndexOfRole(working, conversation.RoleAssistant))
}

// finishCancelled ends t as cancelled. answer is the last answer that was
// committed to the log before the cancellation.
func (c *Controller) finishCancelled(t *Turn, answer string) {
	log.Debug().Str("turn", t.ID.String()).Msg("turn cancelled")
	c.finish(t, &Result{
		TurnID: t.ID,
		State:  StateCancelled,
		Log:    c.log.Snapshot(),
		Err:    context.Canceled,
	}, func(u *Update) {
		u.Answer = answer
	})
}

func (c *Controller) finish(t *Turn, res *Result, decorate func(u *Update)) {
	c.mu.Lock()
	t.state = res.State
	t.result = res
	for i, p := range c.pending {
		if p == t {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			break
		}
	}
	c.mu.Unlock()

	u := c.update(t, UpdateState, res.State)
	u.Log = res.Log
	if decorate != nil {
		decorate(&u)
	}
	c.notify(u)
}

func (c *Controller) update(t *Turn, kind UpdateKind, s State) Update {
	c.mu.Lock()
	u := Update{
		Kind:    kind,
		State:   s,
		Consent: c.consent,
		UserID:  c.userID,
		At:      time.Now(),
	}
	c.mu.Unlock()
	if t != nil {
		u.TurnID = t.ID
		u.Question = t.Question
		u.Started = t.Started
	}
	return u
}

func (c *Controller) notify(u Update) {
	c.observersMu.RLock()
	observers := append([]Observer{}, c.observers...)
	c.observersMu.RUnlock()

	for _, o := range observers {
		notifyOne(o, u)
	}
}

func notifyOne(o Observer, u Update) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("kind", string(u.Kind)).Msg("observer panicked")
		}
	}()
	o.OnUpdate(u)
}
