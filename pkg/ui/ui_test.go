package ui

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-go-golems/ragchat/pkg/api"
	"github.com/go-go-golems/ragchat/pkg/chat"
	"github.com/go-go-golems/ragchat/pkg/conversation"
	"github.com/go-go-golems/ragchat/pkg/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noTransport struct{}

func (noTransport) Conversation(ctx context.Context, request *api.ConversationRequest) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("")), nil
}

type feedbackRecorder struct {
	mu       sync.Mutex
	feedback []*api.Feedback
}

func (f *feedbackRecorder) SendFeedback(ctx context.Context, feedback *api.Feedback) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.feedback = append(f.feedback, feedback)
	return nil
}

var history = []conversation.Message{
	conversation.NewUserMessage("Where is Doc1?"),
	conversation.NewToolMessage(`{"citations":[{"title":"Doc1","filepath":"/docs/doc1.md"}]}`),
	conversation.NewAssistantMessage("See [doc1]."),
}

func newTestModel(t *testing.T, options Options, observers ...chat.Observer) model {
	c := chat.NewController(noTransport{},
		chat.WithConsent(settings.ConsentNo),
		chat.WithHistory(history),
		chat.WithObserver(observers...))
	options.GlamourStyle = "notty"
	m := InitialModel(c, options)
	m_, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return m_.(model)
}

func key_(s string) tea.KeyMsg {
	switch s {
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune(" ")}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(m model, keys ...string) model {
	for _, k := range keys {
		m_, _ := m.Update(key_(k))
		m = m_.(model)
	}
	return m
}

func TestInitialModelRendersHistory(t *testing.T) {
	m := newTestModel(t, Options{Title: "Docs", IndexDate: "2024-01-02"})

	assert.Equal(t, StateUserInput, m.state)
	assert.Equal(t, 2, m.selectedIdx)
	v := m.messageView()
	assert.Contains(t, v, "You: Where is Doc1?")
	assert.Contains(t, v, "[doc1] Doc1")
	assert.NotContains(t, v, "citations")
	assert.Contains(t, m.headerView(), "index updated 2024-01-02")
}

func TestStreamingUpdates(t *testing.T) {
	m := newTestModel(t, Options{})

	view := append(append([]conversation.Message{}, history...), conversation.NewUserMessage("And Doc2?"))
	m_, _ := m.Update(UpdateMsg{Update: chat.Update{Kind: chat.UpdateState, State: chat.StateSending, Log: view}})
	m = m_.(model)
	assert.Equal(t, StateStreamCompletion, m.state)
	assert.True(t, m.waitingFirst)
	assert.Contains(t, m.statusView(), "Generating answer")
	assert.True(t, m.keyMap.CancelCompletion.Enabled())
	assert.False(t, m.keyMap.SubmitMessage.Enabled())

	view = append(view, conversation.NewAssistantMessage("Doc2 is"))
	m_, _ = m.Update(UpdateMsg{Update: chat.Update{Kind: chat.UpdateFirstToken, State: chat.StateStreaming}})
	m = m_.(model)
	m_, _ = m.Update(UpdateMsg{Update: chat.Update{Kind: chat.UpdateLog, State: chat.StateStreaming, Log: view}})
	m = m_.(model)
	assert.False(t, m.waitingFirst)
	assert.Contains(t, m.messageView(), "Doc2 is")

	m_, _ = m.Update(UpdateMsg{Update: chat.Update{Kind: chat.UpdateState, State: chat.StateCompleted, Log: view}})
	m = m_.(model)
	assert.Equal(t, StateUserInput, m.state)
	assert.Equal(t, len(view)-1, m.selectedIdx)
	assert.Contains(t, m.status, "answered in")
}

func TestErrorMessagesAreShown(t *testing.T) {
	m := newTestModel(t, Options{})
	view := append(append([]conversation.Message{}, history...),
		conversation.NewUserMessage("q"),
		conversation.NewErrorMessage("Backend is down"))
	m_, _ := m.Update(UpdateMsg{Update: chat.Update{Kind: chat.UpdateState, State: chat.StateFailed, Log: view}})
	m = m_.(model)
	assert.Contains(t, m.messageView(), "Backend is down")
	assert.Equal(t, StateUserInput, m.state)
}

func TestMovingAroundAndRating(t *testing.T) {
	var mu sync.Mutex
	ratings := []chat.Update{}
	m := newTestModel(t, Options{}, chat.ObserverFunc(func(u chat.Update) {
		if u.Kind == chat.UpdateRating {
			mu.Lock()
			ratings = append(ratings, u)
			mu.Unlock()
		}
	}))

	m = press(m, "esc")
	require.Equal(t, StateMovingAround, m.state)
	assert.True(t, m.keyMap.Like.Enabled())

	msg := m.rate(chat.RatingLike)()
	require.NoError(t, msg.(ratedMsg).err)
	mu.Lock()
	require.Len(t, ratings, 1)
	assert.Equal(t, 2, ratings[0].Index)
	assert.Equal(t, "See [doc1].", ratings[0].Answer)
	mu.Unlock()

	m_, _ := m.Update(UpdateMsg{Update: ratings[0]})
	m = m_.(model)
	assert.Equal(t, chat.RatingLike, m.ratings[2])

	m = press(m, "enter")
	assert.Equal(t, StateUserInput, m.state)
}

func TestDislikeSendsFeedback(t *testing.T) {
	sender := &feedbackRecorder{}
	m := newTestModel(t, Options{Feedback: sender, InDomainOnly: true})

	m = press(m, "esc", "d")
	require.Equal(t, StateFeedback, m.state)
	require.NotNil(t, m.feedback)

	form := m.feedback
	m = press(m, "1", "tab", "5", "tab", " ", "tab", "tab", " ")
	assert.Equal(t, 1, form.responseQuality)
	assert.Equal(t, 5, form.documentQuality)
	assert.Equal(t, []bool{true, false, true}, form.reasons[:3])

	cmd := m.sendFeedback(form)
	require.NotNil(t, cmd)
	res := cmd().(feedbackSentMsg)
	require.NoError(t, res.err)

	require.Len(t, sender.feedback, 1)
	fb := sender.feedback[0]
	assert.Equal(t, "Where is Doc1?", *fb.Question)
	assert.Equal(t, "See [doc1].", *fb.Answer)
	assert.Equal(t, 1, *fb.OverallResponseQuality)
	assert.Equal(t, 5, *fb.OverallDocumentQuality)
	assert.True(t, *fb.InaccurateAnswer)
	assert.False(t, *fb.MissingInfo)
	assert.True(t, *fb.TooLong)
	assert.True(t, *fb.InDomain)
	assert.Equal(t, []api.DocFeedback{{Title: "Doc1", Filepath: "/docs/doc1.md"}}, fb.TopDocs)

	m = press(m, "esc")
	assert.Equal(t, StateMovingAround, m.state)
	assert.Nil(t, m.feedback)
}

func TestFeedbackFormClampsRatings(t *testing.T) {
	f := newFeedbackForm(2)
	for i := 0; i < 4; i++ {
		f.Update(tea.KeyMsg{Type: tea.KeyRight})
	}
	assert.Equal(t, 5, f.responseQuality)
	f.Update(key_("tab"))
	for i := 0; i < 4; i++ {
		f.Update(tea.KeyMsg{Type: tea.KeyLeft})
	}
	assert.Equal(t, 1, f.documentQuality)

	res, _ := f.Update(key_("enter"))
	assert.Equal(t, feedbackSubmitted, res)
	res, _ = f.Update(key_("esc"))
	assert.Equal(t, feedbackDismissed, res)
}

func TestPromptConsent(t *testing.T) {
	out := &bytes.Buffer{}
	c, err := NewPrompt(strings.NewReader("yes\n"), out).AskConsent()
	require.NoError(t, err)
	assert.Equal(t, settings.ConsentYes, c)
	assert.Contains(t, out.String(), "recorded")

	c, err = NewPrompt(strings.NewReader("n\n"), io.Discard).AskConsent()
	require.NoError(t, err)
	assert.Equal(t, settings.ConsentNo, c)
}

func TestPromptYesNo(t *testing.T) {
	ok, err := NewPrompt(strings.NewReader("y\n"), io.Discard).AskYesNo("continue?", false)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = NewPrompt(strings.NewReader("no\n"), io.Discard).AskYesNo("continue?", true)
	require.NoError(t, err)
	assert.False(t, ok)
}
