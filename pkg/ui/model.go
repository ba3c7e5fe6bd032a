package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/ragchat/pkg/api"
	"github.com/go-go-golems/ragchat/pkg/chat"
	"github.com/go-go-golems/ragchat/pkg/citations"
	"github.com/go-go-golems/ragchat/pkg/conversation"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// states:
// - user input
// - user moving around answers
// - answer streaming in
// - filling in feedback for a disliked answer
// - showing error
type State string

const (
	StateUserInput        State = "user_input"
	StateMovingAround     State = "moving_around"
	StateStreamCompletion State = "stream_completion"
	StateFeedback         State = "feedback"
	StateError            State = "error"
)

// FeedbackSender delivers the detailed feedback of a disliked answer.
type FeedbackSender interface {
	SendFeedback(ctx context.Context, feedback *api.Feedback) error
}

type Options struct {
	Title string
	// IndexDate is when the search index was last refreshed, shown in the header.
	IndexDate    string
	Feedback     FeedbackSender
	InDomainOnly bool
	// SavePath is where the transcript is written on ctrl+s. Saving is
	// disabled when empty.
	SavePath string
	// GlamourStyle is a glamour standard style name, "auto" by default.
	GlamourStyle string
}

type model struct {
	controller *chat.Controller
	options    Options

	viewport viewport.Model
	textArea textarea.Model
	spinner  spinner.Model
	help     help.Model
	renderer *glamour.TermRenderer

	keyMap KeyMap
	style  *Style
	width  int
	height int

	messages []conversation.Message
	// log index of the selected assistant message, -1 if none
	selectedIdx  int
	ratings      map[int]chat.Rating
	feedback     *feedbackForm
	waitingFirst bool
	status       string
	err          error

	state        State
	quitReceived bool
}

// UpdateMsg carries a controller update into the program.
type UpdateMsg struct {
	chat.Update
}

type submitResultMsg struct {
	err error
}

type ratedMsg struct {
	index  int
	rating chat.Rating
	err    error
}

type feedbackSentMsg struct {
	err error
}

type clearedMsg struct {
	err error
}

type savedMsg struct {
	path string
	err  error
}

type refreshMessageMsg struct {
	GoToBottom bool
}

// Forwarder returns a controller observer that sends every update to p.
func Forwarder(p *tea.Program) chat.Observer {
	return chat.ObserverFunc(func(u chat.Update) {
		p.Send(UpdateMsg{Update: u})
	})
}

func InitialModel(controller *chat.Controller, options Options) model {
	if options.Title == "" {
		options.Title = "Ask the documentation"
	}
	if options.GlamourStyle == "" {
		options.GlamourStyle = "auto"
	}

	ret := model{
		controller:  controller,
		options:     options,
		style:       DefaultStyles(),
		keyMap:      DefaultKeyMap,
		viewport:    viewport.New(0, 0),
		help:        help.New(),
		spinner:     spinner.New(spinner.WithSpinner(spinner.Dot)),
		ratings:     map[int]chat.Rating{},
		selectedIdx: -1,
	}

	ret.textArea = textarea.New()
	ret.textArea.Placeholder = "Type a new question..."
	ret.textArea.ShowLineNumbers = false
	ret.textArea.SetHeight(3)
	ret.textArea.KeyMap.InsertNewline.SetKeys("alt+enter", "ctrl+j")
	ret.textArea.Focus()
	ret.state = StateUserInput

	ret.messages = controller.Log()
	ret.selectLastAnswer()

	ret.viewport.SetContent(ret.messageView())
	ret.viewport.GotoBottom()

	ret.updateKeyBindings()

	return ret
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.spinner.Tick)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, m.keyMap.Quit) {
			m.quitReceived = true
			m.controller.CancelAll()
			return m, tea.Quit
		}

		if m.state == StateFeedback {
			return m, m.updateFeedback(msg)
		}

		switch {
		case key.Matches(msg, m.keyMap.CancelCompletion):
			m.controller.CancelAll()
			m.status = "stopping..."

		case key.Matches(msg, m.keyMap.DismissError):
			m.err = nil
			m.state = StateUserInput
			cmds = append(cmds, m.textArea.Focus())
			m.updateKeyBindings()

		case key.Matches(msg, m.keyMap.SubmitMessage):
			cmds = append(cmds, m.submit())

		case key.Matches(msg, m.keyMap.UnfocusMessage):
			m.textArea.Blur()
			m.state = StateMovingAround
			m.selectLastAnswer()
			m.updateKeyBindings()
			cmds = append(cmds, refresh(false))

		case key.Matches(msg, m.keyMap.FocusMessage):
			cmds = append(cmds, m.textArea.Focus())
			m.state = StateUserInput
			m.updateKeyBindings()
			cmds = append(cmds, refresh(true))

		case key.Matches(msg, m.keyMap.SelectPrevMessage):
			m.moveSelection(-1)
			cmds = append(cmds, refresh(false))

		case key.Matches(msg, m.keyMap.SelectNextMessage):
			m.moveSelection(1)
			cmds = append(cmds, refresh(false))

		case key.Matches(msg, m.keyMap.Like):
			cmds = append(cmds, m.rate(chat.RatingLike))

		case key.Matches(msg, m.keyMap.Dislike):
			cmds = append(cmds, m.rate(chat.RatingDislike))
			if m.selectedIdx >= 0 {
				m.feedback = newFeedbackForm(m.selectedIdx)
				m.state = StateFeedback
				m.updateKeyBindings()
				m.recomputeSize()
			}

		case key.Matches(msg, m.keyMap.Clear):
			cmds = append(cmds, m.clear())

		case key.Matches(msg, m.keyMap.SaveToFile):
			cmds = append(cmds, m.save())

		case key.Matches(msg, m.keyMap.Help):
			m.help.ShowAll = !m.help.ShowAll
			m.recomputeSize()

		default:
			switch m.state {
			case StateUserInput:
				m.textArea, cmd = m.textArea.Update(msg)
				cmds = append(cmds, cmd)
			case StateMovingAround, StateStreamCompletion, StateError, StateFeedback:
				m.viewport, cmd = m.viewport.Update(msg)
				cmds = append(cmds, cmd)
			}
			return m, tea.Batch(cmds...)
		}

		return m, tea.Batch(cmds...)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.newRenderer()
		m.recomputeSize()

	case UpdateMsg:
		cmds = append(cmds, m.applyUpdate(msg.Update))

	case submitResultMsg:
		if msg.err != nil {
			cmds = append(cmds, m.setError(msg.err))
		}

	case ratedMsg:
		if msg.err != nil {
			cmds = append(cmds, m.setError(msg.err))
		}

	case feedbackSentMsg:
		if msg.err != nil {
			m.status = "could not send feedback: " + msg.err.Error()
		} else {
			m.status = "Thanks for your feedback!"
		}

	case clearedMsg:
		if msg.err != nil {
			cmds = append(cmds, m.setError(msg.err))
		}

	case savedMsg:
		if msg.err != nil {
			cmds = append(cmds, m.setError(msg.err))
		} else {
			m.status = "saved to " + msg.path
		}

	case spinner.TickMsg:
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
		if m.waitingFirst {
			cmds = append(cmds, refresh(false))
		}

	case refreshMessageMsg:
		m.viewport.SetContent(m.messageView())
		if msg.GoToBottom {
			m.viewport.GotoBottom()
		}

	default:
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func refresh(goToBottom bool) tea.Cmd {
	return func() tea.Msg {
		return refreshMessageMsg{GoToBottom: goToBottom}
	}
}

func (m *model) applyUpdate(u chat.Update) tea.Cmd {
	if u.Log != nil {
		m.messages = u.Log
	}

	switch u.Kind {
	case chat.UpdateState:
		switch {
		case u.State == chat.StateSending:
			m.waitingFirst = true
			m.status = ""
			if m.state == StateUserInput {
				m.textArea.Reset()
				m.textArea.Blur()
			}
			m.state = StateStreamCompletion
		case u.State.IsTerminal():
			m.waitingFirst = m.controller.WaitingFirstToken()
			if m.controller.Loading() {
				break
			}
			switch u.State {
			case chat.StateCancelled:
				m.status = "stopped"
			case chat.StateFailed:
				m.status = "the answer could not be generated"
			case chat.StateCompleted:
				m.status = fmt.Sprintf("answered in %s", u.Elapsed().Round(100*time.Millisecond))
			}
			if m.quitReceived {
				return tea.Quit
			}
			m.state = StateUserInput
			m.selectLastAnswer()
			m.updateKeyBindings()
			m.recomputeSize()
			return tea.Batch(m.textArea.Focus(), refresh(true))
		}
		m.updateKeyBindings()
	case chat.UpdateFirstToken:
		m.waitingFirst = m.controller.WaitingFirstToken()
	case chat.UpdateRating:
		m.ratings[u.Index] = u.Rating
	case chat.UpdateClear:
		m.ratings = map[int]chat.Rating{}
		m.selectedIdx = -1
		m.status = "started a new chat"
	case chat.UpdateLog:
	}

	m.recomputeSize()
	return refresh(true)
}

func (m *model) updateKeyBindings() {
	m.keyMap.SaveToFile.SetEnabled(m.options.SavePath != "" && m.state != StateStreamCompletion)
	m.keyMap.Clear.SetEnabled(m.state == StateUserInput || m.state == StateMovingAround)

	m.keyMap.SelectNextMessage.SetEnabled(m.state == StateMovingAround)
	m.keyMap.SelectPrevMessage.SetEnabled(m.state == StateMovingAround)
	m.keyMap.Like.SetEnabled(m.state == StateMovingAround)
	m.keyMap.Dislike.SetEnabled(m.state == StateMovingAround)
	m.keyMap.Help.SetEnabled(m.state == StateMovingAround)
	m.keyMap.FocusMessage.SetEnabled(m.state == StateMovingAround)
	m.keyMap.UnfocusMessage.SetEnabled(m.state == StateUserInput)
	m.keyMap.SubmitMessage.SetEnabled(m.state == StateUserInput)

	m.keyMap.DismissError.SetEnabled(m.state == StateError)
	m.keyMap.CancelCompletion.SetEnabled(m.state == StateStreamCompletion)
}

func (m *model) newRenderer() {
	w := m.width - m.style.SelectedMessage.GetHorizontalFrameSize() - 2
	if w < 20 {
		w = 20
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(m.options.GlamourStyle),
		glamour.WithWordWrap(w),
	)
	if err != nil {
		log.Warn().Err(err).Msg("could not create markdown renderer")
		m.renderer = nil
		return
	}
	m.renderer = r
}

func (m *model) recomputeSize() {
	headerHeight := lipgloss.Height(m.headerView())
	textAreaHeight := lipgloss.Height(m.textAreaView())
	helpViewHeight := lipgloss.Height(m.help.View(m.keyMap))
	statusHeight := lipgloss.Height(m.statusView())

	newHeight := m.height - textAreaHeight - headerHeight - helpViewHeight - statusHeight - 3
	if newHeight < 0 {
		newHeight = 0
	}
	m.viewport.Width = m.width
	m.viewport.Height = newHeight
	m.viewport.YPosition = headerHeight + 1

	m.textArea.SetWidth(m.width - m.style.FocusedMessage.GetHorizontalFrameSize())
	m.help.Width = m.width

	m.viewport.SetContent(m.messageView())
}

// answerIndexes returns the log indexes of the assistant messages.
func (m model) answerIndexes() []int {
	ret := []int{}
	for i, msg := range m.messages {
		if msg.Role == conversation.RoleAssistant {
			ret = append(ret, i)
		}
	}
	return ret
}

func (m *model) selectLastAnswer() {
	m.selectedIdx = conversation.LastIndexOfRole(m.messages, conversation.RoleAssistant)
}

func (m *model) moveSelection(delta int) {
	idxs := m.answerIndexes()
	if len(idxs) == 0 {
		m.selectedIdx = -1
		return
	}
	pos := len(idxs) - 1
	for i, idx := range idxs {
		if idx == m.selectedIdx {
			pos = i
			break
		}
	}
	pos += delta
	if pos < 0 {
		pos = 0
	}
	if pos >= len(idxs) {
		pos = len(idxs) - 1
	}
	m.selectedIdx = idxs[pos]
}

func (m model) headerView() string {
	ret := m.options.Title
	if m.options.IndexDate != "" {
		ret += " · index updated " + m.options.IndexDate
	}
	return m.style.Header.Render(ret)
}

func (m model) statusView() string {
	if m.waitingFirst {
		return m.style.Status.Render(m.spinner.View() + " Generating answer...")
	}
	return m.style.Status.Render(m.status)
}

func (m model) renderMarkdown(s string) string {
	if m.renderer == nil {
		return s
	}
	out, err := m.renderer.Render(s)
	if err != nil {
		return s
	}
	return strings.Trim(out, "\n")
}

func (m model) messageView() string {
	var b strings.Builder
	width := m.width - m.style.SelectedMessage.GetHorizontalFrameSize()
	if width < 10 {
		width = 10
	}

	for idx, msg := range m.messages {
		switch msg.Role {
		case conversation.RoleTool:
			continue

		case conversation.RoleUser:
			b.WriteString(m.style.UserMessage.Width(width).Render("You: " + msg.Content))

		case conversation.RoleError:
			b.WriteString(m.style.ErrorMessage.Width(width).Render(msg.Content))

		case conversation.RoleAssistant:
			v := m.renderMarkdown(msg.Content)
			cs := citations.ForMessage(m.messages, idx)
			if len(cs) > 0 {
				lines := []string{}
				for i, c := range cs {
					lines = append(lines, fmt.Sprintf("[doc%d] %s", i+1, c.Label()))
				}
				v += "\n" + m.style.Citation.Render(strings.Join(lines, "\n"))
			}
			if r, ok := m.ratings[idx]; ok {
				mark := "👍"
				if r == chat.RatingDislike {
					mark = "👎"
				}
				v += "\n" + m.style.Rating.Render(mark)
			}
			style := m.style.UnselectedMessage
			if idx == m.selectedIdx && (m.state == StateMovingAround || m.state == StateFeedback) {
				style = m.style.SelectedMessage
			}
			b.WriteString(style.Width(width).Render(v))
		}
		b.WriteString("\n")
	}

	return b.String()
}

func (m model) textAreaView() string {
	if m.err != nil {
		return m.style.ErrorMessage.Render(m.err.Error())
	}
	if m.state == StateFeedback && m.feedback != nil {
		return m.style.FocusedMessage.Render(m.feedback.View())
	}

	v := m.textArea.View()
	switch m.state {
	case StateUserInput:
		v = m.style.FocusedMessage.Render(v)
	case StateMovingAround, StateStreamCompletion, StateError, StateFeedback:
		v = m.style.UnselectedMessage.Render(v)
	}

	return v
}

func (m model) View() string {
	return m.headerView() + "\n" +
		m.viewport.View() + "\n" +
		m.statusView() + "\n" +
		m.textAreaView() + "\n" +
		m.help.View(m.keyMap)
}

// The controller notifies observers synchronously, so every call that
// notifies runs in a command and never on the event loop.

func (m *model) submit() tea.Cmd {
	question := strings.TrimSpace(m.textArea.Value())
	if question == "" {
		return nil
	}
	controller := m.controller
	return func() tea.Msg {
		_, err := controller.Submit(context.Background(), question)
		return submitResultMsg{err: err}
	}
}

func (m *model) rate(rating chat.Rating) tea.Cmd {
	if m.selectedIdx < 0 {
		return nil
	}
	controller := m.controller
	index := m.selectedIdx
	return func() tea.Msg {
		err := controller.Rate(index, rating)
		return ratedMsg{index: index, rating: rating, err: err}
	}
}

func (m *model) updateFeedback(msg tea.KeyMsg) tea.Cmd {
	res, cmd := m.feedback.Update(msg)
	switch res {
	case feedbackEditing:
		m.recomputeSize()
		return cmd
	case feedbackDismissed:
		m.feedback = nil
	case feedbackSubmitted:
		cmd = m.sendFeedback(m.feedback)
		m.feedback = nil
	}
	m.state = StateMovingAround
	m.updateKeyBindings()
	m.recomputeSize()
	return cmd
}

func (m *model) sendFeedback(form *feedbackForm) tea.Cmd {
	fb, err := chat.NewFeedback(m.messages, form.index, m.options.InDomainOnly)
	if err != nil {
		return func() tea.Msg {
			return feedbackSentMsg{err: err}
		}
	}
	form.Apply(fb)
	sender := m.options.Feedback
	if sender == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return feedbackSentMsg{err: sender.SendFeedback(ctx, fb)}
	}
}

func (m *model) clear() tea.Cmd {
	controller := m.controller
	return func() tea.Msg {
		return clearedMsg{err: controller.Clear()}
	}
}

func (m *model) save() tea.Cmd {
	path := m.options.SavePath
	messages := m.controller.Log()
	return func() tea.Msg {
		err := conversation.SaveYAML(path, messages)
		return savedMsg{path: path, err: errors.Wrap(err, "could not save transcript")}
	}
}

func (m *model) setError(err error) tea.Cmd {
	m.err = err
	m.textArea.Blur()
	m.state = StateError
	m.updateKeyBindings()
	m.recomputeSize()
	return refresh(true)
}
