package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-go-golems/ragchat/pkg/api"
	"github.com/go-go-golems/ragchat/pkg/helpers"
)

type feedbackReason struct {
	label string
	set   func(f *api.Feedback, v bool)
}

var feedbackReasons = []feedbackReason{
	{"Inaccurate", func(f *api.Feedback, v bool) { f.InaccurateAnswer = helpers.Ptr(v) }},
	{"Missing information", func(f *api.Feedback, v bool) { f.MissingInfo = helpers.Ptr(v) }},
	{"Too long", func(f *api.Feedback, v bool) { f.TooLong = helpers.Ptr(v) }},
	{"Too short", func(f *api.Feedback, v bool) { f.TooShort = helpers.Ptr(v) }},
	{"Confusing", func(f *api.Feedback, v bool) { f.Confusing = helpers.Ptr(v) }},
	{"Offensive", func(f *api.Feedback, v bool) { f.Offensive = helpers.Ptr(v) }},
	{"Biased", func(f *api.Feedback, v bool) { f.Biased = helpers.Ptr(v) }},
	{"Outdated", func(f *api.Feedback, v bool) { f.Outdated = helpers.Ptr(v) }},
	{"Repetitive", func(f *api.Feedback, v bool) { f.Repetitive = helpers.Ptr(v) }},
}

const (
	fieldResponseQuality = iota
	fieldDocumentQuality
	fieldFirstReason
)

var (
	fieldVerbatim   = fieldFirstReason + len(feedbackReasons)
	fieldCaseNumber = fieldVerbatim + 1
	fieldCount      = fieldCaseNumber + 1
)

type feedbackResult int

const (
	feedbackEditing feedbackResult = iota
	feedbackSubmitted
	feedbackDismissed
)

// feedbackForm collects the details of a dislike. Ratings go from 1 to 5.
type feedbackForm struct {
	index           int
	responseQuality int
	documentQuality int
	reasons         []bool
	verbatim        textinput.Model
	caseNumber      textinput.Model
	focus           int
}

func newFeedbackForm(index int) *feedbackForm {
	verbatim := textinput.New()
	verbatim.Placeholder = "Details on citations and answer quality"
	caseNumber := textinput.New()
	caseNumber.Placeholder = "Case number"
	return &feedbackForm{
		index:           index,
		responseQuality: 3,
		documentQuality: 3,
		reasons:         make([]bool, len(feedbackReasons)),
		verbatim:        verbatim,
		caseNumber:      caseNumber,
	}
}

func (f *feedbackForm) setFocus(i int) tea.Cmd {
	f.focus = (i + fieldCount) % fieldCount
	f.verbatim.Blur()
	f.caseNumber.Blur()
	switch f.focus {
	case fieldVerbatim:
		return f.verbatim.Focus()
	case fieldCaseNumber:
		return f.caseNumber.Focus()
	}
	return nil
}

func clampRating(v int) int {
	if v < 1 {
		return 1
	}
	if v > 5 {
		return 5
	}
	return v
}

func (f *feedbackForm) Update(msg tea.KeyMsg) (feedbackResult, tea.Cmd) {
	switch msg.String() {
	case "esc", "ctrl+g":
		return feedbackDismissed, nil
	case "enter":
		return feedbackSubmitted, nil
	case "tab", "down":
		return feedbackEditing, f.setFocus(f.focus + 1)
	case "shift+tab", "up":
		return feedbackEditing, f.setFocus(f.focus - 1)
	}

	var cmd tea.Cmd
	switch {
	case f.focus == fieldResponseQuality || f.focus == fieldDocumentQuality:
		delta := 0
		switch msg.String() {
		case "left", "h", "-":
			delta = -1
		case "right", "l", "+":
			delta = 1
		case "1", "2", "3", "4", "5":
			v := int(msg.String()[0] - '0')
			if f.focus == fieldResponseQuality {
				f.responseQuality = v
			} else {
				f.documentQuality = v
			}
		}
		if f.focus == fieldResponseQuality {
			f.responseQuality = clampRating(f.responseQuality + delta)
		} else {
			f.documentQuality = clampRating(f.documentQuality + delta)
		}
	case f.focus < fieldVerbatim:
		if msg.String() == " " || msg.String() == "x" {
			i := f.focus - fieldFirstReason
			f.reasons[i] = !f.reasons[i]
		}
	case f.focus == fieldVerbatim:
		f.verbatim, cmd = f.verbatim.Update(msg)
	case f.focus == fieldCaseNumber:
		f.caseNumber, cmd = f.caseNumber.Update(msg)
	}
	return feedbackEditing, cmd
}

// Apply fills the user's answers into fb.
func (f *feedbackForm) Apply(fb *api.Feedback) {
	fb.OverallResponseQuality = helpers.Ptr(f.responseQuality)
	fb.OverallDocumentQuality = helpers.Ptr(f.documentQuality)
	for i, r := range feedbackReasons {
		r.set(fb, f.reasons[i])
	}
	fb.Fantastic = helpers.Ptr(false)
	fb.Verbatim = helpers.Ptr(strings.TrimSpace(f.verbatim.Value()))
	fb.CaseNumber = helpers.Ptr(strings.TrimSpace(f.caseNumber.Value()))
}

func stars(v int) string {
	return strings.Repeat("★", v) + strings.Repeat("☆", 5-v)
}

func (f *feedbackForm) View() string {
	var b strings.Builder
	cursor := func(i int) string {
		if f.focus == i {
			return "> "
		}
		return "  "
	}
	b.WriteString("What was wrong with this answer? (tab to move, space to toggle, enter to send, esc to cancel)\n\n")
	fmt.Fprintf(&b, "%sOverall response quality  %s\n", cursor(fieldResponseQuality), stars(f.responseQuality))
	fmt.Fprintf(&b, "%sOverall document quality  %s\n", cursor(fieldDocumentQuality), stars(f.documentQuality))
	for i, r := range feedbackReasons {
		box := "[ ]"
		if f.reasons[i] {
			box = "[x]"
		}
		fmt.Fprintf(&b, "%s%s %s\n", cursor(fieldFirstReason+i), box, r.label)
	}
	fmt.Fprintf(&b, "%s%s\n", cursor(fieldVerbatim), f.verbatim.View())
	fmt.Fprintf(&b, "%s%s", cursor(fieldCaseNumber), f.caseNumber.View())
	return b.String()
}
