package ui

import "github.com/charmbracelet/bubbles/key"

type KeyMap struct {
	SelectPrevMessage key.Binding
	SelectNextMessage key.Binding
	UnfocusMessage    key.Binding
	FocusMessage      key.Binding
	SubmitMessage     key.Binding
	CancelCompletion  key.Binding
	DismissError      key.Binding

	Like    key.Binding
	Dislike key.Binding
	Clear   key.Binding

	SaveToFile key.Binding

	Help key.Binding
	Quit key.Binding
}

var DefaultKeyMap = KeyMap{
	SelectPrevMessage: key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "previous answer")),
	SelectNextMessage: key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "next answer")),
	UnfocusMessage:    key.NewBinding(key.WithKeys("esc", "ctrl+g"), key.WithHelp("esc", "select answers")),
	FocusMessage:      key.NewBinding(key.WithKeys("enter", "i"), key.WithHelp("enter", "ask")),
	SubmitMessage:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "send")),
	CancelCompletion:  key.NewBinding(key.WithKeys("esc", "ctrl+g"), key.WithHelp("esc", "stop generating")),
	DismissError:      key.NewBinding(key.WithKeys("esc", "enter"), key.WithHelp("esc", "dismiss")),

	Like:    key.NewBinding(key.WithKeys("+", "l"), key.WithHelp("l", "like")),
	Dislike: key.NewBinding(key.WithKeys("-", "d"), key.WithHelp("d", "dislike")),
	Clear:   key.NewBinding(key.WithKeys("ctrl+n"), key.WithHelp("ctrl+n", "new chat")),

	SaveToFile: key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "save")),

	Help: key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
	Quit: key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
}

func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.SubmitMessage, k.CancelCompletion, k.UnfocusMessage, k.FocusMessage,
		k.Like, k.Dislike, k.DismissError, k.Help, k.Quit,
	}
}

func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.SubmitMessage, k.CancelCompletion, k.UnfocusMessage, k.FocusMessage},
		{k.SelectPrevMessage, k.SelectNextMessage, k.Like, k.Dislike},
		{k.Clear, k.SaveToFile, k.DismissError},
		{k.Help, k.Quit},
	}
}
