package cmds

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-go-golems/ragchat/pkg/conversation"
	"github.com/go-go-golems/ragchat/pkg/settings"
	"github.com/go-go-golems/ragchat/pkg/ui"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog/log"
)

type ChatSettings struct {
	// Save writes the transcript to this file on ctrl+s and on exit.
	Save string
	// Resume starts from a saved transcript.
	Resume string
	Title  string
}

// RunChat runs the interactive chat UI until the user quits.
func RunChat(ctx context.Context, s *settings.ChatSettings, cs ChatSettings) error {
	s = s.Clone()
	if err := EnsureConsent(s, true); err != nil {
		return err
	}

	history, err := loadHistory(cs.Resume)
	if err != nil {
		return err
	}

	session, err := NewSession(ctx, s, WithSessionHistory(history))
	if err != nil {
		return err
	}
	defer func() {
		if err := session.Close(); err != nil {
			log.Error().Err(err).Msg("could not close session")
		}
	}()

	return session.Run(ctx, func(ctx context.Context) error {
		if err := runChatUI(ctx, session, cs.Save, withTitle(cs.Title)); err != nil {
			return err
		}
		if cs.Save != "" {
			return conversation.SaveYAML(cs.Save, session.Controller.Log())
		}
		return nil
	})
}

type chatUIOption func(*ui.Options)

func withTitle(title string) chatUIOption {
	return func(o *ui.Options) {
		o.Title = title
	}
}

func runChatUI(ctx context.Context, session *Session, savePath string, options ...chatUIOption) error {
	indexDate, err := session.Client.IndexDate(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("could not fetch index date")
	}

	uiOptions := ui.Options{
		IndexDate:    indexDate,
		Feedback:     session.Client,
		InDomainOnly: session.Settings.InDomainOnly,
		SavePath:     savePath,
	}
	for _, o := range options {
		o(&uiOptions)
	}

	isOutputTerminal := isatty.IsTerminal(os.Stdout.Fd())
	programOptions := []tea.ProgramOption{
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	}
	if !isOutputTerminal {
		programOptions = append(programOptions, tea.WithOutput(os.Stderr))
	} else {
		programOptions = append(programOptions, tea.WithAltScreen())
	}

	p := tea.NewProgram(ui.InitialModel(session.Controller, uiOptions), programOptions...)
	session.Controller.AddObserver(ui.Forwarder(p))

	_, err = p.Run()
	session.Controller.CancelAll()
	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
