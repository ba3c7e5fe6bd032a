package cmds

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-go-golems/ragchat/pkg/chat"
	"github.com/go-go-golems/ragchat/pkg/conversation"
	"github.com/go-go-golems/ragchat/pkg/events"
	"github.com/go-go-golems/ragchat/pkg/settings"
	"github.com/go-go-golems/ragchat/pkg/ui"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type AskSettings struct {
	// PrintRawEvents prints the published events as JSON instead of the answer.
	PrintRawEvents bool
	// Full keeps the footer of the answer and lists its citations.
	Full    bool
	Verbose bool
	// Chat continues in the chat UI once the answer is printed.
	Chat bool
	// Interactive allows prompting even when stdout is not a terminal.
	Interactive bool
	// Save writes the transcript to this file when done.
	Save string
	// Resume starts from a saved transcript.
	Resume string
}

type AskCommand struct {
	Settings *settings.ChatSettings
	Ask      AskSettings
}

func NewAskCommand(s *settings.ChatSettings, ask AskSettings) *AskCommand {
	return &AskCommand{Settings: s, Ask: ask}
}

// EnsureConsent asks the user for their consent choice if none is configured.
// It fails when the user cannot be prompted.
func EnsureConsent(s *settings.ChatSettings, interactive bool) error {
	if s.Consent.IsSet() {
		return nil
	}
	if !interactive && !ui.IsInteractive() {
		return errors.Wrap(chat.ErrConsentRequired, "pass --consent yes or --consent no")
	}
	p, err := ui.OpenPrompt()
	if err != nil {
		return err
	}
	defer func() {
		if err := p.Close(); err != nil {
			log.Warn().Err(err).Msg("could not close terminal")
		}
	}()
	consent, err := p.AskConsent()
	if err != nil {
		return err
	}
	s.Consent = consent
	return nil
}

func loadHistory(path string) ([]conversation.Message, error) {
	if path == "" {
		return nil, nil
	}
	return conversation.LoadYAML(path)
}

// RunIntoWriter asks question and streams the answer into w.
func (a *AskCommand) RunIntoWriter(ctx context.Context, question string, w io.Writer) error {
	s := a.Settings.Clone()

	isOutputTerminal := isatty.IsTerminal(os.Stdout.Fd())
	if err := EnsureConsent(s, a.Ask.Interactive || isOutputTerminal); err != nil {
		return err
	}

	history, err := loadHistory(a.Ask.Resume)
	if err != nil {
		return err
	}

	session, err := NewSession(ctx, s,
		WithSessionHistory(history),
		WithRouterOptions(events.WithRawOutput(w), events.WithVerbose(a.Ask.Verbose)),
	)
	if err != nil {
		return err
	}
	defer func() {
		if err := session.Close(); err != nil {
			log.Error().Err(err).Msg("could not close session")
		}
	}()

	// the printer is switched off once the chat UI takes over the terminal
	printing := &atomic.Bool{}
	printing.Store(true)
	printer := events.StepPrinterFunc("", w, a.Ask.Full)
	if a.Ask.PrintRawEvents {
		printer = session.Router.DumpRawEvents
	}
	session.Router.AddHandler("printer", events.TopicChat, func(msg *message.Message) error {
		if !printing.Load() {
			msg.Ack()
			return nil
		}
		return printer(msg)
	})

	return session.Run(ctx, func(ctx context.Context) error {
		_, askErr := session.Controller.Ask(ctx, question)
		if errors.Is(askErr, context.Canceled) {
			return nil
		}

		continueInChat := a.Ask.Chat
		if !continueInChat && askErr == nil && (isOutputTerminal || a.Ask.Interactive) {
			var err error
			continueInChat, err = askForChatContinuation()
			if err != nil {
				return err
			}
		}

		if continueInChat {
			printed := len(session.Controller.Log())
			printing.Store(false)
			if err := runChatUI(ctx, session, a.Ask.Save); err != nil {
				return err
			}
			for idx, msg := range session.Controller.Log() {
				if idx < printed || msg.Role == conversation.RoleTool {
					continue
				}
				_, _ = fmt.Fprintf(w, "\n%s\n", msg.View())
			}
		}

		if a.Ask.Save != "" {
			if err := conversation.SaveYAML(a.Ask.Save, session.Controller.Log()); err != nil {
				return err
			}
		}

		return askErr
	})
}

func askForChatContinuation() (bool, error) {
	p, err := ui.OpenPrompt()
	if err != nil {
		return false, err
	}
	defer func() {
		if err := p.Close(); err != nil {
			log.Warn().Err(err).Msg("could not close terminal")
		}
	}()
	return p.AskYesNo("\nDo you want to continue in chat?", false)
}
