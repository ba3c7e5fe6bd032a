package ui

import (
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/go-go-golems/ragchat/pkg/settings"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/tcnksm/go-input"
)

const consentQuery = "May your questions and answers be recorded together with your user id to improve the service? [yes/no]"

// Prompt asks the user questions on the terminal, even when stdin is piped.
type Prompt struct {
	ui     *input.UI
	closer io.Closer
}

func NewPrompt(r io.Reader, w io.Writer) *Prompt {
	return &Prompt{ui: &input.UI{Reader: r, Writer: w}}
}

// IsInteractive reports whether the user can be prompted at all.
func IsInteractive() bool {
	if isTerminal(os.Stdin) {
		return true
	}
	tty, err := openTTY()
	if err != nil {
		return false
	}
	_ = tty.Close()
	return true
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// OpenPrompt prompts on stdin when it is a terminal, and on the controlling
// terminal otherwise.
func OpenPrompt() (*Prompt, error) {
	if isTerminal(os.Stdin) {
		return NewPrompt(os.Stdin, os.Stderr), nil
	}
	tty, err := openTTY()
	if err != nil {
		return nil, errors.Wrap(err, "could not open terminal")
	}
	p := NewPrompt(tty, tty)
	p.closer = tty
	return p, nil
}

func openTTY() (*os.File, error) {
	if runtime.GOOS == "windows" {
		return os.OpenFile("CONIN$", os.O_RDWR, 0)
	}
	return os.OpenFile("/dev/tty", os.O_RDWR, 0)
}

func (p *Prompt) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer.Close()
}

func (p *Prompt) AskConsent() (settings.Consent, error) {
	answer, err := p.ui.Ask(consentQuery, &input.Options{
		Required:  true,
		Loop:      true,
		HideOrder: true,
		ValidateFunc: func(answer string) error {
			c, err := settings.ParseConsent(answer)
			if err != nil {
				return err
			}
			if !c.IsSet() {
				return errors.New("please answer yes or no")
			}
			return nil
		},
	})
	if err != nil {
		return settings.ConsentUnset, errors.Wrap(err, "could not read consent")
	}
	return settings.ParseConsent(answer)
}

func (p *Prompt) AskYesNo(query string, def bool) (bool, error) {
	d := "n"
	if def {
		d = "y"
	}
	answer, err := p.ui.Ask(query+" [y/n]", &input.Options{
		Default:   d,
		Loop:      true,
		HideOrder: true,
		ValidateFunc: func(answer string) error {
			switch strings.ToLower(answer) {
			case "y", "yes", "n", "no":
				return nil
			default:
				return errors.New("please enter 'y' or 'n'")
			}
		},
	})
	if err != nil {
		return false, errors.Wrap(err, "could not read answer")
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
