package events

import (
	"fmt"
	"io"
	"strings"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-go-golems/ragchat/pkg/assembler"
)

// StepPrinterFunc prints the answers of turns as they stream in. Partial
// events are snapshots, so only the part not printed yet is written. If the
// backend rewrote text that was already printed, the answer is printed again
// on a new line. With full, final answers keep their footer and are followed
// by their citations.
func StepPrinterFunc(name string, w io.Writer, full bool) func(msg *message.Message) error {
	printed := map[string]string{}

	write := func(turnID string, answer string) error {
		prev := printed[turnID]
		if prev == "" && name != "" {
			if _, err := fmt.Fprintf(w, "\n%s: \n", name); err != nil {
				return err
			}
		}
		var err error
		if strings.HasPrefix(answer, prev) {
			_, err = fmt.Fprint(w, answer[len(prev):])
		} else {
			_, err = fmt.Fprintf(w, "\n%s", answer)
		}
		printed[turnID] = answer
		return err
	}

	return func(msg *message.Message) error {
		defer msg.Ack()

		e, err := NewEventFromJson(msg.Payload)
		if err != nil {
			return err
		}
		turnID := e.Metadata().TurnID

		switch p_ := e.(type) {
		case *EventPartial:
			return write(turnID, p_.Answer)

		case *EventFinal:
			answer := p_.Answer
			if !full {
				answer = assembler.StripFooter(answer)
			}
			if err := write(turnID, answer); err != nil {
				return err
			}
			delete(printed, turnID)
			if !strings.HasSuffix(answer, "\n") {
				if _, err := fmt.Fprintf(w, "\n"); err != nil {
					return err
				}
			}
			if full {
				for i, c := range p_.Citations {
					line := fmt.Sprintf("[doc%d] %s", i+1, c.Label())
					if c.URL != "" {
						line += " <" + c.URL + ">"
					}
					if _, err := fmt.Fprintln(w, line); err != nil {
						return err
					}
				}
			}

		case *EventError:
			delete(printed, turnID)
			if _, err := fmt.Fprintf(w, "\n[error] %s\n", p_.UserText); err != nil {
				return err
			}

		case *EventInterrupt:
			delete(printed, turnID)
			if _, err := fmt.Fprintf(w, "\n[interrupted]\n"); err != nil {
				return err
			}

		case *EventStart, *EventFirstToken, *EventRating, *EventClear:
		}

		return nil
	}
}
