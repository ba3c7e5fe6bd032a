package cmds

import (
	"io"
	"os"
	"strings"

	"github.com/go-go-golems/ragchat/pkg/cmds"
	"github.com/go-go-golems/ragchat/pkg/settings"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func loadSettings() (*settings.ChatSettings, error) {
	return settings.NewChatSettingsFromViper(viper.GetViper())
}

func NewAskCommand() *cobra.Command {
	ask := cmds.AskSettings{}
	cmd := &cobra.Command{
		Use:   "ask [question...]",
		Short: "Ask a single question and print the streamed answer",
		Long: "Ask a single question and print the streamed answer.\n" +
			"Use - to read the question from stdin.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings()
			if err != nil {
				return err
			}

			question := strings.Join(args, " ")
			if question == "-" {
				b, err := io.ReadAll(os.Stdin)
				if err != nil {
					return errors.Wrap(err, "could not read question from stdin")
				}
				question = string(b)
			}

			ask.Verbose = viper.GetBool("verbose")
			return cmds.NewAskCommand(s, ask).RunIntoWriter(cmd.Context(), question, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&ask.PrintRawEvents, "print-raw-events", false, "Print the published events as JSON")
	cmd.Flags().BoolVar(&ask.Full, "full", false, "Keep the answer footer and list the cited documents")
	cmd.Flags().BoolVar(&ask.Chat, "chat", false, "Continue in chat mode")
	cmd.Flags().BoolVar(&ask.Interactive, "interactive", false, "Always prompt, even with non-tty stdout")
	cmd.Flags().StringVar(&ask.Save, "save", "", "Save the transcript to this YAML file")
	cmd.Flags().StringVar(&ask.Resume, "resume", "", "Continue the conversation saved in this YAML file")

	return cmd
}
