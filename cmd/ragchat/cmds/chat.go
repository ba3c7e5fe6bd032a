package cmds

import (
	"github.com/go-go-golems/ragchat/pkg/cmds"
	"github.com/spf13/cobra"
)

func NewChatCommand() *cobra.Command {
	cs := cmds.ChatSettings{}
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the backend in a terminal UI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings()
			if err != nil {
				return err
			}
			return cmds.RunChat(cmd.Context(), s, cs)
		},
	}

	cmd.Flags().StringVar(&cs.Save, "save", "", "Save the transcript to this YAML file on ctrl+s and on exit")
	cmd.Flags().StringVar(&cs.Resume, "resume", "", "Continue the conversation saved in this YAML file")
	cmd.Flags().StringVar(&cs.Title, "title", "", "Title shown above the conversation")

	return cmd
}
