package cmds

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-go-golems/ragchat/pkg/cmds"
	"github.com/go-go-golems/ragchat/pkg/settings"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// configKeys are the settings that can be stored in the config file.
var configKeys = []string{
	"base-url",
	"in-domain-only",
	"timeout",
	"user-agent",
	"consent",
	"user-id",
	"footer-template",
	"search-url",
	"community-url",
	"telemetry-db",
	"metrics-addr",
}

func configFile() (string, error) {
	if f := viper.ConfigFileUsed(); f != "" {
		return f, nil
	}
	xdgConfigPath, err := os.UserConfigDir()
	if err != nil {
		return "", errors.Wrap(err, "could not find config directory")
	}
	return filepath.Join(xdgConfigPath, "ragchat", "config.yaml"), nil
}

func NewConfigGroupCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Commands for manipulating the configuration file",
	}

	cmd.AddCommand(NewConfigSetCommand())
	cmd.AddCommand(NewConfigGetCommand())
	cmd.AddCommand(NewConsentCommand())

	return cmd
}

func isConfigKey(key string) bool {
	for _, k := range configKeys {
		if k == key {
			return true
		}
	}
	return false
}

func NewConfigSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a value in the config file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value := args[0], args[1]
			if !isConfigKey(key) {
				return errors.Errorf("unknown config key %q, expected one of %v", key, configKeys)
			}
			if key == "consent" {
				c, err := settings.ParseConsent(value)
				if err != nil {
					return err
				}
				value = string(c)
			}

			path, err := configFile()
			if err != nil {
				return err
			}
			if err := settings.SetConfigValue(path, key, value); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s set in %s\n", key, path)
			return err
		},
	}
}

func NewConfigGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get [key]",
		Short: "Print the effective configuration, or a single value",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keys := configKeys
			if len(args) == 1 {
				if !isConfigKey(args[0]) {
					return errors.Errorf("unknown config key %q", args[0])
				}
				keys = args
			}
			for _, k := range keys {
				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s: %v\n", k, viper.Get(k)); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// NewConsentCommand asks the consent question and stores the answer, so that
// later sessions do not ask again.
func NewConsentCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "consent",
		Short: "Answer the telemetry consent question and store the answer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := settings.NewChatSettings()
			if err := cmds.EnsureConsent(s, true); err != nil {
				return err
			}
			path, err := configFile()
			if err != nil {
				return err
			}
			if err := settings.SetConfigValue(path, "consent", string(s.Consent)); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "consent %s stored in %s\n", s.Consent, path)
			return err
		},
	}
}
