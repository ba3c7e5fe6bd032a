package main

import (
	"os"
	"strings"

	"github.com/go-go-golems/ragchat/cmd/ragchat/cmds"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "ragchat",
	Short: "ragchat asks questions to a retrieval augmented chat backend",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// flags are parsed now, pick up --log-level and --verbose
		initLogger()
	},
	SilenceUsage: true,
}

// configPathFromArgs finds --config before cobra parses the flags, since the
// config file has to be read before the subcommands run.
func configPathFromArgs(args []string) string {
	ret := ""
	for idx, arg := range args {
		if arg == "--config" && idx+1 < len(args) {
			ret = args[idx+1]
		}
		if strings.HasPrefix(arg, "--config=") {
			ret = strings.TrimPrefix(arg, "--config=")
		}
	}
	if ret == "" {
		ret = os.Getenv("RAGCHAT_CONFIG")
	}
	return ret
}

// configSearchPaths lists where config.yaml is looked up, most specific first.
func configSearchPaths() []string {
	ret := []string{".", "$HOME/.ragchat"}
	if dir, err := os.UserConfigDir(); err == nil {
		ret = append(ret, dir+"/ragchat")
	}
	return append(ret, "/etc/ragchat")
}

func initConfig(rootCmd *cobra.Command, configPath string) error {
	viper.SetEnvPrefix("ragchat")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		for _, p := range configSearchPaths() {
			viper.AddConfigPath(p)
		}
	}

	err := viper.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if err != nil && !errors.As(err, &notFound) {
		return errors.Wrap(err, "could not read config")
	}

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return err
	}

	// --verbose is not parsed yet, the config file and environment are
	initLogger()
	log.Debug().Str("config", viper.ConfigFileUsed()).Msg("loaded configuration")

	return nil
}

func main() {
	_ = rootCmd.Execute()
}

func init() {
	flags := rootCmd.PersistentFlags()

	flags.Bool("with-caller", false, "Log caller")
	flags.String("log-level", "warn", "Log level (trace, debug, info, warn, error, fatal)")
	flags.String("log-format", "text", "Log format (json, text)")
	flags.String("log-file", "", "Also log into this file, rotated at 10MB")
	flags.String("config", "", "Path to config file (default ~/.ragchat/config.yaml, or $RAGCHAT_CONFIG)")
	flags.Bool("verbose", false, "Verbose output")

	flags.String("base-url", "http://localhost:5000", "Base URL of the chat backend")
	flags.Bool("in-domain-only", false, "Only answer from the indexed documents")
	flags.Int("timeout", 30, "Timeout in seconds for requests other than the answer stream")
	flags.String("user-agent", "", "User agent sent to the backend")
	flags.String("consent", "", "Whether questions may be recorded with your user id (yes, no)")
	flags.String("user-id", "", "User id (default: asked from the backend)")
	flags.String("footer-template", "", "Go template of the footer appended to answers")
	flags.String("search-url", "", "Web search URL linked from the footer")
	flags.String("community-url", "", "Community forum URL linked from the footer")
	flags.String("telemetry-db", "", "SQLite file to record telemetry into (default: log only)")
	flags.String("metrics-addr", "", "Address to serve prometheus metrics on")

	if err := initConfig(rootCmd, configPathFromArgs(os.Args)); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(
		cmds.NewAskCommand(),
		cmds.NewChatCommand(),
		cmds.NewFakeBackendCommand(),
		cmds.NewTelemetryGroupCommand(),
		cmds.NewConfigGroupCommand(),
	)
}
