package cmds

import (
	"fmt"
	"time"

	"github.com/go-go-golems/ragchat/pkg/telemetry"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

func NewTelemetryGroupCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "telemetry",
		Short: "Inspect the telemetry recorded in --telemetry-db",
	}

	cmd.AddCommand(NewTelemetryListCommand())
	cmd.AddCommand(NewTelemetryPruneCommand())

	return cmd
}

func openTelemetryDB() (*telemetry.SQLiteTracker, error) {
	dsn := viper.GetString("telemetry-db")
	if dsn == "" {
		return nil, errors.New("no telemetry database configured, pass --telemetry-db")
	}
	return telemetry.NewSQLiteTracker(dsn)
}

func NewTelemetryListCommand() *cobra.Command {
	var name string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print the recorded telemetry as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openTelemetryDB()
			if err != nil {
				return err
			}
			defer func() {
				_ = store.Close()
			}()

			records, err := store.Records(cmd.Context(), telemetry.Name(name), limit)
			if err != nil {
				return err
			}

			encoder := yaml.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent(2)
			if err := encoder.Encode(records); err != nil {
				return errors.Wrap(err, "could not print records")
			}
			return encoder.Close()
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Only list records of this name (Question, Answer, Error, Like, DisLike)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of records (0 for all)")

	return cmd
}

func NewTelemetryPruneCommand() *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete old telemetry records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openTelemetryDB()
			if err != nil {
				return err
			}
			defer func() {
				_ = store.Close()
			}()

			n, err := store.Prune(cmd.Context(), olderThan)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "deleted %d records\n", n)
			return err
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "Delete records older than this")

	return cmd
}
