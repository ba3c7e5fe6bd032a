package main

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

type logConfig struct {
	WithCaller bool
	Level      string
	LogFormat  string
	LogFile    string
}

// newLogConfig reads the logging flags. --verbose raises the level to debug
// unless trace was asked for.
func newLogConfig(v *viper.Viper) *logConfig {
	level := v.GetString("log-level")
	if v.GetBool("verbose") && level != "trace" {
		level = "debug"
	}
	return &logConfig{
		WithCaller: v.GetBool("with-caller"),
		Level:      level,
		LogFormat:  v.GetString("log-format"),
		LogFile:    v.GetString("log-file"),
	}
}

func (c *logConfig) level() (zerolog.Level, error) {
	if c.Level == "" {
		return zerolog.WarnLevel, nil
	}
	level, err := zerolog.ParseLevel(c.Level)
	if err != nil {
		return zerolog.WarnLevel, errors.Errorf("unknown log level %q", c.Level)
	}
	return level, nil
}

func (c *logConfig) writer() io.Writer {
	var w io.Writer = os.Stderr
	if c.LogFormat == "text" {
		w = zerolog.ConsoleWriter{Out: os.Stderr}
	}
	if c.LogFile == "" {
		return w
	}

	var file io.Writer = &lumberjack.Logger{
		Filename:   c.LogFile,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
	}
	if c.LogFormat == "text" {
		file = zerolog.ConsoleWriter{NoColor: true, Out: file}
	}
	return io.MultiWriter(w, file)
}

// InitLogger points the global logger at the configured outputs. An unknown
// level falls back to warn and is reported.
func InitLogger(c *logConfig) error {
	level, err := c.level()
	zerolog.SetGlobalLevel(level)

	ctx := zerolog.New(c.writer()).With().Timestamp()
	if c.WithCaller {
		ctx = ctx.Caller()
	}
	log.Logger = ctx.Logger()

	return err
}

func initLogger() {
	cobra.CheckErr(InitLogger(newLogConfig(viper.GetViper())))
}
