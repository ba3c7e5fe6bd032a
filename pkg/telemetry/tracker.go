// Package telemetry records what happened in a chat session.
//
// Records are derived from published turn events. Tracking is fire and
// forget: a failing tracker is logged and never reaches the turn.
package telemetry

import (
	"context"
	"time"

	"github.com/go-go-golems/ragchat/pkg/citations"
	"github.com/rs/zerolog/log"
)

type Name string

const (
	NameQuestion Name = "Question"
	NameAnswer   Name = "Answer"
	NameError    Name = "Error"
	NameLike     Name = "Like"
	NameDislike  Name = "DisLike"
)

type Record struct {
	Name      Name      `json:"name" yaml:"name"`
	At        time.Time `json:"at" yaml:"at"`
	SessionID string    `json:"session_id,omitempty" yaml:"session_id,omitempty"`
	TurnID    string    `json:"turn_id,omitempty" yaml:"turn_id,omitempty"`
	// Alias identifies the user. It is only set when the user consented.
	Alias         string               `json:"alias,omitempty" yaml:"alias,omitempty"`
	Question      string               `json:"question,omitempty" yaml:"question,omitempty"`
	Answer        string               `json:"answer,omitempty" yaml:"answer,omitempty"`
	TopDocs       []citations.Citation `json:"top_docs,omitempty" yaml:"top_docs,omitempty"`
	Error         string               `json:"error,omitempty" yaml:"error,omitempty"`
	SystemMessage string               `json:"system_message,omitempty" yaml:"system_message,omitempty"`
}

type Tracker interface {
	Track(ctx context.Context, r *Record) error
	Close() error
}

// LogTracker writes records to the global logger.
type LogTracker struct{}

var _ Tracker = LogTracker{}

func (LogTracker) Track(ctx context.Context, r *Record) error {
	log.Info().
		Str("telemetry", string(r.Name)).
		Str("turn_id", r.TurnID).
		Str("alias", r.Alias).
		Int("top_docs", len(r.TopDocs)).
		Str("error", r.Error).
		Msg("telemetry record")
	return nil
}

func (LogTracker) Close() error {
	return nil
}

// MultiTracker sends each record to all of its trackers. It returns the
// first error but always tries every tracker.
type MultiTracker []Tracker

var _ Tracker = MultiTracker{}

func (m MultiTracker) Track(ctx context.Context, r *Record) error {
	var first error
	for _, t := range m {
		if err := t.Track(ctx, r); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m MultiTracker) Close() error {
	var first error
	for _, t := range m {
		if err := t.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
