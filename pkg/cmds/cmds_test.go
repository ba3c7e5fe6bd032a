package cmds

import (
	"bytes"
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-go-golems/ragchat/pkg/api"
	"github.com/go-go-golems/ragchat/pkg/api/fakebackend"
	"github.com/go-go-golems/ragchat/pkg/assembler"
	"github.com/go-go-golems/ragchat/pkg/conversation"
	"github.com/go-go-golems/ragchat/pkg/settings"
	"github.com/go-go-golems/ragchat/pkg/telemetry"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBackend(t *testing.T) (*fakebackend.Backend, *settings.ChatSettings) {
	b := fakebackend.New()
	b.Script = func(req *api.ConversationRequest) fakebackend.Script {
		s := fakebackend.EchoScript(req)
		s.Delay = time.Millisecond
		return s
	}
	server := httptest.NewServer(b.Handler())
	t.Cleanup(server.Close)

	s := settings.NewChatSettings()
	s.BaseURL = server.URL
	s.Consent = settings.ConsentYes
	s.InDomainOnly = true
	return b, s
}

func TestNewSessionProbesBackend(t *testing.T) {
	_, s := newBackend(t)
	session, err := NewSession(context.Background(), s)
	require.NoError(t, err)
	defer func() {
		_ = session.Close()
	}()

	assert.Equal(t, "local-user", session.Settings.UserID)
	assert.Equal(t, "You are a helpful assistant.", session.SystemMessage)
	assert.NotEmpty(t, session.ID)
	assert.Equal(t, settings.ConsentUnset, settings.NewChatSettings().Consent)
}

func TestNewSessionRejectsInvalidSettings(t *testing.T) {
	s := settings.NewChatSettings()
	s.BaseURL = ""
	_, err := NewSession(context.Background(), s)
	require.Error(t, err)
}

func TestAskPrintsAnswerAndRecordsTelemetry(t *testing.T) {
	b, s := newBackend(t)
	dir := t.TempDir()
	s.TelemetryDB = filepath.Join(dir, "telemetry.db")
	transcript := filepath.Join(dir, "transcript.yaml")

	out := &bytes.Buffer{}
	cmd := NewAskCommand(s, AskSettings{Full: true, Save: transcript})
	require.NoError(t, cmd.RunIntoWriter(context.Background(), "hello world", out))

	assert.Contains(t, out.String(), "You asked: hello world [doc1]")
	assert.Contains(t, out.String(), assembler.FooterDelimiter)
	assert.Contains(t, out.String(), "[doc1] About hello world")

	require.Len(t, b.Requests(), 1)
	assert.True(t, b.Requests()[0].Settings.InDomainOnly)

	messages, err := conversation.LoadYAML(transcript)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Equal(t, conversation.RoleTool, messages[1].Role)
	assert.True(t, assembler.HasFooter(messages[2].Content))

	store, err := telemetry.NewSQLiteTracker(s.TelemetryDB)
	require.NoError(t, err)
	defer func() {
		_ = store.Close()
	}()
	records, err := store.Records(context.Background(), "", 0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, telemetry.NameQuestion, records[0].Name)
	assert.Equal(t, telemetry.NameAnswer, records[1].Name)
	assert.Equal(t, "local-user", records[1].Alias)
	assert.Equal(t, "You are a helpful assistant.", records[1].SystemMessage)
}

func TestAskResumesTranscript(t *testing.T) {
	b, s := newBackend(t)
	transcript := filepath.Join(t.TempDir(), "transcript.yaml")
	require.NoError(t, conversation.SaveYAML(transcript, []conversation.Message{
		conversation.NewUserMessage("first"),
		conversation.NewAssistantMessage("first answer"),
		conversation.NewErrorMessage("An error occurred."),
	}))

	cmd := NewAskCommand(s, AskSettings{Resume: transcript, Save: transcript})
	require.NoError(t, cmd.RunIntoWriter(context.Background(), "second", &bytes.Buffer{}))

	require.Len(t, b.Requests(), 1)
	sent := b.Requests()[0].Messages
	require.Len(t, sent, 3)
	assert.Equal(t, "first", sent[0].Content)
	assert.Equal(t, "second", sent[2].Content)

	messages, err := conversation.LoadYAML(transcript)
	require.NoError(t, err)
	assert.Len(t, messages, 6)
}

func TestAskPrintsRawEvents(t *testing.T) {
	_, s := newBackend(t)
	out := &bytes.Buffer{}
	cmd := NewAskCommand(s, AskSettings{PrintRawEvents: true})
	require.NoError(t, cmd.RunIntoWriter(context.Background(), "hi", out))

	assert.Contains(t, out.String(), `"type": "start"`)
	assert.Contains(t, out.String(), `"type": "partial"`)
	assert.Contains(t, out.String(), `"type": "final"`)
}

func TestAskReportsServerError(t *testing.T) {
	b, s := newBackend(t)
	b.Script = func(req *api.ConversationRequest) fakebackend.Script {
		return fakebackend.Script{Raw: `{"error":"Backend is down"}` + "\n", Status: 500}
	}

	out := &bytes.Buffer{}
	cmd := NewAskCommand(s, AskSettings{})
	err := cmd.RunIntoWriter(context.Background(), "hi", out)
	require.Error(t, err)
	assert.True(t, errors.Is(err, assembler.ErrEmptyResponse))
	assert.Contains(t, out.String(), "[error] Backend is down")
}
