package api_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-go-golems/ragchat/pkg/api"
	"github.com/go-go-golems/ragchat/pkg/api/fakebackend"
	"github.com/go-go-golems/ragchat/pkg/conversation"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, b *fakebackend.Backend) *api.Client {
	srv := httptest.NewServer(b.Handler())
	t.Cleanup(srv.Close)
	return api.NewClient(srv.URL, api.WithTimeout(5*time.Second))
}

func TestConversationPostsMessagesAndSettings(t *testing.T) {
	b := fakebackend.New()
	b.Script = func(req *api.ConversationRequest) fakebackend.Script {
		return fakebackend.Script{Raw: `{"choices":[{"messages":[{"role":"assistant","content":"ok"}]}]}` + "\n"}
	}
	c := newServer(t, b)

	body, err := c.Conversation(context.Background(), &api.ConversationRequest{
		Messages: []conversation.Message{conversation.NewUserMessage("What is LangChain?")},
		Settings: api.RequestSettings{InDomainOnly: true},
	})
	require.NoError(t, err)
	defer body.Close()

	b2, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Contains(t, string(b2), `"content":"ok"`)

	reqs := b.Requests()
	require.Len(t, reqs, 1)
	assert.True(t, reqs[0].Settings.InDomainOnly)
	assert.Equal(t, "What is LangChain?", reqs[0].Messages[0].Content)
}

func TestConversationCancelledContext(t *testing.T) {
	c := newServer(t, fakebackend.New())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Conversation(ctx, &api.ConversationRequest{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestConversationNon2xxStillStreams(t *testing.T) {
	b := fakebackend.New()
	b.Script = func(req *api.ConversationRequest) fakebackend.Script {
		return fakebackend.Script{Raw: `{"error":"quota exceeded"}`, Status: http.StatusTooManyRequests}
	}
	c := newServer(t, b)

	body, err := c.Conversation(context.Background(), &api.ConversationRequest{})
	require.NoError(t, err)
	defer body.Close()
	b2, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, `{"error":"quota exceeded"}`, string(b2))
}

func TestUserInfo(t *testing.T) {
	b := fakebackend.New()
	b.Users = []api.UserInfo{{UserID: "alice@example.com", ProviderName: "aad"}}
	c := newServer(t, b)
	assert.Equal(t, "alice@example.com", c.UserID(context.Background()))

	b.Users = nil
	assert.Empty(t, c.UserInfo(context.Background()))
	assert.Equal(t, "", c.UserID(context.Background()))
}

func TestUserInfoUnreachable(t *testing.T) {
	c := api.NewClient("http://127.0.0.1:1", api.WithTimeout(time.Second))
	assert.Empty(t, c.UserInfo(context.Background()))
}

func TestSideEndpoints(t *testing.T) {
	b := fakebackend.New()
	b.SystemMessage = "be brief"
	b.IndexDate = "2024-01-31"
	c := newServer(t, b)

	s, err := c.SystemMessage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "be brief", s)

	d, err := c.IndexDate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2024-01-31", d)
}

func TestIndexDateJSONForms(t *testing.T) {
	for _, body := range []string{`"2024-01-31"`, `{"azure_index_date":"2024-01-31"}`} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(body))
		}))
		c := api.NewClient(srv.URL)
		d, err := c.IndexDate(context.Background())
		srv.Close()
		require.NoError(t, err)
		assert.Equal(t, "2024-01-31", d, body)
	}
}

func TestSendFeedback(t *testing.T) {
	b := fakebackend.New()
	c := newServer(t, b)

	q := "What is LangChain?"
	tooLong := true
	require.NoError(t, c.SendFeedback(context.Background(), &api.Feedback{
		Question: &q,
		TooLong:  &tooLong,
	}))

	fb := b.Feedback()
	require.Len(t, fb, 1)
	require.NotNil(t, fb[0].Question)
	assert.Equal(t, q, *fb[0].Question)
	assert.NotNil(t, fb[0].TopDocs)
	assert.Nil(t, fb[0].Verbatim)
}

func TestSendFeedbackErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := api.NewClient(srv.URL).SendFeedback(context.Background(), &api.Feedback{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, api.ErrUnexpectedStatus))
}

func TestResponseErrorForms(t *testing.T) {
	cases := map[string]string{
		`{"error":"plain text"}`:              "plain text",
		`{"error":{"message":"from object"}}`: "from object",
		`{"error":{"code":42}}`:               "",
		`{"error":503}`:                       "503",
	}
	for in, expected := range cases {
		e := &api.Envelope{}
		require.NoError(t, json.Unmarshal([]byte(in), e), in)
		assert.Equal(t, expected, e.ErrorText(), in)
	}

	e := &api.Envelope{}
	require.NoError(t, json.Unmarshal([]byte(`{"choices":[]}`), e))
	assert.Equal(t, "", e.ErrorText())
	assert.Nil(t, e.Messages())
}
