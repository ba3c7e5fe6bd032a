package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var ErrUnexpectedStatus = errors.New("unexpected status")

const (
	conversationPath  = "/conversation"
	userInfoPath      = "/.auth/me"
	systemMessagePath = "/getSystemMessage"
	feedbackPath      = "/feedback"
	indexDatePath     = "/azureindexdate"
)

// Client talks to the chat backend.
//
// Conversation requests have no deadline: a stalled stream stays open until
// the caller cancels the context. The other endpoints use the configured timeout.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	userAgent  string
	headers    http.Header
}

type ClientOption func(*Client)

func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) {
		client.httpClient = c
	}
}

func WithTimeout(d time.Duration) ClientOption {
	return func(client *Client) {
		client.timeout = d
	}
}

func WithUserAgent(ua string) ClientOption {
	return func(client *Client) {
		client.userAgent = ua
	}
}

func WithHeader(key, value string) ClientOption {
	return func(client *Client) {
		client.headers.Add(key, value)
	}
}

func NewClient(baseURL string, options ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		timeout:    30 * time.Second,
		userAgent:  "ragchat",
		headers:    http.Header{},
	}
	for _, o := range options {
		o(c)
	}
	return c
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) newRequest(ctx context.Context, method, path string, body interface{}) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrapf(err, "could not marshal %s body", path)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return nil, errors.Wrapf(err, "could not create %s request", path)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	for k, vs := range c.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return req, nil
}

// Conversation posts the request and returns the raw response body. The body
// is closed when ctx is cancelled; reads then fail with the context error.
//
// A non-2xx status is not rejected here: the body is still streamed so that a
// server error envelope can reach the user.
func (c *Client) Conversation(ctx context.Context, request *ConversationRequest) (io.ReadCloser, error) {
	req, err := c.newRequest(ctx, http.MethodPost, conversationPath, request)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.Wrap(err, "conversation request failed")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Warn().
			Int("status", resp.StatusCode).
			Str("url", req.URL.String()).
			Msg("conversation endpoint returned a non-2xx status, reading body anyway")
	}
	return resp.Body, nil
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s request failed", path)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read %s response", path)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.Wrapf(ErrUnexpectedStatus, "%s returned %d", path, resp.StatusCode)
	}
	return b, nil
}

// UserInfo asks the identity provider who the current user is. A missing
// provider is not an error: the result is then empty.
func (c *Client) UserInfo(ctx context.Context) []UserInfo {
	b, err := c.do(ctx, http.MethodGet, userInfoPath, nil)
	if err != nil {
		log.Info().Err(err).Msg("No identity provider found")
		return []UserInfo{}
	}
	var ret []UserInfo
	if err := json.Unmarshal(b, &ret); err != nil {
		log.Info().Err(err).Msg("Could not parse identity provider response")
		return []UserInfo{}
	}
	return ret
}

// UserID returns the first user id reported by the identity provider, or "".
func (c *Client) UserID(ctx context.Context) string {
	infos := c.UserInfo(ctx)
	if len(infos) == 0 {
		return ""
	}
	return infos[0].UserID
}

func (c *Client) SystemMessage(ctx context.Context) (string, error) {
	b, err := c.do(ctx, http.MethodGet, systemMessagePath, nil)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// IndexDate returns the date the search index was last built, as sent by the server.
func (c *Client) IndexDate(ctx context.Context) (string, error) {
	b, err := c.do(ctx, http.MethodGet, indexDatePath, nil)
	if err != nil {
		return "", err
	}
	s := strings.TrimSpace(string(b))
	// the endpoint is sometimes served as a JSON string
	var unquoted string
	if err := json.Unmarshal([]byte(s), &unquoted); err == nil {
		return unquoted, nil
	}
	var obj struct {
		AzureIndexDate *string `json:"azure_index_date"`
	}
	if err := json.Unmarshal([]byte(s), &obj); err == nil && obj.AzureIndexDate != nil {
		return *obj.AzureIndexDate, nil
	}
	return s, nil
}

func (c *Client) SendFeedback(ctx context.Context, feedback *Feedback) error {
	if feedback.TopDocs == nil {
		feedback.TopDocs = []DocFeedback{}
	}
	_, err := c.do(ctx, http.MethodPost, feedbackPath, feedback)
	return err
}
