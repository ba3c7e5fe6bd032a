// Package fakebackend serves a scripted imitation of the chat backend. The
// response stream is split at arbitrary byte boundaries so that clients see
// objects torn across chunks, like they do behind real proxies.
package fakebackend

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-go-golems/ragchat/pkg/api"
	"github.com/go-go-golems/ragchat/pkg/conversation"
	"github.com/rs/zerolog/log"
)

type Script struct {
	// Envelopes are marshalled and joined with newlines.
	Envelopes []*api.Envelope
	// Raw replaces Envelopes when set.
	Raw string
	// ChunkSize splits the body into chunks of that many bytes. 0 sends it at once.
	ChunkSize int
	Delay     time.Duration
	Status    int
}

func (s Script) Body() (string, error) {
	if s.Raw != "" {
		return s.Raw, nil
	}
	parts := make([]string, 0, len(s.Envelopes))
	for _, e := range s.Envelopes {
		b, err := json.Marshal(e)
		if err != nil {
			return "", err
		}
		parts = append(parts, string(b))
	}
	return strings.Join(parts, "\n") + "\n", nil
}

// Chunks splits body into pieces of at most size bytes. Multi-byte runes may
// end up split over two chunks.
func Chunks(body string, size int) []string {
	if size <= 0 || size >= len(body) {
		return []string{body}
	}
	ret := []string{}
	for len(body) > 0 {
		n := size
		if n > len(body) {
			n = len(body)
		}
		ret = append(ret, body[:n])
		body = body[n:]
	}
	return ret
}

type Backend struct {
	// Script decides what to stream for a conversation request. Defaults to EchoScript.
	Script        func(req *api.ConversationRequest) Script
	Users         []api.UserInfo
	SystemMessage string
	IndexDate     string

	mu       sync.Mutex
	requests []*api.ConversationRequest
	feedback []*api.Feedback
}

func New() *Backend {
	return &Backend{
		Script:        EchoScript,
		Users:         []api.UserInfo{{UserID: "local-user", ProviderName: "fake"}},
		SystemMessage: "You are a helpful assistant.",
		IndexDate:     time.Now().UTC().Format("2006-01-02"),
	}
}

func (b *Backend) Requests() []*api.ConversationRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*api.ConversationRequest{}, b.requests...)
}

func (b *Backend) Feedback() []*api.Feedback {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*api.Feedback{}, b.feedback...)
}

func (b *Backend) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/conversation", b.handleConversation)
	mux.HandleFunc("/.auth/me", func(w http.ResponseWriter, r *http.Request) {
		if len(b.Users) == 0 {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, b.Users)
	})
	mux.HandleFunc("/getSystemMessage", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(b.SystemMessage))
	})
	mux.HandleFunc("/azureindexdate", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(b.IndexDate))
	})
	mux.HandleFunc("/feedback", b.handleFeedback)
	return mux
}

func (b *Backend) handleConversation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	req := &api.ConversationRequest{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	b.mu.Lock()
	b.requests = append(b.requests, req)
	script := b.Script
	b.mu.Unlock()
	if script == nil {
		script = EchoScript
	}

	s := script(req)
	body, err := s.Body()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json-lines")
	if s.Status != 0 {
		w.WriteHeader(s.Status)
	}
	flusher, _ := w.(http.Flusher)
	for _, chunk := range Chunks(body, s.ChunkSize) {
		if s.Delay > 0 {
			select {
			case <-r.Context().Done():
				log.Debug().Msg("client went away, stopping stream")
				return
			case <-time.After(s.Delay):
			}
		}
		if _, err := w.Write([]byte(chunk)); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func (b *Backend) handleFeedback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	fb := &api.Feedback{}
	if err := json.NewDecoder(r.Body).Decode(fb); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	b.mu.Lock()
	b.feedback = append(b.feedback, fb)
	b.mu.Unlock()
	writeJSON(w, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// EchoScript answers with one tool message citing a document and an assistant
// message that grows word by word over successive envelopes.
func EchoScript(req *api.ConversationRequest) Script {
	question := ""
	if idx := conversation.LastIndexOfRole(req.Messages, conversation.RoleUser); idx >= 0 {
		question = req.Messages[idx].Content
	}
	tool := conversation.NewToolMessage(fmt.Sprintf(
		`{"citations":[{"id":"doc-1","title":"About %s","filepath":"kb/echo.md","url":null,"content":"Notes on %s."}],"intent":"[\"%s\"]"}`,
		jsonEscape(question), jsonEscape(question), jsonEscape(question)))

	words := strings.Fields(fmt.Sprintf("You asked: %s [doc1]", question))
	envelopes := make([]*api.Envelope, 0, len(words))
	for i := range words {
		envelopes = append(envelopes, &api.Envelope{
			ID:     "fake",
			Object: "chat.completion.chunk",
			Choices: []api.Choice{{Messages: []conversation.Message{
				tool,
				conversation.NewAssistantMessage(strings.Join(words[:i+1], " ")),
			}}},
		})
	}
	return Script{
		Envelopes: envelopes,
		ChunkSize: 17,
		Delay:     20 * time.Millisecond,
	}
}

func jsonEscape(s string) string {
	b, _ := json.Marshal(s)
	return string(b[1 : len(b)-1])
}
