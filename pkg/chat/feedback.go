package chat

import (
	"github.com/go-go-golems/ragchat/pkg/api"
	"github.com/go-go-golems/ragchat/pkg/citations"
	"github.com/go-go-golems/ragchat/pkg/conversation"
	"github.com/pkg/errors"
)

// NewFeedback prepares the feedback record for the assistant message at
// index: its question, its answer and the documents it cited. The rating
// fields are left for the user to fill in.
func NewFeedback(messages []conversation.Message, index int, inDomain bool) (*api.Feedback, error) {
	if index < 0 || index >= len(messages) || messages[index].Role != conversation.RoleAssistant {
		return nil, errors.Wrapf(ErrNoAssistantMessage, "index %d", index)
	}

	question := QuestionFor(messages, index)
	answer := messages[index].Content
	topDocs := []api.DocFeedback{}
	for _, c := range citations.ForMessage(messages, index) {
		topDocs = append(topDocs, api.DocFeedback{
			Title:    c.Title,
			Filepath: c.Filepath,
		})
	}

	return &api.Feedback{
		Question: &question,
		Answer:   &answer,
		TopDocs:  topDocs,
		InDomain: &inDomain,
	}, nil
}
