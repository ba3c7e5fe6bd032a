// Package citations parses the payload of tool messages.
//
// A tool message carries a JSON document with a list of the documents the
// answer was grounded on. The payload is produced by the retrieval side of
// the backend and is not trusted: anything that does not match the expected
// shape yields an empty list.
package citations

import (
	"encoding/json"
	"sync"

	"github.com/go-go-golems/ragchat/pkg/conversation"
	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"
)

// Text is a string that the backend may also send as null.
type Text string

func (Text) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		AnyOf: []*jsonschema.Schema{
			{Type: "string"},
			{Type: "null"},
		},
	}
}

type Citation struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Filepath string `json:"filepath"`
	URL      string `json:"url"`
	Content  string `json:"content"`
}

// Label is what a citation is shown as: its title, else its file, else its id.
func (c Citation) Label() string {
	switch {
	case c.Title != "":
		return c.Title
	case c.Filepath != "":
		return c.Filepath
	default:
		return c.ID
	}
}

type rawCitation struct {
	ID        Text `json:"id,omitempty"`
	Title     Text `json:"title,omitempty"`
	Filepath  Text `json:"filepath,omitempty"`
	URL       Text `json:"url,omitempty"`
	Content   Text `json:"content,omitempty"`
	ChunkID   Text `json:"chunk_id,omitempty"`
	ReindexID Text `json:"reindex_id,omitempty"`
}

// ToolMessageContent is the document carried by a tool message.
type ToolMessageContent struct {
	Citations []rawCitation `json:"citations" jsonschema:"required"`
	Intent    Text          `json:"intent,omitempty"`
}

var (
	schemaOnce sync.Once
	schema     *gojsonschema.Schema
	schemaErr  error
)

// Schema returns the JSON schema tool payloads are validated against.
func Schema() *jsonschema.Schema {
	r := &jsonschema.Reflector{
		AllowAdditionalProperties:  true,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	return r.Reflect(&ToolMessageContent{})
}

func compiledSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		s := Schema()
		// validated as draft-07, the reflector stamps 2020-12
		s.Version = ""
		b, err := json.Marshal(s)
		if err != nil {
			schemaErr = errors.Wrap(err, "could not marshal tool message schema")
			return
		}
		schema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(b))
		if schemaErr != nil {
			schemaErr = errors.Wrap(schemaErr, "could not compile tool message schema")
		}
	})
	return schema, schemaErr
}

// Parse validates and decodes a tool payload.
func Parse(payload string) (*ToolMessageContent, error) {
	s, err := compiledSchema()
	if err != nil {
		return nil, err
	}
	result, err := s.Validate(gojsonschema.NewStringLoader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "tool payload is not JSON")
	}
	if !result.Valid() {
		descs := []string{}
		for _, e := range result.Errors() {
			descs = append(descs, e.String())
		}
		return nil, errors.Errorf("tool payload does not match schema: %v", descs)
	}

	ret := &ToolMessageContent{}
	if err := json.Unmarshal([]byte(payload), ret); err != nil {
		return nil, errors.Wrap(err, "could not decode tool payload")
	}
	return ret, nil
}

// Extract returns the citations of a tool payload, with absent fields as
// empty strings. It never fails: a malformed payload gives an empty list.
func Extract(payload string) []Citation {
	content, err := Parse(payload)
	if err != nil {
		log.Debug().Err(err).Msg("ignoring malformed tool message")
		return []Citation{}
	}
	return content.Normalized()
}

func (t *ToolMessageContent) Normalized() []Citation {
	ret := make([]Citation, 0, len(t.Citations))
	for _, c := range t.Citations {
		ret = append(ret, Citation{
			ID:       string(c.ID),
			Title:    string(c.Title),
			Filepath: string(c.Filepath),
			URL:      string(c.URL),
			Content:  string(c.Content),
		})
	}
	return ret
}

// ForMessage returns the citations of the assistant message at index, taken
// from the tool message right before it.
func ForMessage(messages []conversation.Message, index int) []Citation {
	tool, ok := conversation.PrecedingToolMessage(messages, index)
	if !ok {
		return []Citation{}
	}
	return Extract(tool.Content)
}
