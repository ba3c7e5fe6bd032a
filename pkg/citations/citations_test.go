package citations

import (
	"encoding/json"
	"testing"

	"github.com/go-go-golems/ragchat/pkg/conversation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractNormalizesMissingFields(t *testing.T) {
	out := Extract(`{"citations":[{"title":"Doc1","filepath":"/a"}]}`)
	require.Len(t, out, 1)
	assert.Equal(t, Citation{Title: "Doc1", Filepath: "/a", URL: "", Content: ""}, out[0])
}

func TestExtractAcceptsNullsAndExtraFields(t *testing.T) {
	payload := `{
		"citations": [
			{"id": "1", "title": null, "filepath": "kb/a.md", "url": null, "content": "alpha", "chunk_id": "0", "metadata": {"x": 1}},
			{"id": "2", "title": "Beta", "content": "beta"}
		],
		"intent": "[\"what is beta\"]"
	}`
	out := Extract(payload)
	require.Len(t, out, 2)
	assert.Equal(t, "", out[0].Title)
	assert.Equal(t, "kb/a.md", out[0].Label())
	assert.Equal(t, "alpha", out[0].Content)
	assert.Equal(t, "Beta", out[1].Label())
}

func TestExtractMalformedReturnsEmpty(t *testing.T) {
	for _, payload := range []string{
		``,
		`not json`,
		`{"citations":[{"title":"Doc1"`,
		`{}`,
		`{"citations":null}`,
		`{"citations":"Doc1"}`,
		`{"citations":[42]}`,
		`{"citations":[{"title":7}]}`,
		`[]`,
	} {
		out := Extract(payload)
		assert.NotNil(t, out, payload)
		assert.Empty(t, out, payload)
	}
}

func TestParseReportsSchemaErrors(t *testing.T) {
	_, err := Parse(`{"citations":[{"url":["a"]}]}`)
	require.Error(t, err)

	c, err := Parse(`{"citations":[]}`)
	require.NoError(t, err)
	assert.Empty(t, c.Normalized())
}

func TestSchemaShape(t *testing.T) {
	b, err := json.Marshal(Schema())
	require.NoError(t, err)

	m := map[string]interface{}{}
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Equal(t, []interface{}{"citations"}, m["required"])
	props, ok := m["properties"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, props, "citations")
	assert.Contains(t, props, "intent")
}

func TestForMessage(t *testing.T) {
	log := []conversation.Message{
		conversation.NewUserMessage("q"),
		conversation.NewToolMessage(`{"citations":[{"title":"Doc1","filepath":"/a"}]}`),
		conversation.NewAssistantMessage("a [doc1]"),
		conversation.NewUserMessage("q2"),
		conversation.NewAssistantMessage("a2"),
	}
	out := ForMessage(log, 2)
	require.Len(t, out, 1)
	assert.Equal(t, "Doc1", out[0].Title)

	assert.Empty(t, ForMessage(log, 4))
	assert.Empty(t, ForMessage(log, 1))
}
