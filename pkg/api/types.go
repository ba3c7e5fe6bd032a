package api

import (
	"encoding/json"

	"github.com/go-go-golems/ragchat/pkg/conversation"
	"github.com/pkg/errors"
)

type RequestSettings struct {
	InDomainOnly bool `json:"in_domain_only"`
}

// ConversationRequest is the body POSTed to /conversation.
type ConversationRequest struct {
	Messages []conversation.Message `json:"messages"`
	Settings RequestSettings        `json:"settings"`
}

type Choice struct {
	Messages []conversation.Message `json:"messages"`
}

// Envelope is one decoded object of the response stream. Each envelope is a
// full snapshot of the answer so far, not a delta.
type Envelope struct {
	ID      string         `json:"id,omitempty"`
	Model   string         `json:"model,omitempty"`
	Created int64          `json:"created,omitempty"`
	Object  string         `json:"object,omitempty"`
	Choices []Choice       `json:"choices"`
	Error   *ResponseError `json:"error,omitempty"`
}

// Messages returns the messages of the first choice, or nil.
func (e *Envelope) Messages() []conversation.Message {
	if e == nil || len(e.Choices) == 0 {
		return nil
	}
	return e.Choices[0].Messages
}

// ErrorText returns the server supplied error text, if any.
func (e *Envelope) ErrorText() string {
	if e == nil || e.Error == nil {
		return ""
	}
	return e.Error.Message
}

// ResponseError is the optional error of an envelope. The backend sends
// either a bare string or an object with a message field.
type ResponseError struct {
	Message string `json:"message"`
}

func (r *ResponseError) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		r.Message = s
		return nil
	}

	var obj struct {
		Message json.RawMessage `json:"message"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		if !json.Valid(b) {
			return errors.Wrap(err, "invalid error field")
		}
		r.Message = string(b)
		return nil
	}
	if len(obj.Message) == 0 {
		return nil
	}
	var msg string
	if err := json.Unmarshal(obj.Message, &msg); err != nil {
		// keep whatever the server sent, the text is only shown to the user
		r.Message = string(obj.Message)
		return nil
	}
	r.Message = msg
	return nil
}

func (r *ResponseError) Error() string {
	return r.Message
}

type UserClaim struct {
	Type  string `json:"typ"`
	Value string `json:"val"`
}

// UserInfo is one entry of the identity provider's /.auth/me answer.
type UserInfo struct {
	AccessToken  string      `json:"access_token,omitempty"`
	ExpiresOn    string      `json:"expires_on,omitempty"`
	IDToken      string      `json:"id_token,omitempty"`
	ProviderName string      `json:"provider_name,omitempty"`
	UserClaims   []UserClaim `json:"user_claims,omitempty"`
	UserID       string      `json:"user_id"`
}

type DocFeedback struct {
	Title    string `json:"title"`
	Filepath string `json:"filepath"`
}

// Feedback is the record POSTed to /feedback. Pointer fields are sent as
// null when the user did not answer.
type Feedback struct {
	OverallResponseQuality *int          `json:"overall_response_quality"`
	OverallDocumentQuality *int          `json:"overall_document_quality"`
	Verbatim               *string       `json:"verbatim"`
	InaccurateAnswer       *bool         `json:"inaccurate_answer"`
	MissingInfo            *bool         `json:"missing_info"`
	TooLong                *bool         `json:"too_long"`
	TooShort               *bool         `json:"too_short"`
	Confusing              *bool         `json:"confusing"`
	Offensive              *bool         `json:"offensive"`
	Biased                 *bool         `json:"biased"`
	Outdated               *bool         `json:"outdated"`
	Repetitive             *bool         `json:"repetitive"`
	Fantastic              *bool         `json:"fantastic"`
	CaseNumber             *string       `json:"case_number"`
	QuestionID             *string       `json:"question_id"`
	Question               *string       `json:"question"`
	AnswerID               *string       `json:"answer_id"`
	Answer                 *string       `json:"answer"`
	ContentIndex           *string       `json:"contentIndex"`
	TopDocs                []DocFeedback `json:"top_docs"`
	InDomain               *bool         `json:"in_domain"`
}
