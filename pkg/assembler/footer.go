package assembler

import (
	"bytes"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig"
	"github.com/pkg/errors"
)

// FooterDelimiter separates an answer from its supplementary resources
// footer. Content that already contains it is never augmented again.
const FooterDelimiter = "\n\n---\n"

const DefaultFooterTemplate = `Please help us learn by rating each answer with the thumbs up and down controls.

The assistant is still growing, and your questions help us improve it. In the meantime:

- For prompt engineering questions, check out the [community]({{ .CommunityURL }})
- For general questions, [search for "{{ .Question | trim | trunc 80 }}"]({{ .SearchURL }}{{ .Question | trim | urlquery }})

Thank you for your understanding!`

const (
	DefaultSearchURL    = "https://www.bing.com/search?q="
	DefaultCommunityURL = "https://github.com/go-go-golems/ragchat/discussions"
)

type FooterData struct {
	Question     string
	SearchURL    string
	CommunityURL string
}

// Footer renders the supplementary resources appended to final answers.
type Footer struct {
	tmpl         *template.Template
	searchURL    string
	communityURL string
}

type FooterOption func(*Footer)

func WithSearchURL(u string) FooterOption {
	return func(f *Footer) {
		if u != "" {
			f.searchURL = u
		}
	}
}

func WithCommunityURL(u string) FooterOption {
	return func(f *Footer) {
		if u != "" {
			f.communityURL = u
		}
	}
}

// NewFooter parses text as a text/template with the sprig functions. An
// empty text selects DefaultFooterTemplate.
func NewFooter(text string, options ...FooterOption) (*Footer, error) {
	if strings.TrimSpace(text) == "" {
		text = DefaultFooterTemplate
	}
	tmpl, err := template.New("footer").Funcs(sprig.TxtFuncMap()).Parse(text)
	if err != nil {
		return nil, errors.Wrap(err, "could not parse footer template")
	}
	f := &Footer{
		tmpl:         tmpl,
		searchURL:    DefaultSearchURL,
		communityURL: DefaultCommunityURL,
	}
	for _, o := range options {
		o(f)
	}
	return f, nil
}

func MustDefaultFooter() *Footer {
	f, err := NewFooter("")
	if err != nil {
		panic(err)
	}
	return f
}

func (f *Footer) Render(question string) (string, error) {
	var buf bytes.Buffer
	err := f.tmpl.Execute(&buf, FooterData{
		Question:     question,
		SearchURL:    f.searchURL,
		CommunityURL: f.communityURL,
	})
	if err != nil {
		return "", errors.Wrap(err, "could not render footer")
	}
	return buf.String(), nil
}

// Augment appends the footer for question to content, unless content
// already has one.
func (f *Footer) Augment(content string, question string) (string, error) {
	if HasFooter(content) {
		return content, nil
	}
	body, err := f.Render(question)
	if err != nil {
		return content, err
	}
	return content + FooterDelimiter + body, nil
}

func HasFooter(content string) bool {
	return strings.Contains(content, FooterDelimiter)
}

// StripFooter returns content without its footer.
func StripFooter(content string) string {
	if idx := strings.Index(content, FooterDelimiter); idx >= 0 {
		return content[:idx]
	}
	return content
}
