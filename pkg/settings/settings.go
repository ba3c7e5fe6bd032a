package settings

import (
	"os"
	"strings"
	"time"

	"github.com/huandu/go-clone"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Consent is the user's answer to whether their questions may be tracked
// together with their identity. A turn cannot start while it is unset.
type Consent string

const (
	ConsentUnset Consent = ""
	ConsentYes   Consent = "yes"
	ConsentNo    Consent = "no"
)

func ParseConsent(s string) (Consent, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return ConsentUnset, nil
	case "yes", "y", "true":
		return ConsentYes, nil
	case "no", "n", "false":
		return ConsentNo, nil
	default:
		return ConsentUnset, errors.Errorf("invalid consent %q, expected yes or no", s)
	}
}

func (c Consent) IsSet() bool {
	return c == ConsentYes || c == ConsentNo
}

// AllowsTracking reports whether identity-tagged telemetry may be recorded.
func (c Consent) AllowsTracking() bool {
	return c == ConsentYes
}

type ChatSettings struct {
	BaseURL        string        `yaml:"base-url" mapstructure:"base-url"`
	InDomainOnly   bool          `yaml:"in-domain-only" mapstructure:"in-domain-only"`
	Timeout        time.Duration `yaml:"-" mapstructure:"-"`
	TimeoutSeconds int           `yaml:"timeout" mapstructure:"timeout"`
	UserAgent      string        `yaml:"user-agent,omitempty" mapstructure:"user-agent"`
	Consent        Consent       `yaml:"consent,omitempty" mapstructure:"consent"`
	UserID         string        `yaml:"user-id,omitempty" mapstructure:"user-id"`
	FooterTemplate string        `yaml:"footer-template,omitempty" mapstructure:"footer-template"`
	SearchURL      string        `yaml:"search-url,omitempty" mapstructure:"search-url"`
	CommunityURL   string        `yaml:"community-url,omitempty" mapstructure:"community-url"`
	TelemetryDB    string        `yaml:"telemetry-db,omitempty" mapstructure:"telemetry-db"`
	MetricsAddr    string        `yaml:"metrics-addr,omitempty" mapstructure:"metrics-addr"`
}

const (
	DefaultBaseURL   = "http://localhost:5000"
	DefaultTimeout   = 30 * time.Second
	DefaultUserAgent = "ragchat"
)

func NewChatSettings() *ChatSettings {
	return &ChatSettings{
		BaseURL:        DefaultBaseURL,
		Timeout:        DefaultTimeout,
		TimeoutSeconds: int(DefaultTimeout.Seconds()),
		UserAgent:      DefaultUserAgent,
	}
}

func (c *Consent) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseConsent(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// UnmarshalYAML reads timeout as a number of seconds. Keys absent from the
// document keep their current value.
func (s *ChatSettings) UnmarshalYAML(value *yaml.Node) error {
	type Alias ChatSettings
	aux := Alias(*s)
	if err := value.Decode(&aux); err != nil {
		return err
	}
	*s = ChatSettings(aux)
	if s.TimeoutSeconds > 0 {
		s.Timeout = time.Duration(s.TimeoutSeconds) * time.Second
	}
	return nil
}

func (s *ChatSettings) Clone() *ChatSettings {
	return clone.Clone(s).(*ChatSettings)
}

func (s *ChatSettings) Validate() error {
	if s.BaseURL == "" {
		return errors.New("base-url must not be empty")
	}
	if s.Timeout < 0 {
		return errors.New("timeout must not be negative")
	}
	if !s.Consent.IsSet() && s.Consent != ConsentUnset {
		return errors.Errorf("invalid consent %q", s.Consent)
	}
	return nil
}

// NewChatSettingsFromYAML loads settings from a YAML file on top of the defaults.
func NewChatSettingsFromYAML(path string) (*ChatSettings, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read settings %s", path)
	}
	s := NewChatSettings()
	if err := yaml.Unmarshal(b, s); err != nil {
		return nil, errors.Wrapf(err, "could not parse settings %s", path)
	}
	return s, s.Validate()
}

// NewChatSettingsFromViper reads every key that is set in v on top of the defaults.
func NewChatSettingsFromViper(v *viper.Viper) (*ChatSettings, error) {
	s := NewChatSettings()
	if v.IsSet("base-url") {
		s.BaseURL = v.GetString("base-url")
	}
	if v.IsSet("in-domain-only") {
		s.InDomainOnly = v.GetBool("in-domain-only")
	}
	if v.IsSet("timeout") {
		s.TimeoutSeconds = v.GetInt("timeout")
		s.Timeout = time.Duration(s.TimeoutSeconds) * time.Second
	}
	if v.IsSet("user-agent") {
		s.UserAgent = v.GetString("user-agent")
	}
	if v.IsSet("consent") {
		c, err := ParseConsent(v.GetString("consent"))
		if err != nil {
			return nil, err
		}
		s.Consent = c
	}
	s.UserID = v.GetString("user-id")
	s.FooterTemplate = v.GetString("footer-template")
	s.SearchURL = v.GetString("search-url")
	s.CommunityURL = v.GetString("community-url")
	s.TelemetryDB = v.GetString("telemetry-db")
	s.MetricsAddr = v.GetString("metrics-addr")

	return s, s.Validate()
}
