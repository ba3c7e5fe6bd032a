package settings

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConsent(t *testing.T) {
	for in, expected := range map[string]Consent{
		"":     ConsentUnset,
		"Yes":  ConsentYes,
		" no ": ConsentNo,
		"y":    ConsentYes,
	} {
		c, err := ParseConsent(in)
		require.NoError(t, err, in)
		assert.Equal(t, expected, c, in)
	}
	_, err := ParseConsent("maybe")
	require.Error(t, err)

	assert.True(t, ConsentYes.AllowsTracking())
	assert.False(t, ConsentNo.AllowsTracking())
	assert.True(t, ConsentNo.IsSet())
	assert.False(t, ConsentUnset.IsSet())
}

func TestSettingsFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
base-url: https://chat.example.com
in-domain-only: true
timeout: 5
consent: Yes
search-url: https://search.example.com/?q=
`), 0o644))

	s, err := NewChatSettingsFromYAML(path)
	require.NoError(t, err)
	assert.Equal(t, "https://chat.example.com", s.BaseURL)
	assert.True(t, s.InDomainOnly)
	assert.Equal(t, 5*time.Second, s.Timeout)
	assert.Equal(t, ConsentYes, s.Consent)
	assert.Equal(t, DefaultUserAgent, s.UserAgent)
}

func TestSettingsFromYAMLBadConsent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("consent: perhaps\n"), 0o644))
	_, err := NewChatSettingsFromYAML(path)
	require.Error(t, err)
}

func TestSettingsFromViper(t *testing.T) {
	v := viper.New()
	v.Set("base-url", "http://127.0.0.1:8080")
	v.Set("timeout", 12)
	v.Set("consent", "no")
	v.Set("telemetry-db", "/tmp/t.db")

	s, err := NewChatSettingsFromViper(v)
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8080", s.BaseURL)
	assert.Equal(t, 12*time.Second, s.Timeout)
	assert.Equal(t, ConsentNo, s.Consent)
	assert.False(t, s.InDomainOnly, "answers are not restricted to the index by default")
	assert.Equal(t, "/tmp/t.db", s.TelemetryDB)
}

func TestClone(t *testing.T) {
	s := NewChatSettings()
	c := s.Clone()
	c.BaseURL = "changed"
	assert.Equal(t, DefaultBaseURL, s.BaseURL)
}

func TestSetConfigValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ragchat", "config.yaml")

	require.NoError(t, SetConfigValue(path, "consent", "no"))
	v, ok, err := ConfigValue(path, "consent")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "no", v)

	require.NoError(t, os.WriteFile(path, []byte("# backend\nbase-url: http://example.com\nconsent: no\n"), 0o644))
	require.NoError(t, SetConfigValue(path, "consent", "yes"))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "# backend")

	s, err := NewChatSettingsFromYAML(path)
	require.NoError(t, err)
	assert.Equal(t, ConsentYes, s.Consent)
	assert.Equal(t, "http://example.com", s.BaseURL)

	_, ok, err = ConfigValue(path, "user-id")
	require.NoError(t, err)
	assert.False(t, ok)
}
