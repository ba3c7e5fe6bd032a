package conversation

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Transcript is the on-disk form of a conversation log.
type Transcript struct {
	SavedAt  time.Time `yaml:"saved_at"`
	Messages []Message `yaml:"messages"`
}

func SaveYAML(path string, messages []Message) error {
	t := Transcript{
		SavedAt:  time.Now().UTC(),
		Messages: messages,
	}
	b, err := yaml.Marshal(&t)
	if err != nil {
		return errors.Wrap(err, "could not marshal transcript")
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return errors.Wrapf(err, "could not write transcript %s", path)
	}
	return nil
}

func LoadYAML(path string) ([]Message, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read transcript %s", path)
	}
	var t Transcript
	if err := yaml.Unmarshal(b, &t); err != nil {
		return nil, errors.Wrapf(err, "could not parse transcript %s", path)
	}
	for i, m := range t.Messages {
		if !m.Role.IsValid() {
			return nil, errors.Errorf("transcript %s: message %d has unknown role %q", path, i, m.Role)
		}
	}
	return t.Messages, nil
}
