package settings

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// SetConfigValue sets key to value in the YAML config file at path, keeping
// the rest of the file and its comments. The file is created if missing.
func SetConfigValue(path string, key string, value string) error {
	root, err := readConfigNode(path)
	if err != nil {
		return err
	}

	node := findOrCreateScalar(root, key)
	node.Value = value
	node.Tag = "!!str"
	node.Style = 0

	return writeConfigNode(path, root)
}

// ConfigValue returns the scalar value of key in the config file at path.
func ConfigValue(path string, key string) (string, bool, error) {
	root, err := readConfigNode(path)
	if err != nil {
		return "", false, err
	}
	if len(root.Content) == 0 || root.Content[0].Kind != yaml.MappingNode {
		return "", false, nil
	}
	m := root.Content[0]
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1].Value, true, nil
		}
	}
	return "", false, nil
}

func readConfigNode(path string) (*yaml.Node, error) {
	root := &yaml.Node{Kind: yaml.DocumentNode}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return root, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "could not read config file")
	}
	if err := yaml.Unmarshal(data, root); err != nil {
		return nil, errors.Wrap(err, "could not parse config file")
	}
	if root.Kind == 0 {
		root.Kind = yaml.DocumentNode
	}
	return root, nil
}

func findOrCreateScalar(root *yaml.Node, key string) *yaml.Node {
	var mapNode *yaml.Node
	if len(root.Content) > 0 && root.Content[0].Kind == yaml.MappingNode {
		mapNode = root.Content[0]
	} else {
		mapNode = &yaml.Node{Kind: yaml.MappingNode}
		root.Content = []*yaml.Node{mapNode}
	}

	for i := 0; i+1 < len(mapNode.Content); i += 2 {
		if mapNode.Content[i].Value == key {
			if mapNode.Content[i+1].Kind != yaml.ScalarNode {
				mapNode.Content[i+1] = &yaml.Node{Kind: yaml.ScalarNode}
			}
			return mapNode.Content[i+1]
		}
	}

	valueNode := &yaml.Node{Kind: yaml.ScalarNode}
	mapNode.Content = append(mapNode.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Value: key},
		valueNode)
	return valueNode
}

func writeConfigNode(path string, root *yaml.Node) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "could not create config directory")
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "could not open config file for writing")
	}
	defer func() {
		_ = f.Close()
	}()

	encoder := yaml.NewEncoder(f)
	encoder.SetIndent(2)
	if err := encoder.Encode(root); err != nil {
		return errors.Wrap(err, "could not write config file")
	}
	return encoder.Close()
}
