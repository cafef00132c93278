package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Get returns the effective value of a dotted key such as "records.event":
// the value from v when set, otherwise the default.
func Get(v *viper.Viper, key string) (interface{}, error) {
	cfg, err := Effective(v)
	if err != nil {
		return nil, err
	}
	tree, err := settingsTree(cfg)
	if err != nil {
		return nil, err
	}
	return lookup(tree, key)
}

// Set stores value under a dotted key after converting it to the key's
// type. Only scalar keys can be set; panels are lists and must be edited in
// the config file. The resulting configuration must pass Validate.
func Set(v *viper.Viper, key, value string) error {
	key = strings.ToLower(key)
	current, err := Get(v, key)
	if err != nil {
		return err
	}

	var typed interface{}
	switch cur := current.(type) {
	case string:
		typed = value
	case int:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("config: %s expects an integer, got %q", key, value)
		}
		typed = n
	case bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("config: %s expects true or false, got %q", key, value)
		}
		typed = b
	case []interface{}:
		return fmt.Errorf("config: %s is a list, edit it in the config file", key)
	case map[string]interface{}:
		return fmt.Errorf("config: %s is a section, set one of its keys instead", key)
	default:
		return fmt.Errorf("config: %s has unsupported type %T", key, cur)
	}

	trial := viper.New()
	if err := trial.MergeConfigMap(v.AllSettings()); err != nil {
		return fmt.Errorf("config: copy settings: %w", err)
	}
	trial.Set(key, typed)
	cfg, err := Effective(trial)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	v.Set(key, typed)
	return nil
}

// settingsTree renders cfg as nested maps keyed like the config file.
func settingsTree(cfg *Config) (map[string]interface{}, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("config: encode: %w", err)
	}
	var tree map[string]interface{}
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	return tree, nil
}

func lookup(tree map[string]interface{}, key string) (interface{}, error) {
	var node interface{} = tree
	for _, part := range strings.Split(strings.ToLower(key), ".") {
		m, ok := node.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("config: unknown key %q", key)
		}
		node, ok = m[part]
		if !ok {
			return nil, fmt.Errorf("config: unknown key %q", key)
		}
	}
	return node, nil
}
