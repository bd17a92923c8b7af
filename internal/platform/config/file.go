package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

// ParseEnvWithFile loads configuration from environment variables, using the
// keys of an optional TOML file as fallbacks for variables that are unset.
//
// The file is flat and keyed by variable name:
//
//	ACCOUNT_HTTP_PORT = 8080
//	ACCOUNT_OWNER_SERVICE_URL = "http://customers:8081"
func ParseEnvWithFile(target any, path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return ParseEnv(target)
	}
	fileValues, err := LoadFile(path)
	if err != nil {
		return err
	}
	environment := env.ToMap(os.Environ())
	for key, value := range fileValues {
		if _, ok := environment[key]; ok {
			continue
		}
		environment[key] = value
	}
	return parse(target, env.Options{Environment: environment})
}

// LoadFile decodes a flat TOML file into string values keyed by variable name.
func LoadFile(path string) (map[string]string, error) {
	raw := map[string]any{}
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return nil, fmt.Errorf("decode config file %s: %w", path, err)
	}
	values := make(map[string]string, len(raw))
	for key, value := range raw {
		switch typed := value.(type) {
		case map[string]any, []map[string]any:
			return nil, fmt.Errorf("config file %s: key %s must be a scalar", path, key)
		case []any:
			parts := make([]string, 0, len(typed))
			for _, item := range typed {
				parts = append(parts, fmt.Sprint(item))
			}
			values[key] = strings.Join(parts, ",")
		default:
			values[key] = fmt.Sprint(typed)
		}
	}
	return values, nil
}
