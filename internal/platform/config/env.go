// Package config loads binary configuration from the environment, with an
// optional TOML file as fallback.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// ParseEnv loads env-tagged fields of target from the process environment.
func ParseEnv(target any) error {
	return parse(target, env.Options{})
}

func parse(target any, opts env.Options) error {
	if err := env.ParseWithOptions(target, opts); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
