// Package config handles configuration loading for coven-relay.
//
// # Overview
//
// Configuration is loaded from a TOML or YAML file with environment variable
// expansion. The package fills defaults and validates the result.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from COVEN_RELAY_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/coven/relay.toml
//  3. ~/.config/coven/relay.toml
//
// Files ending in .yaml or .yml are decoded as YAML; everything else as TOML.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	[completion]
//	api_key = "${OPENAI_API_KEY}"
//
// Unset variables expand to the empty string.
//
// # Defaults
//
//   - completion.endpoint: https://api.openai.com/v1/completions
//   - completion.backend_model: text-davinci-003
//   - models.allowed: davinci, curie, babbage, ada
//   - models.enabled: davinci
//   - dedupe.ttl: 10m, dedupe.max_size: 1000
//   - logging.level: info, logging.format: text
//
// # Validation
//
// At least one frontend must be enabled, and each enabled frontend needs its
// credentials. completion.api_key is always required. models.enabled must be
// one of models.allowed.
//
// # Usage
//
//	cfg, err := config.Load(config.DefaultPath())
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
