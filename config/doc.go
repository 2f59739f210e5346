// Package config loads and validates the application configuration:
// a YAML file layered with BIOQUERY_* environment overrides, endpoint
// API keys resolved from the environment, and defaults for everything
// left unset.
package config
