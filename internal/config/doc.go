// Package config loads and validates the service configuration from YAML.
package config
