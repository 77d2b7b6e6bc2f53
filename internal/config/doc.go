// Package config loads and validates the environment-based configuration.
package config
