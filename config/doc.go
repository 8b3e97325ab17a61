// Package config loads service configuration from YAML files and
// environment variables using viper, with optional .env file support.
package config
