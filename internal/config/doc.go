// Package config loads relay and peer configuration from YAML.
//
// ${VAR} references are expanded from the environment before parsing.
// Optional fields receive defaults; Validate reports the first invalid field
// by its YAML path.
package config
