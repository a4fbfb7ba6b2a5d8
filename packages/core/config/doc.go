// Package config handles configuration loading and management for restapi.
//
// It provides functionality for:
//   - Loading configuration from .restapi.yaml, restapi.yaml or .restapi.json files
//   - Expanding ${VAR} references from the environment
//   - Default configuration values
//   - Merging command-line overrides onto file settings
package config
