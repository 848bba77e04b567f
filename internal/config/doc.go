// Package config loads dispatcher settings from a YAML or JSON file.
//
// File values are defaults; command-line flags given explicitly take
// precedence over them.
package config
