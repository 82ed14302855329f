// Package config handles application configuration loading and validation.
//
// Configuration is loaded from config.yml and validated using struct tags.
// Environment references of the form ${NAME} are expanded before parsing, so
// publishing credentials can be supplied without writing them to disk.
package config
