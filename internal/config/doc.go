// Package config implements configuration loading for the Wireless Discovery
// Container.
//
// Configuration merges three layers in order: built-in baseline defaults,
// WDC_* environment variable overrides, and an optional config.json in the
// working directory. The merged result is validated before use.
package config
