// Package config provides configuration structures and utilities for
// newslettercheck: CLI-level options with their defaults and validation,
// and the optional YAML file holding per-site request and audit settings.
package config
