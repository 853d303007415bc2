// Package config loads the docgen settings from defaults, an optional YAML
// file, .env files and DOCGEN_* environment variables, then validates them
// with struct tags before any component is built.
package config
