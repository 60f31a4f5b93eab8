// Package config handles loading and parsing of configuration from YAML
// files, .env files and environment variables. It defines the application
// configuration structure including server settings, cluster addresses,
// failover cooldown and threshold, store backend selection, watch interval
// and logging level.
package config
