// Package logger configures the process-wide slog logger from the
// logging level and environment in the configuration.
package logger
