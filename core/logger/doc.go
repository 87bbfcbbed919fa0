// Package logger configures structured logging for demosh and summarizes the
// JSON logs a playback session leaves behind.
package logger
