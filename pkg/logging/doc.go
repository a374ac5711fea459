// Package logging provides a thin subsystem-tagged wrapper around
// log/slog. Components log with a subsystem name ("TokenManager",
// "AuthCLI", "MCPServer") so related entries can be filtered together.
//
// Credential material must never reach this package: callers log token
// fingerprints, never token values.
package logging
