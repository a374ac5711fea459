// Package config loads, validates and persists the dbxmcp configuration
// file. The auth and client managers consume the loaded Config as a plain
// value object; nothing in this package talks to the workspace.
package config
