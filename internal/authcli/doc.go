// Package authcli drives the external databricks CLI for authentication.
// It exposes exactly two operations, the interactive login flow and the
// token fetch, and translates raw process output into typed results.
// Everything above it (caching, expiry, retries, single-flight) belongs
// to the token manager.
package authcli
