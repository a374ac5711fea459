package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate checks a loaded configuration for values the server cannot
// start without. The workspace section may legitimately be empty before
// `dbxmcp init` has run, so its checks live in ValidateWorkspace and are
// only enforced where a workspace connection is actually needed.
func Validate(config Config) error {
	if config.Auth.Profile == "" {
		return &ConfigError{Field: "auth.profile", Message: "profile must not be empty"}
	}
	if config.Auth.ExpiryMargin < 0 {
		return &ConfigError{Field: "auth.expiryMargin", Message: "must not be negative"}
	}
	if config.Auth.AssumedTTL <= 0 {
		return &ConfigError{Field: "auth.assumedTTL", Message: "must be positive"}
	}
	if config.SampleSize <= 0 {
		return &ConfigError{Field: "sampleSize", Message: "must be positive"}
	}

	switch config.Transport.Mode {
	case TransportStdio:
	case TransportStreamableHTTP:
		if config.Transport.Port <= 0 || config.Transport.Port > 65535 {
			return &ConfigError{
				Field:   "transport.port",
				Message: fmt.Sprintf("invalid port %d", config.Transport.Port),
			}
		}
	default:
		return &ConfigError{
			Field:   "transport.mode",
			Message: fmt.Sprintf("unknown transport %q", config.Transport.Mode),
		}
	}

	if config.Workspace.URL != "" {
		if err := validateWorkspaceURL(config.Workspace.URL); err != nil {
			return err
		}
	}

	return nil
}

// ValidateWorkspace checks that the workspace section is complete enough
// to serve metadata tools.
func ValidateWorkspace(workspace WorkspaceConfig) error {
	if workspace.URL == "" {
		return &ConfigError{
			Field:   "workspace.url",
			Message: "workspace URL is not configured, run `dbxmcp init` first",
		}
	}
	if err := validateWorkspaceURL(workspace.URL); err != nil {
		return err
	}
	if workspace.WarehouseID == "" {
		return &ConfigError{
			Field:   "workspace.warehouseId",
			Message: "SQL warehouse is not configured, run `dbxmcp init` first",
		}
	}
	return nil
}

func validateWorkspaceURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return &ConfigError{Field: "workspace.url", Message: fmt.Sprintf("invalid URL: %v", err)}
	}
	if !strings.HasPrefix(parsed.Scheme, "http") || parsed.Host == "" {
		return &ConfigError{
			Field:   "workspace.url",
			Message: fmt.Sprintf("expected an https workspace URL, got %q", raw),
		}
	}
	return nil
}
