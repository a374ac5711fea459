package config

// Config is the root configuration for dbxmcp.
type Config struct {
	Workspace  WorkspaceConfig `yaml:"workspace"`
	Auth       AuthConfig      `yaml:"auth"`
	Transport  TransportConfig `yaml:"transport"`
	SampleSize int             `yaml:"sampleSize"`
}

// WorkspaceConfig identifies the Databricks workspace and the SQL
// warehouse used for statement execution.
type WorkspaceConfig struct {
	URL           string `yaml:"url"`
	WarehouseID   string `yaml:"warehouseId"`
	WarehouseName string `yaml:"warehouseName"`
	Catalog       string `yaml:"catalog"`
}

// AuthConfig controls the CLI-based authentication subsystem.
type AuthConfig struct {
	// Profile is the databricks CLI profile dbxmcp authenticates under.
	Profile string `yaml:"profile"`

	// ExpiryMargin is subtracted from a credential's expiry when deciding
	// whether it is still usable. Accounts for clock skew and the latency
	// of the request that will carry the token.
	ExpiryMargin Duration `yaml:"expiryMargin"`

	// AssumedTTL is applied when the CLI reports a token without an
	// expiry.
	AssumedTTL Duration `yaml:"assumedTTL"`

	// LoginTimeout bounds the interactive browser login so a hung
	// external process cannot hold the profile's refresh lock forever.
	LoginTimeout Duration `yaml:"loginTimeout"`

	// TokenTimeout bounds the non-interactive token fetch.
	TokenTimeout Duration `yaml:"tokenTimeout"`
}

// TransportMode selects how the MCP server is exposed.
type TransportMode string

const (
	TransportStdio          TransportMode = "stdio"
	TransportStreamableHTTP TransportMode = "streamable-http"
)

// TransportConfig configures the MCP transport.
type TransportConfig struct {
	Mode TransportMode `yaml:"mode"`
	Host string        `yaml:"host"`
	Port int           `yaml:"port"`
}
