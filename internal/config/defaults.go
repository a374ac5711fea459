package config

import "time"

const (
	// DefaultProfile is the databricks CLI profile dbxmcp owns. Using a
	// dedicated profile keeps the server's credentials separate from the
	// user's interactive CLI sessions.
	DefaultProfile = "dbxmcp"

	DefaultSampleSize = 5

	DefaultExpiryMargin = 60 * time.Second
	DefaultAssumedTTL   = time.Hour
	DefaultLoginTimeout = 2 * time.Minute
	DefaultTokenTimeout = 30 * time.Second

	DefaultHTTPHost = "localhost"
	DefaultHTTPPort = 8090
)

// GetDefaultConfig returns a Config populated with defaults. Loaded
// configuration files are unmarshalled on top of this.
func GetDefaultConfig() Config {
	return Config{
		Auth: AuthConfig{
			Profile:      DefaultProfile,
			ExpiryMargin: Duration(DefaultExpiryMargin),
			AssumedTTL:   Duration(DefaultAssumedTTL),
			LoginTimeout: Duration(DefaultLoginTimeout),
			TokenTimeout: Duration(DefaultTokenTimeout),
		},
		Transport: TransportConfig{
			Mode: TransportStdio,
			Host: DefaultHTTPHost,
			Port: DefaultHTTPPort,
		},
		SampleSize: DefaultSampleSize,
	}
}
