package cmd

import (
	"dbxmcp/internal/authcli"
	"dbxmcp/internal/config"
	"dbxmcp/internal/metadata"
	"dbxmcp/internal/token"
	"dbxmcp/internal/workspace"
)

// core bundles the auth/client/operation stack assembled from one
// loaded configuration.
type core struct {
	runner   *authcli.Runner
	tokens   *token.Manager
	clients  *workspace.Manager
	metadata *metadata.Service
}

// buildCore wires the managers together. The databricks CLI must be on
// PATH; everything else is lazy and happens on first use.
func buildCore(cfg config.Config) (*core, error) {
	runner := authcli.NewRunner(cfg.Auth.LoginTimeout.Std(), cfg.Auth.TokenTimeout.Std())
	if err := runner.CheckInstalled(); err != nil {
		return nil, err
	}

	tokens := token.NewManager(runner, cfg.Workspace.URL, cfg.Auth.ExpiryMargin.Std(), cfg.Auth.AssumedTTL.Std())
	clients := workspace.NewManager(tokens, cfg.Workspace.URL)
	service := metadata.NewService(clients, cfg.Auth.Profile, cfg.Workspace.WarehouseID, cfg.SampleSize)

	return &core{
		runner:   runner,
		tokens:   tokens,
		clients:  clients,
		metadata: service,
	}, nil
}
