package cmd

import (
	"context"

	"github.com/urfave/cli/v2"

	"github.com/telco-platform/agent-deployer/pkg/config"
	"github.com/telco-platform/agent-deployer/pkg/pipeline"
)

// Cleanup runs the retention cleanup once and exits.
func Cleanup(cliCtx *cli.Context) (int, error) {
	cfg, err := configure(cliCtx)
	if err != nil {
		return 1, err
	}

	// One-shot invocation bypasses the serve-mode schedules and the enabled
	// gate, asking for a cleanup explicitly is enough.
	cfg.Schedule = config.Schedule{}
	cfg.Cleanup.Enabled = true

	ctx, ctxCancel := context.WithCancel(context.Background())
	defer ctxCancel()

	c, err := pipeline.New(ctx, cfg, cliCtx.App.Version)
	if err != nil {
		return 1, err
	}

	if err := c.TaskHandlerRetentionCleanup(ctx); err != nil {
		return 1, err
	}

	return 0, nil
}
