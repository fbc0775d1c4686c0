package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/telco-platform/agent-deployer/pkg/config"
	"github.com/telco-platform/agent-deployer/pkg/pipeline"
)

// SmokeTest queries the serving endpoint with the configured smoke-test cases
// once and exits non-zero when any of them fails.
func SmokeTest(cliCtx *cli.Context) (int, error) {
	cfg, err := configure(cliCtx)
	if err != nil {
		return 1, err
	}

	cfg.Schedule = config.Schedule{}
	cfg.SmokeTest.Enabled = true

	ctx, ctxCancel := context.WithCancel(context.Background())
	defer ctxCancel()

	c, err := pipeline.New(ctx, cfg, cliCtx.App.Version)
	if err != nil {
		return 1, err
	}

	report := pipeline.SmokeTestEndpoint(ctx, c.Platform, cfg.Deployment.EndpointName, cfg.SmokeTest.Cases)

	if storeErr := c.Store.SetSmokeTestReport(ctx, report); storeErr != nil {
		return 1, storeErr
	}

	if failed := report.FailedCount(); failed > 0 {
		return 1, fmt.Errorf("%d of %d smoke-test cases failed", failed, len(report.Results))
	}

	return 0, nil
}
