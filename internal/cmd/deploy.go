package cmd

import (
	"context"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/telco-platform/agent-deployer/pkg/config"
	"github.com/telco-platform/agent-deployer/pkg/pipeline"
)

// Deploy runs the deployment pipeline once and exits.
func Deploy(cliCtx *cli.Context) (int, error) {
	cfg, err := configure(cliCtx)
	if err != nil {
		return 1, err
	}

	// Periodic schedules only apply in serve mode
	cfg.Schedule = config.Schedule{}

	ctx, ctxCancel := context.WithCancel(context.Background())
	defer ctxCancel()

	c, err := pipeline.New(ctx, cfg, cliCtx.App.Version)
	if err != nil {
		return 1, err
	}

	result, err := c.Run(ctx)
	if err != nil {
		return 1, err
	}

	log.WithFields(log.Fields{
		"endpoint-name":  result.EndpointName,
		"query-endpoint": result.QueryEndpoint,
		"review-app-url": result.ReviewAppURL,
	}).Info("agent deployed")

	return 0, nil
}
