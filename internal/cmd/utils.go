package cmd

import (
	"fmt"
	stdlibLog "log"
	"net/url"
	"os"
	"time"

	"github.com/go-logr/stdr"
	log "github.com/sirupsen/logrus"
	"github.com/uptrace/opentelemetry-go-extra/otellogrus"
	"github.com/urfave/cli/v2"
	"github.com/vmihailenco/taskq/v4"

	logger "github.com/telco-platform/agent-deployer/internal/logging"
	"github.com/telco-platform/agent-deployer/pkg/config"
)

var start time.Time

// configure loads and validates configuration from the CLI context, sets up
// logging and prints the effective scheduler settings. It returns a populated
// config object or an error.
func configure(ctx *cli.Context) (cfg config.Config, err error) {
	start = ctx.App.Metadata["startTime"].(time.Time)

	assertStringVariableDefined(ctx, "config")

	cfg, err = config.ParseFile(ctx.String("config"))
	if err != nil {
		return
	}

	cfg.Global, err = parseGlobalFlags(ctx)
	if err != nil {
		return
	}

	configCliOverrides(ctx, &cfg)

	if err = cfg.Validate(); err != nil {
		return
	}

	if err = logger.Configure(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	}); err != nil {
		return
	}

	// Propagate trace IDs into log entries
	log.AddHook(otellogrus.NewHook(otellogrus.WithLevels(
		log.PanicLevel,
		log.FatalLevel,
		log.ErrorLevel,
		log.WarnLevel,
	)))

	// Redirect task queue logs into the main log system
	taskq.SetLogger(stdr.New(stdlibLog.New(log.StandardLogger().WriterLevel(log.WarnLevel), "taskq", 0)))

	log.WithFields(
		log.Fields{
			"platform-endpoint":   cfg.Platform.URL,
			"platform-rate-limit": fmt.Sprintf("%drps", cfg.Platform.MaximumRequestsPerSecond),
			"model":               cfg.Model.FullName(),
			"endpoint-name":       cfg.Deployment.EndpointName,
		},
	).Info("configured")

	log.WithFields(cfg.Schedule.RetentionCleanup.Log()).Info("schedule retention cleanup")
	log.WithFields(cfg.Schedule.SmokeTest.Log()).Info("schedule endpoint smoke tests")

	return
}

// parseGlobalFlags parses global CLI flags into the Global config struct.
func parseGlobalFlags(ctx *cli.Context) (cfg config.Global, err error) {
	if listenerAddr := ctx.String("internal-monitoring-listener-address"); listenerAddr != "" {
		cfg.InternalMonitoringListenerAddress, err = url.Parse(listenerAddr)
	}

	return
}

// exit logs the execution time and error (if any), then returns a CLI exit
// code.
func exit(exitCode int, err error) cli.ExitCoder {
	defer log.WithFields(
		log.Fields{
			"execution-time": time.Since(start), // nolint: govet
		},
	).Debug("exited..")

	if err != nil {
		log.WithError(err).Error()
	}

	return cli.Exit("", exitCode)
}

// ExecWrapper gracefully logs and exits our command functions. It wraps a
// function returning (int, error) into a cli.ActionFunc.
func ExecWrapper(f func(ctx *cli.Context) (int, error)) cli.ActionFunc {
	return func(ctx *cli.Context) error {
		return exit(f(ctx))
	}
}

// configCliOverrides overrides configuration fields with command-line flags
// when present.
func configCliOverrides(ctx *cli.Context, cfg *config.Config) {
	if ctx.String("platform-token") != "" {
		cfg.Platform.Token = ctx.String("platform-token")
	}

	if cfg.Server.Webhook.Enabled {
		if ctx.String("webhook-secret-token") != "" {
			cfg.Server.Webhook.SecretToken = ctx.String("webhook-secret-token")
		}
	}

	if ctx.String("redis-url") != "" {
		cfg.Redis.URL = ctx.String("redis-url")
	}

	if ctx.Int("model-version") > 0 {
		cfg.Model.Version = ctx.Int("model-version")
	}

	if ctx.String("git-commit") != "" {
		cfg.Model.GitCommit = ctx.String("git-commit")
	}
}

// assertStringVariableDefined ensures a required string flag is set. If not,
// it prints help and exits the program.
func assertStringVariableDefined(ctx *cli.Context, k string) {
	if len(ctx.String(k)) == 0 {
		_ = cli.ShowAppHelp(ctx)

		log.Errorf("'--%s' must be set!", k)
		os.Exit(2)
	}
}
