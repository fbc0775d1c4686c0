package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/telco-platform/agent-deployer/internal/cmd"
)

// Run handles the instantiation of the CLI application.
func Run(version string, args []string) {
	err := NewApp(version, time.Now()).Run(args)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// NewApp configures the CLI application.
func NewApp(version string, start time.Time) (app *cli.App) {
	app = cli.NewApp()
	app.Name = "agent-deployer"
	app.Version = version
	app.Usage = "deploy ML agents onto model serving endpoints"
	app.EnableBashCompletion = true

	app.Flags = cli.FlagsByName{
		&cli.StringFlag{
			Name:    "internal-monitoring-listener-address",
			Aliases: []string{"m"},
			EnvVars: []string{"ADPL_INTERNAL_MONITORING_LISTENER_ADDRESS"},
			Usage:   "internal monitoring listener address",
		},
	}

	configFlag := &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		EnvVars: []string{"ADPL_CONFIG"},
		Usage:   "config `file`",
		Value:   "./agent-deployer.yml",
	}

	platformTokenFlag := &cli.StringFlag{
		Name:    "platform-token",
		EnvVars: []string{"ADPL_PLATFORM_TOKEN"},
		Usage:   "platform API `token`",
	}

	redisURLFlag := &cli.StringFlag{
		Name:    "redis-url",
		EnvVars: []string{"ADPL_REDIS_URL"},
		Usage:   "redis `url` for an HA setup (format: redis[s]://[:password@]host[:port][/db-number][?option=value])",
	}

	modelVersionFlag := &cli.IntFlag{
		Name:    "model-version",
		EnvVars: []string{"ADPL_MODEL_VERSION"},
		Usage:   "pin the model `version` to deploy (defaults to the latest registered one)",
	}

	gitCommitFlag := &cli.StringFlag{
		Name:    "git-commit",
		EnvVars: []string{"ADPL_GIT_COMMIT"},
		Usage:   "git commit `sha` to tag the serving endpoint with",
	}

	webhookSecretTokenFlag := &cli.StringFlag{
		Name:    "webhook-secret-token",
		EnvVars: []string{"ADPL_WEBHOOK_SECRET_TOKEN"},
		Usage:   "`token` used to authenticate incoming webhook requests",
	}

	app.Commands = cli.CommandsByName{
		{
			Name:   "deploy",
			Usage:  "run the deployment pipeline once and exit",
			Action: cmd.ExecWrapper(cmd.Deploy),
			Flags: cli.FlagsByName{
				configFlag,
				platformTokenFlag,
				redisURLFlag,
				modelVersionFlag,
				gitCommitFlag,
			},
		},
		{
			Name:   "serve",
			Usage:  "run the deployer in long-lived mode, exposing metrics, webhook and scheduled tasks",
			Action: cmd.ExecWrapper(cmd.Serve),
			Flags: cli.FlagsByName{
				configFlag,
				platformTokenFlag,
				redisURLFlag,
				modelVersionFlag,
				gitCommitFlag,
				webhookSecretTokenFlag,
			},
		},
		{
			Name:   "cleanup",
			Usage:  "run the retention cleanup once and exit",
			Action: cmd.ExecWrapper(cmd.Cleanup),
			Flags: cli.FlagsByName{
				configFlag,
				platformTokenFlag,
				redisURLFlag,
				modelVersionFlag,
			},
		},
		{
			Name:   "smoke-test",
			Usage:  "smoke test the serving endpoint once and exit",
			Action: cmd.ExecWrapper(cmd.SmokeTest),
			Flags: cli.FlagsByName{
				configFlag,
				platformTokenFlag,
				redisURLFlag,
			},
		},
		{
			Name:   "monitor",
			Usage:  "display the internal monitoring TUI of a running deployer",
			Action: cmd.ExecWrapper(cmd.Monitor),
		},
		{
			Name:   "validate-config",
			Usage:  "parse and validate the configuration file",
			Action: cmd.ExecWrapper(cmd.Validate),
			Flags: cli.FlagsByName{
				configFlag,
				platformTokenFlag,
			},
		},
	}

	app.Metadata = map[string]interface{}{
		"startTime": start,
	}

	return
}
