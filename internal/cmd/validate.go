package cmd

import (
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

// Validate checks whether the application configuration is valid.
func Validate(cliCtx *cli.Context) (int, error) {
	log.Debug("validating configuration..")

	if _, err := configure(cliCtx); err != nil {
		log.WithError(err).Error("failed to configure")

		return 1, err
	}

	log.Info("configuration is valid")

	return 0, nil
}
