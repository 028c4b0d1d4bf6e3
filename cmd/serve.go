package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/corvidmail/mail-backend/cmd/utils"
	"github.com/corvidmail/mail-backend/internal/serve"
)

type serveCmd struct{}

func (c *serveCmd) Command() *cobra.Command {
	cfg := serve.Configs{}

	var sentryDSN string
	cfgOpts := utils.ConfigOptions{
		{
			Name:        "database-url",
			Usage:       "Database connection URL",
			OptType:     utils.OptTypeString,
			ConfigKey:   &cfg.DatabaseURL,
			FlagDefault: "postgres://postgres@localhost:5432/mail-backend?sslmode=disable",
			Required:    true,
		},
		{
			Name:           "log-level",
			Usage:          `The log level used in this project. Options: "trace", "debug", "info", "warn", "error", "fatal", or "panic".`,
			OptType:        utils.OptTypeString,
			CustomSetValue: utils.SetConfigOptionLogLevel,
			ConfigKey:      &cfg.LogLevel,
			FlagDefault:    "info",
			Required:       false,
		},
		{
			Name:        "port",
			Usage:       "Port to listen and serve on",
			OptType:     utils.OptTypeInt,
			ConfigKey:   &cfg.Port,
			FlagDefault: 8085,
			Required:    false,
		},
		{
			Name:        "auth-jwt-secret",
			Usage:       "Shared secret used to verify client bearer tokens. If empty, authentication is disabled.",
			OptType:     utils.OptTypeString,
			ConfigKey:   &cfg.AuthJWTSecret,
			Required:    false,
		},
		{
			Name:        "max-changes-per-page",
			Usage:       "Maximum number of change log entries returned by a single */changes call",
			OptType:     utils.OptTypeInt,
			ConfigKey:   &cfg.MaxChangesPerPage,
			FlagDefault: 512,
			Required:    false,
		},
		{
			Name:        "max-objects-per-page",
			Usage:       "Maximum number of object ids returned by a single */query call",
			OptType:     utils.OptTypeInt,
			ConfigKey:   &cfg.MaxObjectsPerPage,
			FlagDefault: 500,
			Required:    false,
		},
		{
			Name:        "sentry-dsn",
			Usage:       "The DSN (client key) of the Sentry project. If not provided, errors are only logged.",
			OptType:     utils.OptTypeString,
			ConfigKey:   &sentryDSN,
			Required:    false,
		},
	}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Mail Backend server",
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			cfgOpts.Require()
			if err := cfgOpts.SetValues(); err != nil {
				logrus.Fatalf("Error setting values of config options: %s", err.Error())
			}
			logrus.SetLevel(cfg.LogLevel)
			cfg.SentryDSN = sentryDSN
		},
		Run: func(_ *cobra.Command, _ []string) {
			if err := serve.Serve(cfg); err != nil {
				logrus.Fatalf("Error running Serve: %s", err.Error())
			}
		},
	}
	if err := cfgOpts.Init(cmd); err != nil {
		logrus.Fatalf("Error initializing a config option: %s", err.Error())
	}

	return cmd
}
