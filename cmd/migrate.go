package cmd

import (
	"context"
	"strconv"

	migrate "github.com/rubenv/sql-migrate"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/corvidmail/mail-backend/cmd/utils"
	"github.com/corvidmail/mail-backend/internal/db"
)

type migrateCmd struct{}

func (c *migrateCmd) Command() *cobra.Command {
	var databaseURL string
	cfgOpts := utils.ConfigOptions{
		{
			Name:        "database-url",
			Usage:       "Database connection URL",
			OptType:     utils.OptTypeString,
			ConfigKey:   &databaseURL,
			FlagDefault: "postgres://postgres@localhost:5432/mail-backend?sslmode=disable",
			Required:    true,
		},
	}

	migrateCommand := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database schema migrations",
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			cfgOpts.Require()
			if err := cfgOpts.SetValues(); err != nil {
				logrus.Fatalf("Error setting values of config options: %s", err.Error())
			}
		},
	}

	upCmd := cobra.Command{
		Use:   "up [count]",
		Short: "Apply pending migrations, optionally limited to [count]",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			var count int
			if len(args) > 0 {
				var err error
				count, err = strconv.Atoi(args[0])
				if err != nil {
					logrus.Fatalf("Invalid migration count %q: %s", args[0], err.Error())
				}
			}
			c.executeMigrate(cmd.Context(), databaseURL, migrate.Up, count)
		},
	}

	downCmd := cobra.Command{
		Use:   "down [count]",
		Short: "Revert [count] applied migrations",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			count, err := strconv.Atoi(args[0])
			if err != nil {
				logrus.Fatalf("Invalid migration count %q: %s", args[0], err.Error())
			}
			c.executeMigrate(cmd.Context(), databaseURL, migrate.Down, count)
		},
	}

	migrateCommand.AddCommand(&upCmd)
	migrateCommand.AddCommand(&downCmd)
	if err := cfgOpts.Init(migrateCommand); err != nil {
		logrus.Fatalf("Error initializing a config option: %s", err.Error())
	}

	return migrateCommand
}

func (c *migrateCmd) executeMigrate(ctx context.Context, databaseURL string, direction migrate.MigrationDirection, count int) {
	applied, err := db.Migrate(ctx, databaseURL, direction, count)
	if err != nil {
		logrus.Fatalf("Error migrating database: %s", err.Error())
	}

	directionStr := "up"
	if direction == migrate.Down {
		directionStr = "down"
	}
	if applied == 0 {
		logrus.Info("No migrations applied.")
	} else {
		logrus.Infof("Successfully applied %d migrations %s.", applied, directionStr)
	}
}
