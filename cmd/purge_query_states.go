package cmd

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/corvidmail/mail-backend/cmd/utils"
	"github.com/corvidmail/mail-backend/internal/data"
	"github.com/corvidmail/mail-backend/internal/db"
	utilspkg "github.com/corvidmail/mail-backend/internal/utils"
)

// purgeQueryStatesCmd deletes query-state snapshots that have not been
// accessed within the retention window. The serve path already purges
// opportunistically; this command exists for manual cleanup.
type purgeQueryStatesCmd struct{}

func (c *purgeQueryStatesCmd) Command() *cobra.Command {
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

	cmd := &cobra.Command{
		Use:   "purge-query-states",
		Short: "Delete stale query-state snapshots",
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			cfgOpts.Require()
			if err := cfgOpts.SetValues(); err != nil {
				logrus.Fatalf("Error setting values of config options: %s", err.Error())
			}
		},
		Run: func(cmd *cobra.Command, _ []string) {
			c.execute(cmd.Context(), databaseURL)
		},
	}
	if err := cfgOpts.Init(cmd); err != nil {
		logrus.Fatalf("Error initializing a config option: %s", err.Error())
	}

	return cmd
}

func (c *purgeQueryStatesCmd) execute(ctx context.Context, databaseURL string) {
	dbConnectionPool, err := db.OpenDBConnectionPool(databaseURL)
	if err != nil {
		logrus.Fatalf("Error connecting to the database: %s", err.Error())
	}
	defer utilspkg.DeferredClose(ctx, dbConnectionPool, "closing dbConnectionPool in purge-query-states")

	models, err := data.NewModels(dbConnectionPool, nil)
	if err != nil {
		logrus.Fatalf("Error creating models: %s", err.Error())
	}

	purged, err := models.QueryStates.PurgeStale(ctx, data.QueryStateTTL)
	if err != nil {
		logrus.Fatalf("Error purging stale query states: %s", err.Error())
	}
	logrus.Infof("Purged %d stale query states.", purged)
}
