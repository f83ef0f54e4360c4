package cli

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kilupskalvis/orderset/internal/storage"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Bring the storage schema up to date",
	Long: `Open the configured backend, apply pending schema migrations and create the
tables of every configured collection. Only the sqlite backend is versioned;
bbolt and memory need no migrations.`,
	Run: runMigrate,
}

func runMigrate(_ *cobra.Command, _ []string) {
	ctx := context.Background()
	c := initContext(ctx)
	defer c.Close()

	msg, err := migrate(ctx, c)
	if err != nil {
		exitError("%v", err)
	}
	color.New(color.FgGreen).Println(msg)
}

func migrate(ctx context.Context, c *cmdContext) (string, error) {
	db, ok := c.Backend.(*storage.SQLite)
	if !ok {
		return fmt.Sprintf("%s backend needs no migrations (%d collections ready)",
			c.Config.Backend, len(c.Catalog.Names())), nil
	}
	if err := db.RunMigrations(ctx); err != nil {
		return "", fmt.Errorf("failed to run migrations: %w", err)
	}
	version, err := db.SchemaVersion(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("sqlite schema at version %d (%d collections ready)", version, len(c.Catalog.Names())), nil
}
