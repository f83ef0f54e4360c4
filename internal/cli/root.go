// Package cli implements the orderset command-line interface.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kilupskalvis/orderset/internal/config"
	"github.com/kilupskalvis/orderset/internal/content"
	"github.com/kilupskalvis/orderset/internal/storage"
)

var (
	configPath  string
	backendFlag string
	dataDirFlag string
)

// cmdContext holds common resources for CLI commands
type cmdContext struct {
	Config  *config.Config
	Backend storage.Backend
	Catalog *content.Catalog
}

// Close releases resources held by cmdContext
func (c *cmdContext) Close() {
	if c.Backend != nil {
		c.Backend.Close()
	}
}

// loadConfig reads the config file, applies ORDERSET_* variables and then
// the global flags.
func loadConfig() *config.Config {
	cfg, err := config.Load(configPath)
	if err != nil {
		exitError("%v", err)
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		exitError("%v", err)
	}
	if backendFlag != "" {
		cfg.Backend = backendFlag
	}
	if dataDirFlag != "" {
		cfg.DataDir = dataDirFlag
	}
	if err := cfg.Validate(); err != nil {
		exitError("invalid config: %v", err)
	}
	return cfg
}

// openContext opens the configured backend and binds the catalog to it.
func openContext(ctx context.Context, cfg *config.Config) (*cmdContext, error) {
	backend, err := storage.Open(cfg.Backend, cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", cfg.Backend, err)
	}
	catalog, err := content.NewCatalog(ctx, backend, cfg.Collections)
	if err != nil {
		backend.Close()
		return nil, err
	}
	return &cmdContext{Config: cfg, Backend: backend, Catalog: catalog}, nil
}

// initContext loads the config and opens the backend, exiting on failure
func initContext(ctx context.Context) *cmdContext {
	c, err := openContext(ctx, loadConfig())
	if err != nil {
		exitError("%v", err)
	}
	return c
}

var rootCmd = &cobra.Command{
	Use:   "orderset",
	Short: "Ordered content collections",
	Long: `orderset stores small ordered content collections (achievements, strengths,
goals, timelines) and serves them over HTTP. Records keep a display order that
can be rewritten atomically with reorder.`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", os.Getenv("ORDERSET_CONFIG"), "Config file (default ./"+config.DefaultFile+")")
	pf.StringVar(&backendFlag, "backend", "", "Storage backend (sqlite|bbolt|memory), overrides the config")
	pf.StringVar(&dataDirFlag, "data-dir", "", "Data directory, overrides the config")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(reorderCmd)
	rootCmd.AddCommand(normalizeCmd)
}

// exitError prints an error and exits
func exitError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
