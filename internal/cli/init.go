package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kilupskalvis/orderset/internal/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	Long: `Write a default orderset.toml (or the file named by --config) and create
the data directory. An existing config is left alone unless --force is given.`,
	Run: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")
}

func runInit(_ *cobra.Command, _ []string) {
	path := configPath
	if path == "" {
		path = config.DefaultFile
	}
	if err := writeDefaultConfig(path, initForce); err != nil {
		exitError("%v", err)
	}
	color.New(color.FgGreen).Printf("Wrote %s\n", path)
}

// writeDefaultConfig writes the defaults, adjusted by the global flags, to path.
func writeDefaultConfig(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	cfg := config.Default()
	if backendFlag != "" {
		cfg.Backend = backendFlag
	}
	if dataDirFlag != "" {
		cfg.DataDir = dataDirFlag
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.Save(path); err != nil {
		return err
	}
	if cfg.Backend != "memory" {
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return fmt.Errorf("create data directory: %w", err)
		}
	}
	return nil
}
