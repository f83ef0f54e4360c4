package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kilupskalvis/orderset/internal/content"
)

var seedReplace bool

var seedCmd = &cobra.Command{
	Use:   "seed <file.yaml>",
	Short: "Load fixture records into the local backend",
	Long: `Insert the records of a YAML fixture file. Items are appended in file order,
so their orders follow the file. With --replace, each collection named in the
file is emptied first.

Fixture format:
  collections:
    achievements:
      - title: ISO 9001
        description: Certified quality management
        year: "2019"
  documents:
    company_stats:
      clients: 120`,
	Args: cobra.ExactArgs(1),
	Run:  runSeed,
}

func init() {
	seedCmd.Flags().BoolVar(&seedReplace, "replace", false, "Empty each seeded collection first")
}

func runSeed(_ *cobra.Command, args []string) {
	ctx := context.Background()

	fx, err := content.LoadFixture(args[0])
	if err != nil {
		exitError("%v", err)
	}

	c := initContext(ctx)
	defer c.Close()

	if err := seed(ctx, os.Stdout, c.Catalog, fx, seedReplace); err != nil {
		exitError("%v", err)
	}
}

func seed(ctx context.Context, w io.Writer, catalog *content.Catalog, fx *content.Fixture, replace bool) error {
	results, err := catalog.Seed(ctx, fx, replace)
	if err != nil {
		return fmt.Errorf("seed failed: %w", err)
	}

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	for _, r := range results {
		green.Fprintf(w, "  %s: %d inserted", r.Collection, r.Inserted)
		if r.Removed > 0 {
			yellow.Fprintf(w, ", %d removed", r.Removed)
		}
		fmt.Fprintln(w)
	}
	if n := len(fx.Documents); n > 0 {
		fmt.Fprintf(w, "  %d documents written\n", n)
	}
	return nil
}
