package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var reorderCmd = &cobra.Command{
	Use:   "reorder <collection> <id>...",
	Short: "Rewrite the display order of a collection",
	Long: `Assign order 0, 1, 2, ... to the given ids in one transaction. Ids not
listed keep their current order. The whole call fails, changing nothing, if an
id is repeated or does not exist.

Examples:
  orderset reorder achievements 3 1 2
  orderset reorder achievements 3 1 2 --url http://localhost:8730 --admin-key $KEY`,
	Args: cobra.MinimumNArgs(1),
	Run:  runReorder,
}

func init() {
	addRemoteFlags(reorderCmd)
}

func runReorder(_ *cobra.Command, args []string) {
	ids, err := parseIDs(args[1:])
	if err != nil {
		exitError("%v", err)
	}

	ctx := context.Background()
	op := newOperator(ctx)
	defer op.Close()

	if err := op.Reorder(ctx, args[0], ids); err != nil {
		exitError("%v", err)
	}
	color.New(color.FgGreen).Printf("Reordered %d records in %s\n", len(ids), args[0])
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, a := range args {
		id, err := strconv.ParseInt(a, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q", a)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
