package cli

import (
	"context"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var normalizeCmd = &cobra.Command{
	Use:   "normalize <collection>",
	Short: "Compact orders to 0..n-1",
	Long: `Renumber every record of a collection by its current (order, id) so the
orders become 0..n-1 again. Deletes leave gaps and direct order updates may
leave ties; normalize removes both.`,
	Args: cobra.ExactArgs(1),
	Run:  runNormalize,
}

func init() {
	addRemoteFlags(normalizeCmd)
}

func runNormalize(_ *cobra.Command, args []string) {
	ctx := context.Background()
	op := newOperator(ctx)
	defer op.Close()

	if err := op.Normalize(ctx, args[0]); err != nil {
		exitError("%v", err)
	}
	color.New(color.FgGreen).Printf("Normalized %s\n", args[0])
}
