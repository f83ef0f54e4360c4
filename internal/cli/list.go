package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kilupskalvis/orderset/internal/content"
)

var (
	listAll  bool
	listJSON bool
)

var listCmd = &cobra.Command{
	Use:   "list <collection>",
	Short: "List a collection in display order",
	Long: `List the records of a collection sorted by order, then id.
Inactive records are hidden unless --all is given.

Examples:
  orderset list achievements
  orderset list achievements --all --json
  orderset list core_strengths --url http://localhost:8730`,
	Args: cobra.ExactArgs(1),
	Run:  runList,
}

func init() {
	listCmd.Flags().BoolVarP(&listAll, "all", "a", false, "Include inactive records")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Print records as JSON")
	addRemoteFlags(listCmd)
}

func runList(_ *cobra.Command, args []string) {
	ctx := context.Background()
	op := newOperator(ctx)
	defer op.Close()

	entries, err := op.List(ctx, args[0], listAll)
	if err != nil {
		exitError("%v", err)
	}
	if listJSON {
		err = writeEntriesJSON(os.Stdout, entries)
	} else {
		err = printEntries(os.Stdout, entries)
	}
	if err != nil {
		exitError("%v", err)
	}
}

func writeEntriesJSON(w io.Writer, entries []content.Entry) error {
	if entries == nil {
		entries = []content.Entry{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(entries)
}

// printEntries writes one aligned row per entry.
func printEntries(w io.Writer, entries []content.Entry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "No records")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ORDER\tID\tACTIVE\tSUMMARY")
	for _, e := range entries {
		active := "yes"
		if !e.IsActive {
			active = "no"
		}
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\n", e.Order, e.ID, active, summarize(e.Payload))
	}
	return tw.Flush()
}

// summarize picks a one-line label from a payload: its title or name, or
// year and description for timeline items.
func summarize(payload json.RawMessage) string {
	var p struct {
		Title       string `json:"title"`
		Name        string `json:"name"`
		Year        string `json:"year"`
		Description string `json:"description"`
	}
	_ = json.Unmarshal(payload, &p)

	s := p.Title
	if s == "" {
		s = p.Name
	}
	if s == "" && p.Year != "" {
		s = p.Year + " " + p.Description
	}
	if s == "" {
		s = string(payload)
	}
	const maxLen = 60
	if r := []rune(s); len(r) > maxLen {
		s = string(r[:maxLen-3]) + "..."
	}
	return s
}
