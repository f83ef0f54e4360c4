// Command orderset serves and manages ordered content collections.
package main

import (
	"os"

	"github.com/kilupskalvis/orderset/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
