// Command bolodb is the CLI entry point for the time-series storage
// engine: init/insert/serve/sync subcommands over a spf13/cobra root
// command, mirroring the dispatch shape of
// projects/06-timeseries-db/cmd/cmd.go's Run() but split one subcommand
// per file the way cobra programs are usually organized.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}
