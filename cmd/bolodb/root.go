package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/Polqt/bolodb/internal/errs"
)

// Exit codes per the CLI's external contract: 0 success, 1 usage/config
// error, 2 database error (missing, corrupt, unauthorized).
const (
	exitOK    = 0
	exitUsage = 1
	exitDBErr = 2
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "bolodb",
		Short:         "bolodb is an embedded time-series database",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newInitCmd())
	root.AddCommand(newInsertCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newSyncCmd())
	return root
}

// exitCodeFor classifies err into one of the three documented exit codes.
// Usage errors (bad flags, malformed submissions, invalid queries) come
// back as errs.Invalid; everything else domain-tagged is a database
// error; anything untagged (I/O, flag parsing from cobra itself) is
// treated as a usage error, the safer default for an unrecognized
// failure at the CLI boundary.
func exitCodeFor(err error) int {
	var de *errs.Error
	if errors.As(err, &de) {
		if de.Kind == errs.Invalid {
			return exitUsage
		}
		return exitDBErr
	}
	return exitUsage
}
