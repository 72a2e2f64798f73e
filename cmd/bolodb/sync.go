package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Polqt/bolodb/tsdb"
)

func newSyncCmd() *cobra.Command {
	var keyHex string

	cmd := &cobra.Command{
		Use:   "sync <db-dir>",
		Short: "Mount a database, force a sync, and unmount",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := requireKey(keyHex)
			if err != nil {
				return err
			}

			db, err := tsdb.Mount(args[0], key)
			if err != nil {
				return err
			}

			if err := db.Sync(); err != nil {
				db.Unmount()
				return err
			}
			if err := db.Unmount(); err != nil {
				return err
			}

			fmt.Printf("synced %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&keyHex, "key-hex", "", "hex-encoded HMAC key for this database")
	return cmd
}
