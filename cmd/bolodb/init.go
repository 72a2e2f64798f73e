package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Polqt/bolodb/tsdb"
)

func newInitCmd() *cobra.Command {
	var keyHex string

	cmd := &cobra.Command{
		Use:   "init <db-dir>",
		Short: "Create a new, empty database at db-dir",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := resolveKey(keyHex)
			if err != nil {
				return err
			}

			db, err := tsdb.Init(args[0], key)
			if err != nil {
				return err
			}
			defer db.Unmount()

			fmt.Printf("initialized database at %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&keyHex, "key-hex", "", "hex-encoded HMAC key (random 64-byte key generated if omitted)")
	return cmd
}
