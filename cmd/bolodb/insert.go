package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Polqt/bolodb/internal/ingest"
	"github.com/Polqt/bolodb/tsdb"
)

// newInsertCmd wires a one-shot submission-file ingest path: mount, drain
// every `METRIC TAGS TS_MS VALUE` line per the submission protocol, sync,
// unmount. The server's own metrics listener (server.handleMeasurement)
// covers the live-socket form of the same protocol; this subcommand is
// the offline/batch counterpart used for bulk loads and scripting.
func newInsertCmd() *cobra.Command {
	var keyHex string
	var file string

	cmd := &cobra.Command{
		Use:   "insert <db-dir>",
		Short: "Insert submissions (METRIC TAGS TS_MS VALUE) from a file or stdin",
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
			defer db.Unmount()

			r := os.Stdin
			if file != "" && file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return fmt.Errorf("bolodb: open %s: %w", file, err)
				}
				defer f.Close()
				r = f
			}

			in := ingest.New(r)
			count := 0
			for {
				m, err := in.Next()
				if err == io.EOF {
					break
				}
				if err != nil {
					return err
				}
				if err := db.Insert(m.Series, m.TSms, m.Value); err != nil {
					return err
				}
				count++
			}

			if err := db.Sync(); err != nil {
				return err
			}
			fmt.Printf("inserted %d measurements\n", count)
			return nil
		},
	}

	cmd.Flags().StringVar(&keyHex, "key-hex", "", "hex-encoded HMAC key for this database")
	cmd.Flags().StringVar(&file, "file", "-", "submission file to read (default stdin)")
	return cmd
}
