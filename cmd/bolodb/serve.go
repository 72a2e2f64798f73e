package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Polqt/bolodb/internal/boolog"
	"github.com/Polqt/bolodb/internal/config"
	"github.com/Polqt/bolodb/server"
	"github.com/Polqt/bolodb/tsdb"
)

func newServeCmd() *cobra.Command {
	var keyHex string
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve <db-dir>",
		Short: "Mount a database and serve the BQIP query and metrics listeners",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			cfg.DBRoot = args[0]
			if keyHex != "" {
				cfg.KeyHex = keyHex
			}

			key, err := requireKey(cfg.KeyHex)
			if err != nil {
				return err
			}

			log, err := boolog.Start("bolodb", os.Getpid(), logLevel(cfg.LogLevel))
			if err != nil {
				return err
			}
			defer log.Sync()

			db, err := tsdb.Mount(cfg.DBRoot, key)
			if err != nil {
				return err
			}
			defer db.Unmount()

			srv, err := server.New(cfg, db, log)
			if err != nil {
				return err
			}
			defer srv.Close()

			log.Infof("serving query=%s metrics=%s db=%s", cfg.Query.Addr, cfg.Metrics.Addr, cfg.DBRoot)

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
			stop := func() bool {
				select {
				case <-sig:
					return true
				default:
					return false
				}
			}
			return srv.Run(stop)
		},
	}

	cmd.Flags().StringVar(&keyHex, "key-hex", "", "hex-encoded HMAC key for this database (overrides config file)")
	cmd.Flags().StringVar(&configPath, "config", "bolodb.yaml", "path to the server configuration file")
	return cmd
}

func logLevel(s string) boolog.Level {
	switch s {
	case "debug":
		return boolog.LevelDebug
	case "info":
		return boolog.LevelInfo
	case "warnings":
		return boolog.LevelWarnings
	default:
		return boolog.LevelErrors
	}
}
