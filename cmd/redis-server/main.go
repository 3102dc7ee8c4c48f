// Command redis-server is the process entrypoint: it parses flags,
// loads the initial keyspace from an RDB snapshot, and runs the server
// until an OS signal requests shutdown.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"goredis/internal/config"
	"goredis/internal/rdbload"
	"goredis/internal/server"
	"goredis/internal/store"
	"goredis/internal/telemetry"
)

func main() {
	cfg := config.Default()

	root := &cobra.Command{
		Use:   "redis-server",
		Short: "A RESP-compatible in-memory key/value server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cfg)
		},
	}

	root.Flags().IntVar(&cfg.Port, "port", cfg.Port, "TCP port to listen on")
	root.Flags().StringVar(&cfg.Dir, "dir", cfg.Dir, "directory containing the RDB snapshot")
	root.Flags().StringVar(&cfg.DBFilename, "dbfilename", cfg.DBFilename, "RDB snapshot filename")
	root.Flags().StringVar(&cfg.ReplicaOf, "replicaof", cfg.ReplicaOf, `primary to replicate from, as "<host> <port>"`)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	log := telemetry.For("main")

	st := store.New()
	loaded, err := rdbload.Load(st, cfg.Dir, cfg.DBFilename)
	if err != nil {
		return fmt.Errorf("loading snapshot: %w", err)
	}
	log.WithField("keys", loaded).Info("snapshot loaded")

	srv := server.New(cfg, st)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutting down")
		cancel()
	}()

	return srv.Serve(ctx)
}
