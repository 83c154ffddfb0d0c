package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/shenjiangwei/tilerAllocator/rpc"
	"github.com/spf13/cobra"
)

var serveAddr string

func init() {
	cmd := newServeCmd()
	cmd.Flags().StringVar(&serveAddr, "listen", "localhost:1234", "Address to listen on")
	rootCmd.AddCommand(cmd)
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve a tiler container over RPC",
		Long: `The serve command creates an in-memory tiler container and serves
reservations, allocations and plans over net/rpc until interrupted.

Example:
  tilerctl serve --listen localhost:1234
  tilerctl serve --max-groups 64 -v`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	server, err := rpc.NewServer(cfg)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		server.Close()
	}()
	return server.Start(serveAddr)
}
