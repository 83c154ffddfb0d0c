package main

import (
	"fmt"
	"os"

	"github.com/shenjiangwei/tilerAllocator/container"
	"github.com/shenjiangwei/tilerAllocator/reserve"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
	noColor bool
	cfg     = container.DefaultConfig()
)

var rootCmd = &cobra.Command{
	Use:   "tilerctl",
	Short: "Plan and exercise tiler container reservations",
	Long: `tilerctl packs batches of 2D and NV12 buffers into an in-memory tiler
container. It shows packing decisions, runs randomized workloads and serves
the reserver over RPC.`,
	Version: "0.1.0",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			reserve.SetLogLevel(reserve.LogLevelDebug)
		}
	},
	SilenceUsage: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	flags.BoolVar(&noColor, "no-color", false, "Disable colored output")
	flags.IntVar(&cfg.Width, "container-width", cfg.Width, "Container width in slots")
	flags.IntVar(&cfg.Height, "container-height", cfg.Height, "Container height in slots")
	flags.IntVar(&cfg.PageSize, "page-size", cfg.PageSize, "Page size in bytes")
	flags.IntVar(&cfg.Granularity, "granularity", cfg.Granularity, "Minimum alignment in bytes")
	flags.IntVar(&cfg.MaxGroups, "max-groups", cfg.MaxGroups, "Group limit, 0 for none")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newReserver creates a container from the global flags and a reserver on it
func newReserver() (*container.Container, *reserve.Reserver, error) {
	c, err := container.New(cfg)
	if err != nil {
		return nil, nil, err
	}
	r, err := reserve.NewReserver(c, reserve.Config{PageSize: cfg.PageSize})
	if err != nil {
		return nil, nil, err
	}
	return c, r, nil
}
