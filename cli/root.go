// Package cli implements the VeilKit command line interface. Every command
// drives the same engines the desktop app binds, so behavior is identical
// across both surfaces.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"VeilKit/pkg/logger"
)

var (
	verbose bool
	logFile string
)

var rootCmd = &cobra.Command{
	Use:   "veilkit",
	Short: "Lock, scrub and destroy files without leaving traces",
	Long: `VeilKit processes batches of files locally: password-based locking,
metadata scrubbing, junk cleanup and secure deletion. Nothing ever
leaves the machine.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := "info"
		if verbose {
			level = "debug"
		}
		return logger.Init(level, logFile)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write logs to this file")
}

// Execute runs the CLI. It installs a signal handler so Ctrl-C cancels the
// current batch between files instead of killing the process mid-write.
func Execute() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nInterrupt received, finishing the current file...")
		cancel()
	}()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
