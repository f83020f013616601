package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "billsync: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "billsync",
		Short: "Bill ingestion and payment matching",
		Long: `billsync finds bills in a mailbox, extracts transactions from bank statements and
matches payments to the bills they settle. Subcommands run the services or work on local files.`,
		SilenceUsage: true,
	}
	cmd.AddCommand(
		newMatchCmd(),
		newNormalizeCmd(),
		newExtractCmd(),
		newRunCmd(),
	)
	return cmd
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the long-lived services",
	}
	cmd.AddCommand(
		newServiceRunner("api", "Serve the HTTP API and scan scheduler", runAPI),
		newServiceRunner("worker", "Process queued scans and statements", runWorker),
	)
	return cmd
}
