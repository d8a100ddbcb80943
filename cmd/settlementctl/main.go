package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(codeOf(err))
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "settlementctl",
		Short:         "Hermeos settlement engine operator tool",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().String("env-file", ".env", "Dotenv file loaded before the environment is read")

	// Add subcommands
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(propertyCmd())
	rootCmd.AddCommand(availableCmd())
	rootCmd.AddCommand(settleCmd())
	rootCmd.AddCommand(tierCmd())
	rootCmd.AddCommand(exitCmd())
	rootCmd.AddCommand(kycCmd())
	rootCmd.AddCommand(reconcileCmd())
	rootCmd.AddCommand(recoverCmd())
	rootCmd.AddCommand(splitCmd())
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(workerCmd())

	return rootCmd
}
