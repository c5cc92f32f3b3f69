package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const serviceName = "session-service"

var version = "dev"

var rootCmd = &cobra.Command{
	Use:           "session-service",
	Short:         "Mentoring session orchestrator backed by Cal.com",
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE:          runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(tokenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
