// Package main is the entry point for the gnos CLI.
//
// Usage:
//
//	gnos serve -c gnos.yaml                 # Start the dashboard
//	gnos validate -c gnos.yaml              # Validate configuration
//	gnos query 'SELECT ?d WHERE {...}'      # Query a running server
//	gnos version                            # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information, set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "gnos",
	Short: "A live network dashboard",
	Long: `gnos keeps a live model of a network and streams it to browsers.

Modelers report devices, samples and alerts as JSON. gnos stores them as
facts and sample buffers, and pushes query results to the dashboard over
Server-Sent Events whenever they change.

Quick start:
  1. Create a config file (gnos.yaml)
  2. Run: gnos serve -c gnos.yaml
  3. Open http://localhost:8080 in your browser

Example config:
  port: 8080
  poll_interval: 15s
  seed_file: network.yaml
  modelers:
    - name: snmp
      url: http://localhost:9001/report`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// cobra already printed the error
		os.Exit(1)
	}
}

func main() {
	Execute()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this gnos binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "gnos %s\n", version)
		fmt.Fprintf(out, "  commit: %s\n", commit)
		fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
