// Velox is a small application server speaking a persistent, length-framed
// text protocol over TCP, with optional TLS and per-virtual-host
// certificates.
//
// Usage:
//
//	velox serve [flags]
//
// See 'velox serve --help' for available options.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/albertbausili/velox/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "velox",
	Short: "Velox application server",
	Long: `A TCP application server speaking a persistent, length-framed text
protocol, serving files from a document root.

Connections are kept alive between requests unless the client asks
otherwise. TLS with per-virtual-host certificate selection is available
on the blocking engine.`,
	Version: version.Version,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("velox %s (commit: %s)\n", version.Version, version.Commit)
	},
}
