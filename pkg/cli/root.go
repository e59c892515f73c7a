// Package cli implements the fixserve command line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version is injected during build
	Version = "dev"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "fixserve",
	Short: "fixserve is a local test-fixture HTTP server",
	Long: `fixserve serves synthetic, highly parameterized content to conformance
test suites: exact byte-range responses, per-resource sidecar headers,
server-side scripts, substitution templates and convention-generated wrapper
documents, over HTTP/1.1 and cleartext HTTP/2.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called once from main.
func Execute() {
	rootCmd.Version = Version
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
