// Package cli wires the pulse commands.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:     "pulse",
	Short:   "A client-driven HTTP load generation and measurement engine",
	Version: version,
	Long: `Pulse generates paced HTTP load against a target endpoint and measures
latency, throughput, and error statistics in real time. Runs are bounded
by duration or request count, concurrency-limited, and can ramp the
request rate linearly or in steps. Success is classified per response
via assertion rules on the JSON body.`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	RootCmd.AddCommand(runCmd)
	RootCmd.AddCommand(serveCmd)
}
