package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pulsegen/pulse/internal/api"
	"github.com/pulsegen/pulse/internal/engine"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose run control and live metrics over HTTP",
	Long: `Start an HTTP server that lets external consumers (dashboards,
persistence, export tooling) control test runs and poll metrics:

  POST /api/run/start         start a run (TestConfig JSON body)
  POST /api/run/pause         pause request emission
  POST /api/run/resume        resume request emission
  POST /api/run/stop          abort the run
  POST /api/run/reset         stop and clear all run state
  GET  /api/run/status        lifecycle state and active config
  GET  /api/run/metrics       current TestMetrics snapshot
  GET  /api/run/series        time-series points for charting
  GET  /api/run/distribution  cumulative latency distribution
  GET  /api/run/results       recent request results`,
	Run: func(cmd *cobra.Command, args []string) {
		listen, _ := cmd.Flags().GetString("listen")

		runner := engine.NewRunner()
		server := api.NewServer(runner)

		fmt.Printf("pulse API listening on %s\n", listen)
		if err := server.ListenAndServe(listen); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	serveCmd.Flags().String("listen", ":8089", "Listen address")
}
