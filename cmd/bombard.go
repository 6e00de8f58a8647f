package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gkatanacio/artifact-fetcher/loadtest"
)

var bombardOpts loadtest.Options

var bombardCmd = &cobra.Command{
	Use:     "bombard <core_url>",
	Short:   "Load-test the logging endpoints of a running core server.",
	Example: "afetch bombard http://localhost:8082/ -w 12 -n 5000",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger(cmd)
		if err != nil {
			return err
		}

		opts := bombardOpts
		opts.BaseURL = args[0]

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Bombarding with logs: %s\n", opts.BaseURL)

		stats, err := loadtest.NewRunner(opts, nil, logger).Run(cmd.Context())
		fmt.Fprintf(out, "Total of %d parallel requests took %s to finish (%d failed).\n", stats.Sent, stats.Elapsed, stats.Failed)

		return err
	},
}

func init() {
	bombardCmd.Flags().IntVarP(&bombardOpts.Workers, "workers", "w", loadtest.DefaultWorkers, "max number of concurrent workers")
	bombardCmd.Flags().IntVarP(&bombardOpts.Requests, "requests", "n", loadtest.DefaultRequests, "number of submit/log request pairs")
	bombardCmd.Flags().StringVarP(&bombardOpts.Query, "query", "q", "", "text query sent to the log endpoint")
}
