package cmd

import (
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/gkatanacio/artifact-fetcher/smoke"
)

var smokeOpts struct {
	host    string
	timeout uint
}

var smokeCmd = &cobra.Command{
	Use:     "smoke <config>",
	Short:   "Smoke-test the GET endpoints of a running core server.",
	Example: "afetch smoke config.json --host 127.0.0.1",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger(cmd)
		if err != nil {
			return err
		}

		cfg, err := smoke.LoadAPIConfig(args[0])
		if err != nil {
			return err
		}

		httpClient := &http.Client{Timeout: time.Duration(smokeOpts.timeout) * time.Second}
		results, err := smoke.NewTester(smokeOpts.host, httpClient, logger).Run(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		failed := 0
		for _, res := range results {
			if res.Err != nil {
				failed++
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d of %d endpoints passed.\n", len(results)-failed, len(results))

		if smoke.Failed(results) {
			return errors.Errorf("%d endpoints failed", failed)
		}

		return nil
	},
}

func init() {
	smokeCmd.Flags().StringVar(&smokeOpts.host, "host", smoke.DefaultHost, "host the core server listens on")
	smokeCmd.Flags().UintVarP(&smokeOpts.timeout, "timeout", "t", 10, "timeout for each request in seconds")
}
