package cmd

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/gkatanacio/artifact-fetcher/config"
	"github.com/gkatanacio/artifact-fetcher/download"
	"github.com/gkatanacio/artifact-fetcher/signature"
)

var installOpts struct {
	cuda    bool
	timeout uint
}

var installCmd = &cobra.Command{
	Use:   "install <platform> <config>... <build_dir> <third_party_dir> <build_type>",
	Short: "Download, verify and unpack every artifact listed in the configuration files.",
	Long: `Download, verify and unpack every artifact listed in the configuration files.

Artifacts already present on disk are not downloaded again but are always
re-verified. Every artifact is processed even if an earlier one fails.

Exit status is 0 when every artifact is ready, 1 on configuration or
verification failures and 2 when an artifact could not be downloaded.`,
	Example: "afetch install linux config.json install-config.json build/ 3rdparty/ Release --cuda",
	Args:    cobra.MinimumNArgs(5),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger(cmd)
		if err != nil {
			return err
		}

		n := len(args)
		sel := config.Selector{
			Platform:      args[0],
			GPU:           installOpts.cuda,
			BuildDir:      args[n-3],
			ThirdPartyDir: args[n-2],
			BuildType:     args[n-1],
		}

		doc, err := config.Load(args[1 : n-3]...)
		if err != nil {
			return &exitError{code: download.ExitFailure, err: err}
		}

		specs, err := doc.Resolve(sel)
		if err != nil {
			return &exitError{code: download.ExitFailure, err: err}
		}

		opts := download.Options{UserAgent: "afetch/" + version}
		if doc.Keyring() != "" {
			verifier, err := signature.LoadKeyring(doc.Keyring())
			if err != nil {
				return &exitError{code: download.ExitFailure, err: err}
			}
			opts.Signatures = verifier
		}

		httpClient := &http.Client{Timeout: time.Duration(installOpts.timeout) * time.Second}
		service := download.NewService(opts, httpClient, logger)

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, ">>> Installing %d artifacts for %s... >>>\n", len(specs), sel.Variant())

		report := service.Run(specs)
		report.Summary(out)

		if code := report.ExitCode(); code != download.ExitOK {
			return &exitError{code: code, err: report.Err()}
		}

		return nil
	},
}

func init() {
	installCmd.Flags().BoolVar(&installOpts.cuda, "cuda", false, "select CUDA-accelerated artifact variants")
	installCmd.Flags().UintVarP(&installOpts.timeout, "timeout", "t", 0, "timeout for each download in seconds (0 means none)")
}
