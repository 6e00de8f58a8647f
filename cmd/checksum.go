package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gkatanacio/artifact-fetcher/checksum"
)

var checksumCmd = &cobra.Command{
	Use:     "checksum <file>...",
	Short:   "Print the SHA-256 digest of files, for use in configuration documents.",
	Example: "afetch checksum build/models/traced_Resnet152.pt",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, path := range args {
			sum, err := checksum.Sum(path)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", sum, path)
		}

		return nil
	},
}
