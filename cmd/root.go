package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// version is overridden at build time with -ldflags "-X ...cmd.version=...".
var version = "dev"

var rootOpts struct {
	logLevel string
}

var rootCmd = &cobra.Command{
	Use:           "afetch",
	Short:         "Fetches, verifies and unpacks the artifacts a build depends on.",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// exitError carries a specific process exit status.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		rootCmd.PrintErrln("Error:", err)
	}
	os.Exit(exitCode(err))
}

// exitCode maps a command error to a process exit status.
func exitCode(err error) int {
	if err == nil {
		return 0
	}

	var exitErr *exitError
	if errors.As(err, &exitErr) {
		return exitErr.code
	}

	return 1
}

// newLogger builds the logger shared by subcommands, writing to the
// command's error stream.
func newLogger(cmd *cobra.Command) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(rootOpts.logLevel)
	if err != nil {
		return nil, err
	}

	logger := logrus.New()
	logger.SetOutput(cmd.ErrOrStderr())
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

	return logger, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootOpts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(installCmd, checksumCmd, bombardCmd, smokeCmd)
}
