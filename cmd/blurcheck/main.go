// blurcheck classifies local or remote images as blurry or sharp from the
// command line.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/anime-shed/blur-inspector-go/internal/logger"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

// exitError carries a process exit code out of a command
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }

func main() {
	if err := rootCmd().Execute(); err != nil {
		var exit *exitError
		if errors.As(err, &exit) {
			os.Exit(exit.code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var verbose bool

	ret := &cobra.Command{
		Use:   "blurcheck",
		Short: "Detect blurry images",
		Long: `
blurcheck scores images with the variance of their Laplacian edge map and
reports whether they are blurry. Images can be local paths, http(s) URLs or,
when AZURE_STORAGE_ACCOUNT and AZURE_STORAGE_KEY are set, azblob:// blobs.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := "warn"
			if verbose {
				level = "debug"
			}
			logger.Configure(level, os.Stderr)
		},
	}
	ret.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log progress to stderr")

	ret.AddCommand(getClassifyCmd(), getVersionCmd())
	return ret
}

// getVersionCmd returns the definition of the version command.
func getVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the blurcheck version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "blurcheck %s\n", version)
		},
	}
}
