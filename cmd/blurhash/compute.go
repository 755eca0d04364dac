package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var computeCmd = &cobra.Command{
	Use:   "compute <file>...",
	Short: "Print the blurhash of each file",
	Long: `Prints "<hash>\t<file>" per input. A file whose extraction is
suppressed by the error policy prints an empty hash.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCompute,
}

func init() {
	rootCmd.AddCommand(computeCmd)
}

func runCompute(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	hasher, err := newHasher(cmd, logger)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, path := range args {
		var hash string
		if path == "-" {
			hash, err = hasher.ComputeReader(os.Stdin)
		} else {
			hash, err = hasher.ComputeFile(path)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		fmt.Fprintf(out, "%s\t%s\n", hash, path)
	}
	return nil
}
