package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	os.Exit(run())
}

func run() int {
	root := &cobra.Command{
		Use:     "blobextract",
		Short:   "Recursively discover and extract containers embedded in a binary blob",
		Version: version + " (" + commit + ")",
	}

	root.AddCommand(newExtractCmd())

	if err := root.Execute(); err != nil {
		return 1
	}

	return 0
}
