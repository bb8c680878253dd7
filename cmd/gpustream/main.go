// Package main provides the gpustream CLI.
package main

import (
	"fmt"
	"os"

	"github.com/born-ml/gpustream/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "gpustream:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
