// Package cli implements the gpustream command tree.
package cli

import (
	"fmt"
	"slices"

	"github.com/born-ml/gpustream/internal/backend"
	"github.com/spf13/cobra"
)

// Version is the gpustream release string.
const Version = "v0.1.0"

// RootOptions holds global flags and shared dependencies for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "text" | "json"

	// Backends resolves --backend names. NewRootCommand fills it with
	// backend.Default().
	Backends *backend.Registry
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command with the default backends.
func NewRootCommand() *cobra.Command {
	return NewRootCommandWith(backend.Default())
}

// NewRootCommandWith creates the root command resolving backends from reg.
func NewRootCommandWith(reg *backend.Registry) *cobra.Command {
	opts := &RootOptions{Backends: reg}

	cmd := &cobra.Command{
		Use:   "gpustream",
		Short: "gpustream - GPU stream interop",
		Long: `Attach execution streams to a compute engine and keep the engine's
BLAS and DNN library handles bound to the stream in use.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewVersionCommand(opts))
	cmd.AddCommand(NewDevicesCommand(opts))
	cmd.AddCommand(NewAttachCommand(opts))

	return cmd
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}
