package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// VersionInfo is the version command's payload.
type VersionInfo struct {
	Version  string   `json:"version"`
	Backends []string `json:"backends"`
}

func (v VersionInfo) String() string {
	return fmt.Sprintf("gpustream %s (backends: %v)", v.Version, v.Backends)
}

// NewVersionCommand creates the version command.
func NewVersionCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version and compiled-in backends",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.formatter(cmd).Success(VersionInfo{
				Version:  Version,
				Backends: rootOpts.Backends.Names(),
			})
		},
	}
}
