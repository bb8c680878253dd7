package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// DeviceInfo describes one runtime device.
type DeviceInfo struct {
	Index   int    `json:"index"`
	Name    string `json:"name"`
	ID      string `json:"id"`
	GPU     bool   `json:"gpu"`
	Context string `json:"context"` // primary context, empty if unavailable
}

// DeviceList is the devices command's payload.
type DeviceList struct {
	Backend string       `json:"backend"`
	Devices []DeviceInfo `json:"devices"`
}

func (l DeviceList) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Backend: %s\n", l.Backend)
	for _, d := range l.Devices {
		kind := "cpu"
		if d.GPU {
			kind = "gpu"
		}
		fmt.Fprintf(&b, "  [%d] %-12s %s id=%s ctx=%s\n", d.Index, d.Name, kind, d.ID, d.Context)
	}
	return strings.TrimRight(b.String(), "\n")
}

// NewDevicesCommand creates the devices command.
func NewDevicesCommand(rootOpts *RootOptions) *cobra.Command {
	var backendName string

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List the devices of a backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDevices(rootOpts, backendName, cmd)
		},
	}

	cmd.Flags().StringVarP(&backendName, "backend", "b", "sim", "backend name")
	return cmd
}

func runDevices(opts *RootOptions, backendName string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	rt, err := opts.Backends.Open(backendName)
	if err != nil {
		formatter.Error("backend", err.Error(), nil)
		return WrapExitError(ExitCommandError, "open backend", err)
	}
	defer rt.Close()

	devices, err := rt.Devices()
	if err != nil {
		formatter.Error("backend", err.Error(), nil)
		return WrapExitError(ExitFailure, "list devices", err)
	}

	list := DeviceList{Backend: rt.Name(), Devices: make([]DeviceInfo, 0, len(devices))}
	for i, dev := range devices {
		info := DeviceInfo{
			Index: i,
			Name:  dev.Name(),
			ID:    fmt.Sprintf("%#x", uintptr(dev.Native())),
			GPU:   dev.IsGPU(),
		}
		if ctx, err := rt.PrimaryContext(dev); err == nil {
			info.Context = fmt.Sprintf("%#x", uintptr(ctx))
		} else {
			formatter.VerboseLog("device %s: primary context: %v", dev.Name(), err)
		}
		list.Devices = append(list.Devices, info)
	}
	return formatter.Success(list)
}
