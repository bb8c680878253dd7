package cli

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/born-ml/gpustream/internal/config"
	"github.com/born-ml/gpustream/internal/interop"
	"github.com/born-ml/gpustream/internal/native"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Adoption modes for the attach command.
const (
	AdoptNone    = "none"    // stream creates its own queue
	AdoptService = "service" // adopt the engine's service stream queue
	AdoptForeign = "foreign" // adopt a queue created on another device
)

// ValidAdoptModes lists the accepted --adopt values.
var ValidAdoptModes = []string{AdoptNone, AdoptService, AdoptForeign}

// AttachOptions holds attach command flags.
type AttachOptions struct {
	ConfigPath string
	Backend    string // overrides the config file when set
	Flags      []string
	Adopt      string
	Tasks      int
	FailTask   bool
}

// HandleReport describes a library handle after Init.
type HandleReport struct {
	Kind    string `json:"kind"`
	Stream  string `json:"stream"`
	Rebound bool   `json:"rebound"`
}

// TaskReport is the outcome of one interop task.
type TaskReport struct {
	Index   int    `json:"index"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// AttachResult is the attach command's payload.
type AttachResult struct {
	Backend   string         `json:"backend"`
	Device    string         `json:"device"`
	Adopt     string         `json:"adopt"`
	Flags     string         `json:"flags"`
	Status    string         `json:"status"`
	Message   string         `json:"message,omitempty"`
	Stream    string         `json:"stream,omitempty"`
	OwnsQueue bool           `json:"owns_queue"`
	Handles   []HandleReport `json:"handles"`
	Tasks     []TaskReport   `json:"tasks,omitempty"`
	Wait      string         `json:"wait,omitempty"`
}

// Failed reports whether any step returned a non-success status.
func (r *AttachResult) Failed() bool {
	if r.Status != interop.Success.String() || r.Wait != "" {
		return true
	}
	for _, t := range r.Tasks {
		if t.Status != interop.Success.String() {
			return true
		}
	}
	return false
}

func (r *AttachResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Backend: %s  Device: %s  Adopt: %s  Flags: %s\n", r.Backend, r.Device, r.Adopt, r.Flags)
	fmt.Fprintf(&b, "Init: %s", r.Status)
	if r.Message != "" {
		fmt.Fprintf(&b, " (%s)", r.Message)
	}
	b.WriteString("\n")
	if r.Stream != "" {
		fmt.Fprintf(&b, "Stream: %s owned=%t\n", r.Stream, r.OwnsQueue)
	}
	for _, h := range r.Handles {
		mark := " "
		if h.Rebound {
			mark = "*"
		}
		fmt.Fprintf(&b, "  %s %-4s -> %s\n", mark, h.Kind, h.Stream)
	}
	for _, t := range r.Tasks {
		fmt.Fprintf(&b, "Task %d: %s", t.Index, t.Status)
		if t.Message != "" {
			fmt.Fprintf(&b, " (%s)", t.Message)
		}
		b.WriteString("\n")
	}
	if r.Wait != "" {
		fmt.Fprintf(&b, "Wait: %s\n", r.Wait)
	}
	return strings.TrimRight(b.String(), "\n")
}

// NewAttachCommand creates the attach command.
func NewAttachCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AttachOptions{}

	cmd := &cobra.Command{
		Use:   "attach",
		Short: "Attach a stream, bind library handles, and run interop tasks",
		Long: `Build an engine on the configured backend and device, construct a stream
according to --adopt, initialize it, and submit --tasks interop tasks.

The command exits with status 1 when initialization or any task reports
a non-success status.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Flags = nil
			if f := cmd.Flags().Lookup("flags"); f != nil && f.Changed {
				opts.Flags, _ = cmd.Flags().GetStringSlice("flags")
				if opts.Flags == nil {
					opts.Flags = []string{}
				}
			}
			return runAttach(rootOpts, opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to YAML config file")
	cmd.Flags().StringVarP(&opts.Backend, "backend", "b", "", "backend name (overrides config)")
	cmd.Flags().StringSlice("flags", nil, "stream flags (in-order,out-of-order; overrides config)")
	cmd.Flags().StringVar(&opts.Adopt, "adopt", AdoptNone, "queue adoption mode (none|service|foreign)")
	cmd.Flags().IntVarP(&opts.Tasks, "tasks", "n", 1, "number of interop tasks to submit")
	cmd.Flags().BoolVar(&opts.FailTask, "fail-task", false, "make the last task's body fail")

	return cmd
}

func runAttach(rootOpts *RootOptions, opts *AttachOptions, cmd *cobra.Command) error {
	formatter := rootOpts.formatter(cmd)

	if !slices.Contains(ValidAdoptModes, opts.Adopt) {
		return NewExitError(ExitCommandError,
			fmt.Sprintf("invalid adopt mode %q: must be one of %v", opts.Adopt, ValidAdoptModes))
	}
	if opts.Tasks < 0 {
		return NewExitError(ExitCommandError, "--tasks must not be negative")
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "load config", err)
	}
	if opts.Backend != "" {
		cfg.Backend = opts.Backend
	}
	if opts.Flags != nil {
		cfg.Flags = opts.Flags
	}
	kind, _ := cfg.Kind()
	flags, err := cfg.StreamFlags()
	if err != nil {
		return WrapExitError(ExitCommandError, "stream flags", err)
	}

	logger := config.NewLogger(cmd.ErrOrStderr(), cfg)
	if rootOpts.Verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	rt, err := rootOpts.Backends.Open(cfg.Backend)
	if err != nil {
		return WrapExitError(ExitCommandError, "open backend", err)
	}
	defer rt.Close()

	devices, err := rt.Devices()
	if err != nil {
		return WrapExitError(ExitFailure, "list devices", err)
	}
	if cfg.Device >= len(devices) {
		return NewExitError(ExitCommandError,
			fmt.Sprintf("device index %d out of range (%d devices)", cfg.Device, len(devices)))
	}
	dev := devices[cfg.Device]

	eng, err := interop.NewEngine(rt, kind, dev, interop.WithLogger(logrus.NewEntry(logger)))
	if err != nil {
		return WrapExitError(ExitFailure, "create engine", err)
	}
	defer eng.Release()

	result := &AttachResult{
		Backend: rt.Name(),
		Device:  dev.Name(),
		Adopt:   opts.Adopt,
		Flags:   flags.String(),
	}

	q, releaseQueue, err := adoptQueue(eng, devices, opts.Adopt)
	if err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return err
		}
		return WrapExitError(ExitFailure, "prepare queue", err)
	}
	defer releaseQueue()
	formatter.VerboseLog("adopt=%s queue=%v", opts.Adopt, q != nil)

	prior, err := handleStreams(eng)
	if err != nil {
		return WrapExitError(ExitFailure, "query handles", err)
	}

	s := interop.NewStream(eng, flags, q)
	defer s.Release()

	initErr := s.Init()
	result.Status = interop.StatusOf(initErr).String()
	if initErr != nil {
		result.Message = initErr.Error()
	} else {
		result.Stream = fmt.Sprintf("%#x", uintptr(s.NativeStream()))
		result.OwnsQueue = s.OwnsQueue()
	}

	after, err := handleStreams(eng)
	if err != nil {
		return WrapExitError(ExitFailure, "query handles", err)
	}
	for _, k := range []native.HandleKind{native.DNN, native.BLAS} {
		result.Handles = append(result.Handles, HandleReport{
			Kind:    k.String(),
			Stream:  fmt.Sprintf("%#x", uintptr(after[k])),
			Rebound: after[k] != prior[k],
		})
	}

	if initErr == nil {
		runTasks(s, opts, result)
		if err := s.Wait(cmd.Context()); err != nil {
			result.Wait = err.Error()
		}
	}

	if result.Failed() {
		code, msg := failure(result)
		if err := formatter.Error(code, msg, result); err != nil {
			return err
		}
		return NewExitError(ExitFailure, msg)
	}
	return formatter.Success(result)
}

// adoptQueue returns the queue to hand to NewStream for mode and a function
// releasing whatever the command created for it.
func adoptQueue(eng *interop.Engine, devices []native.Device, mode string) (native.Queue, func(), error) {
	noop := func() {}

	switch mode {
	case AdoptService:
		ss, err := eng.ServiceStream()
		if err != nil {
			return nil, noop, err
		}
		return ss.Queue(), noop, nil

	case AdoptForeign:
		for _, other := range devices {
			if other.Native() == eng.Device().Native() {
				continue
			}
			ctx, err := eng.Runtime().PrimaryContext(other)
			if err != nil {
				return nil, noop, err
			}
			q, err := eng.Runtime().CreateQueue(ctx, other, native.InOrder)
			if err != nil {
				return nil, noop, err
			}
			return q, func() { q.Release() }, nil
		}
		return nil, noop, NewExitError(ExitCommandError, "foreign adoption needs a second device")

	default:
		return nil, noop, nil
	}
}

func handleStreams(eng *interop.Engine) (map[native.HandleKind]native.StreamID, error) {
	out := make(map[native.HandleKind]native.StreamID, 2)
	for kind, get := range map[native.HandleKind]func() (native.Handle, error){
		native.BLAS: eng.BLASHandle,
		native.DNN:  eng.DNNHandle,
	} {
		h, err := get()
		if err != nil {
			return nil, err
		}
		id, err := h.Stream()
		if err != nil {
			return nil, err
		}
		out[kind] = id
	}
	return out, nil
}

var errTaskBody = errors.New("task body failed")

func runTasks(s *interop.Stream, opts *AttachOptions, result *AttachResult) {
	for i := 0; i < opts.Tasks; i++ {
		fail := opts.FailTask && i == opts.Tasks-1
		err := s.InteropTask(func(cg *native.CommandGroup) error {
			if fail {
				return errTaskBody
			}
			cg.Enqueue(fmt.Sprintf("task-%d", i), func() error { return nil })
			return nil
		})

		report := TaskReport{Index: i, Status: interop.StatusOf(err).String()}
		if err != nil {
			report.Message = err.Error()
		}
		result.Tasks = append(result.Tasks, report)
	}
}

func failure(r *AttachResult) (code, msg string) {
	if r.Status != interop.Success.String() {
		return r.Status, "stream initialization failed"
	}
	for _, t := range r.Tasks {
		if t.Status != interop.Success.String() {
			return t.Status, fmt.Sprintf("interop task %d failed", t.Index)
		}
	}
	return interop.RuntimeError.String(), "waiting for stream failed"
}
