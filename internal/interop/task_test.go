package interop

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/born-ml/gpustream/internal/backend/sim"
	"github.com/born-ml/gpustream/internal/native"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(cg *native.CommandGroup) error {
	cg.Enqueue("noop", func() error { return nil })
	return nil
}

func TestInteropTask_UpdatesDependencyChain(t *testing.T) {
	_, eng := newTestEngine(t)
	s := initStream(t, eng, nil)
	assert.Empty(t, s.Deps())

	seen := make(map[string]bool)
	var prev native.Event
	for i := 0; i < 3; i++ {
		err := s.InteropTask(func(cg *native.CommandGroup) error {
			if prev != nil {
				require.Len(t, cg.Deps(), 1)
				assert.Equal(t, prev.ID(), cg.Deps()[0].ID(), "each task must follow the previous one")
			} else {
				assert.Empty(t, cg.Deps())
			}
			return noop(cg)
		})
		require.NoError(t, err)

		deps := s.Deps()
		require.Len(t, deps, 1)
		id := deps[0].ID().String()
		assert.False(t, seen[id], "dependency token must be new")
		seen[id] = true
		prev = deps[0]
	}
}

func TestInteropTask_BodyRunsAgainstNativeStream(t *testing.T) {
	_, eng := newTestEngine(t)
	s := initStream(t, eng, nil)

	var ran atomic.Bool
	err := s.InteropTask(func(cg *native.CommandGroup) error {
		assert.Equal(t, s.NativeStream(), cg.NativeStream())
		assert.Equal(t, s.NativeContext(), cg.NativeContext())
		cg.Enqueue("gemm", func() error {
			ran.Store(true)
			return nil
		})
		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Wait(ctx))
	assert.True(t, ran.Load())
}

func TestInteropTask_BodyErrorKeepsDeps(t *testing.T) {
	_, eng := newTestEngine(t)
	s := initStream(t, eng, nil)
	require.NoError(t, s.InteropTask(noop))
	before := s.Deps()

	nativeErr := errors.New("cuLaunchKernel: CUDA_ERROR_INVALID_VALUE")
	err := s.InteropTask(func(*native.CommandGroup) error { return nativeErr })

	require.ErrorIs(t, err, ErrRuntime)
	assert.Equal(t, RuntimeError, StatusOf(err))
	assert.ErrorIs(t, err, nativeErr)
	assert.Contains(t, err.Error(), "CUDA_ERROR_INVALID_VALUE")
	assert.Equal(t, before, s.Deps())
}

func TestInteropTask_PanicIsTranslated(t *testing.T) {
	_, eng := newTestEngine(t)
	s := initStream(t, eng, nil)
	require.NoError(t, s.InteropTask(noop))
	before := s.Deps()

	var err error
	require.NotPanics(t, func() {
		err = s.InteropTask(func(*native.CommandGroup) error {
			panic("native library raised: illegal address")
		})
	})
	assert.Equal(t, RuntimeError, StatusOf(err))
	assert.Contains(t, err.Error(), "illegal address")
	assert.Equal(t, before, s.Deps())

	require.NotPanics(t, func() {
		err = s.InteropTask(func(*native.CommandGroup) error {
			panic(errors.New("wrapped panic"))
		})
	})
	assert.Equal(t, RuntimeError, StatusOf(err))
	assert.Contains(t, err.Error(), "wrapped panic")
}

func TestInteropTask_SubmitFailureKeepsDeps(t *testing.T) {
	rt, eng := newTestEngine(t)
	s := initStream(t, eng, nil)
	s.SetDeps()

	rt.Inject(sim.FaultSubmit, errors.New("device lost"))
	failedBefore := testutil.ToFloat64(interopTasks.WithLabelValues("runtime_error"))

	err := s.InteropTask(noop)
	assert.Equal(t, RuntimeError, StatusOf(err))
	assert.Contains(t, err.Error(), "device lost")
	assert.Empty(t, s.Deps())
	assert.Equal(t, failedBefore+1, testutil.ToFloat64(interopTasks.WithLabelValues("runtime_error")))
}

func TestInteropTask_RequiresInitAndBody(t *testing.T) {
	_, eng := newTestEngine(t)

	s := NewStream(eng, InOrder, nil)
	assert.ErrorIs(t, s.InteropTask(noop), ErrInvalidArguments)
	assert.ErrorIs(t, s.Wait(context.Background()), ErrInvalidArguments)

	require.NoError(t, s.Init())
	defer s.Release()
	assert.ErrorIs(t, s.InteropTask(nil), ErrInvalidArguments)
}

func TestSetDeps_OrdersNextTask(t *testing.T) {
	_, eng := newTestEngine(t)
	a := initStream(t, eng, nil)
	b := initStream(t, eng, nil)

	require.NoError(t, a.InteropTask(noop))
	b.SetDeps(a.Deps()...)

	err := b.InteropTask(func(cg *native.CommandGroup) error {
		require.Len(t, cg.Deps(), 1)
		assert.Equal(t, a.Deps()[0].ID(), cg.Deps()[0].ID())
		return noop(cg)
	})
	require.NoError(t, err)
	require.NoError(t, b.Wait(context.Background()))
}

func TestWait_ReportsKernelFailure(t *testing.T) {
	_, eng := newTestEngine(t)
	s := initStream(t, eng, nil)

	err := s.InteropTask(func(cg *native.CommandGroup) error {
		cg.Enqueue("conv", func() error { return errors.New("CUDNN_STATUS_EXECUTION_FAILED") })
		return nil
	})
	require.NoError(t, err, "execution errors surface through the event, not the submission")

	err = s.Wait(context.Background())
	assert.Equal(t, RuntimeError, StatusOf(err))
	assert.Contains(t, err.Error(), "CUDNN_STATUS_EXECUTION_FAILED")
}

func TestInteropTask_BodyMayReadDeps(t *testing.T) {
	_, eng := newTestEngine(t)
	s := initStream(t, eng, nil)
	require.NoError(t, s.InteropTask(noop))
	first := s.Deps()

	done := make(chan error, 1)
	go func() {
		done <- s.InteropTask(func(cg *native.CommandGroup) error {
			require.Len(t, s.Deps(), 1)
			assert.Equal(t, first[0].ID(), s.Deps()[0].ID())
			s.SetDeps(first...)
			return noop(cg)
		})
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("InteropTask blocked on a body that reads the dependency chain")
	}

	deps := s.Deps()
	require.Len(t, deps, 1)
	assert.NotEqual(t, first[0].ID(), deps[0].ID(), "a successful task replaces the chain")
}
