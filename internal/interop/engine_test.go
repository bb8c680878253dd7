package interop

import (
	"errors"
	"testing"

	"github.com/born-ml/gpustream/internal/backend/sim"
	"github.com/born-ml/gpustream/internal/native"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEngine_Validation(t *testing.T) {
	rt := sim.New()
	defer rt.Close()
	cpu := device(t, rt, "sim-cpu0")

	_, err := NewEngine(nil, native.GPU, cpu)
	assert.ErrorIs(t, err, ErrInvalidArguments)

	_, err = NewEngine(rt, native.GPU, cpu)
	assert.ErrorIs(t, err, ErrInvalidArguments, "GPU engine on a CPU device")

	noDNN := sim.New(sim.WithoutLibrary(native.DNN))
	defer noDNN.Close()
	_, err = NewEngine(noDNN, native.GPU, device(t, noDNN, "sim-gpu0"))
	assert.ErrorIs(t, err, ErrUnsupportedRuntime)
}

func TestEngine_Accessors(t *testing.T) {
	rt, eng := newTestEngine(t)

	ctx, err := rt.PrimaryContext(eng.Device())
	require.NoError(t, err)
	assert.Equal(t, ctx, eng.Context())
	assert.Equal(t, native.GPU, eng.Kind())
	assert.Same(t, rt, eng.Runtime())
	assert.Equal(t, "sim", eng.Capabilities().Backend)
	assert.NotNil(t, eng.Logger())
}

func TestEngine_HandlesAreCached(t *testing.T) {
	rt, eng := newTestEngine(t)

	h1, err := eng.BLASHandle()
	require.NoError(t, err)
	h2, err := eng.BLASHandle()
	require.NoError(t, err)
	assert.Same(t, h1, h2)

	d, err := eng.DNNHandle()
	require.NoError(t, err)
	assert.Equal(t, native.DNN, d.Kind())
	assert.Len(t, rt.Handles(native.BLAS), 1)
	assert.Len(t, rt.Handles(native.DNN), 1)
}

func TestEngine_HandleCreationFailureIsRetried(t *testing.T) {
	rt, eng := newTestEngine(t)
	rt.Inject(sim.FaultNewHandle, errors.New("CUBLAS_STATUS_ALLOC_FAILED"))

	_, err := eng.BLASHandle()
	assert.Equal(t, RuntimeError, StatusOf(err))

	h, err := eng.BLASHandle()
	require.NoError(t, err)
	assert.NotNil(t, h)
}

func TestEngine_ServiceStream(t *testing.T) {
	rt, eng := newTestEngine(t)

	s1, err := eng.ServiceStream()
	require.NoError(t, err)
	s2, err := eng.ServiceStream()
	require.NoError(t, err)

	assert.Same(t, s1, s2)
	assert.True(t, s1.OwnsQueue())
	assert.True(t, s1.Initialized())
	assert.Equal(t, InOrder, s1.Flags())
	assert.Empty(t, rt.Handles(native.BLAS), "creating the service stream leaves handles alone")

	h, err := s1.BLASHandle()
	require.NoError(t, err)
	bound, err := h.Stream()
	require.NoError(t, err)
	assert.Equal(t, s1.NativeStream(), bound)
}

func TestEngine_ServiceStreamFailure(t *testing.T) {
	rt, eng := newTestEngine(t)
	svcErr := errors.New("no streams left")
	rt.Inject(sim.FaultCreateQueue, svcErr)

	_, err := eng.ServiceStream()
	assert.ErrorIs(t, err, svcErr)

	// An adopted queue cannot be validated without the service stream.
	q, err := rt.CreateQueue(eng.Context(), eng.Device(), native.InOrder)
	require.NoError(t, err)
	defer q.Release()
	rt.Inject(sim.FaultCreateQueue, svcErr)
	err = NewStream(eng, InOrder, q).Init()
	assert.Equal(t, RuntimeError, StatusOf(err))
}

func TestEngine_Release(t *testing.T) {
	rt := sim.New()
	defer rt.Close()
	eng, err := NewEngine(rt, native.GPU, device(t, rt, "sim-gpu0"))
	require.NoError(t, err)

	svc, err := eng.ServiceStream()
	require.NoError(t, err)
	_, err = svc.BLASHandle()
	require.NoError(t, err)
	require.Equal(t, 1, rt.LiveStreams())

	require.NoError(t, eng.Release())
	require.NoError(t, eng.Release())

	assert.Equal(t, 0, rt.LiveStreams())
	assert.True(t, rt.Handles(native.BLAS)[0].Destroyed())

	_, err = eng.ServiceStream()
	assert.ErrorIs(t, err, ErrInvalidArguments)
}

func TestEngine_ReleasedEngineRefusesNewWork(t *testing.T) {
	rt := sim.New()
	defer rt.Close()
	eng, err := NewEngine(rt, native.GPU, device(t, rt, "sim-gpu0"))
	require.NoError(t, err)
	_, err = eng.BLASHandle()
	require.NoError(t, err)
	require.NoError(t, eng.Release())

	s := NewStream(eng, InOrder, nil)
	err = s.Init()
	require.ErrorIs(t, err, ErrInvalidArguments)
	assert.Contains(t, err.Error(), "engine released")
	assert.Nil(t, s.Queue())
	assert.Equal(t, 0, rt.LiveStreams())

	_, err = eng.BLASHandle()
	assert.ErrorIs(t, err, ErrInvalidArguments)
	_, err = eng.DNNHandle()
	assert.ErrorIs(t, err, ErrInvalidArguments)
	assert.Len(t, rt.Handles(native.BLAS), 1)
	assert.Empty(t, rt.Handles(native.DNN))
}
