package backend_test

import (
	"errors"
	"testing"

	"github.com/born-ml/gpustream/internal/backend"
	"github.com/born-ml/gpustream/internal/backend/sim"
	"github.com/born-ml/gpustream/internal/native"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRegisterAndOpen(t *testing.T) {
	reg := backend.NewRegistry()
	reg.Register("b", func() (native.Runtime, error) { return sim.New(), nil })
	reg.Register("a", func() (native.Runtime, error) { return sim.New(), nil })

	assert.Equal(t, []string{"a", "b"}, reg.Names())

	rt, err := reg.Open("a")
	require.NoError(t, err)
	defer rt.Close()
	assert.Equal(t, "sim", rt.Name())
}

func TestRegistryOpenUnknown(t *testing.T) {
	reg := backend.NewRegistry()
	_, err := reg.Open("cuda")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"cuda" is not registered`)
}

func TestRegistryFactoryError(t *testing.T) {
	reg := backend.NewRegistry()
	boom := errors.New("driver missing")
	reg.Register("broken", func() (native.Runtime, error) { return nil, boom })

	_, err := reg.Open("broken")
	assert.ErrorIs(t, err, boom)
}

func TestDefaultRegistryHasSim(t *testing.T) {
	assert.Contains(t, backend.Default().Names(), "sim")
}
