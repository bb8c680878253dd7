package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/born-ml/gpustream/internal/interop"
	"github.com/born-ml/gpustream/internal/native"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{envBackend, envEngineKind, envLogLevel, envLogFormat} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	kind, err := cfg.Kind()
	require.NoError(t, err)
	assert.Equal(t, native.GPU, kind)

	flags, err := cfg.StreamFlags()
	require.NoError(t, err)
	assert.Equal(t, interop.InOrder, flags)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "sim", cfg.Backend)
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "gpustream.yaml")
	data := []byte(`backend: webgpu
engine_kind: cpu
device: 1
flags: [in-order, out-of-order]
log_level: debug
log_format: json
`)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "webgpu", cfg.Backend)
	assert.Equal(t, "cpu", cfg.EngineKind)
	assert.Equal(t, 1, cfg.Device)
	assert.Equal(t, "debug", cfg.LogLevel)

	flags, err := cfg.StreamFlags()
	require.NoError(t, err)
	assert.Equal(t, interop.InOrder|interop.OutOfOrder, flags)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(envBackend, "webgpu")
	t.Setenv(envLogLevel, "warn")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "webgpu", cfg.Backend)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "kind", yaml: "engine_kind: tpu\n"},
		{name: "flags", yaml: "flags: [sideways]\n"},
		{name: "level", yaml: "log_level: loud\n"},
		{name: "format", yaml: "log_format: xml\n"},
		{name: "device", yaml: "device: -1\n"},
		{name: "syntax", yaml: "backend: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			path := filepath.Join(t.TempDir(), "bad.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0o600))

			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := Default()
	cfg.LogLevel = "debug"
	cfg.LogFormat = "json"

	logger := NewLogger(&buf, cfg)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())

	logger.WithField("handle", "blas").Debug("handle rebound")
	assert.Contains(t, buf.String(), `"handle":"blas"`)
	assert.Contains(t, buf.String(), `"msg":"handle rebound"`)
}
