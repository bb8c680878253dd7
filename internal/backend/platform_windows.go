//go:build windows

package backend

import (
	"github.com/born-ml/gpustream/internal/backend/webgpu"
	"github.com/born-ml/gpustream/internal/native"
)

func registerPlatform(r *Registry) {
	r.Register("webgpu", func() (native.Runtime, error) {
		rt, err := webgpu.New()
		if err != nil {
			return nil, err
		}
		return rt, nil
	})
}
