//go:build !windows

package backend

// registerPlatform adds platform-specific backends. WebGPU is only built on
// windows.
func registerPlatform(*Registry) {}
