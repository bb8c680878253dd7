package interop

import "github.com/born-ml/gpustream/internal/native"

// contextGuard makes an engine's context current and puts the previous one
// back on Release. Callers defer Release right after acquiring.
type contextGuard struct {
	rt       native.Runtime
	prior    native.ContextID
	switched bool
	released bool
}

// acquireContext makes e's native context current on its runtime.
func acquireContext(e *Engine) (*contextGuard, error) {
	g := &contextGuard{rt: e.rt}

	err := nativeCall("acquire context", func() error {
		prior, err := e.rt.CurrentContext()
		if err != nil {
			return err
		}
		g.prior = prior
		if prior == e.context {
			return nil
		}
		if err := e.rt.SetCurrentContext(e.context); err != nil {
			return err
		}
		g.switched = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}

// Release restores the context that was current before acquisition. It is
// safe to call more than once.
func (g *contextGuard) Release() error {
	if g.released {
		return nil
	}
	g.released = true
	if !g.switched {
		return nil
	}
	return nativeCall("restore context", func() error {
		return g.rt.SetCurrentContext(g.prior)
	})
}
