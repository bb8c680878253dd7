// Package interop binds device execution queues to an engine's library
// handles and keeps the handles' native stream bindings in step with the
// queue that issues their work.
//
// An Engine owns a native device and context, a lazily created service
// stream, and two lazily created library handles (BLAS and DNN). A Stream
// either creates its own queue on the engine or adopts one supplied by the
// caller:
//
//	eng, err := interop.NewEngine(rt, native.GPU, dev)
//	if err != nil {
//	    return err
//	}
//	defer eng.Release()
//
//	s := interop.NewStream(eng, interop.InOrder, nil)
//	if err := s.Init(); err != nil {
//	    return err
//	}
//	defer s.Release()
//
//	err = s.InteropTask(func(cg *native.CommandGroup) error {
//	    cg.Enqueue("gemm", launchGemm)
//	    return nil
//	})
//
// Adopted queues must share the engine's device, context and native stream:
// an engine exposes exactly one native stream, the one behind its service
// stream.
//
// Handles are engine-wide. Init and the handle accessors rebind them under
// an engine lock, so the last stream to initialize owns the bindings.
//
// Failures are reported as *StatusError values carrying a Status
// (InvalidArguments or RuntimeError); use StatusOf or errors.Is with
// ErrInvalidArguments and ErrRuntime to classify them.
package interop
