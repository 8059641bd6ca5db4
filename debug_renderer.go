package dynworld

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/dynworld/solver"
)

// DrawLineFunc receives every line of a debug-draw pass together with the
// frame passed to DebugDraw. It is called synchronously and must not keep
// frame after the pass returns.
type DrawLineFunc func(frame any, from, to, color [3]float32)

// debugRenderer forwards line primitives from the dynamics world to a
// DrawLineFunc. Its only state is the frame of the pass in progress.
type debugRenderer struct {
	sink   DrawLineFunc
	frame  any
	active bool
	strict bool
	log    Logger
}

var _ solver.DebugDrawer = (*debugRenderer)(nil)

func (r *debugRenderer) attach(frame any) {
	r.frame = frame
	r.active = true
}

func (r *debugRenderer) detach() {
	r.frame = nil
	r.active = false
}

func (r *debugRenderer) DrawLine(from, to, color mgl32.Vec3) {
	if !r.active {
		if r.strict {
			panic(ErrNoFrame)
		}
		r.log.Debugf("debug draw: %v", ErrNoFrame)
		return
	}
	r.sink(r.frame, [3]float32(from), [3]float32(to), [3]float32(color))
}

func (r *debugRenderer) DrawContactPoint(point, normal mgl32.Vec3, distance float32, lifetime int, color mgl32.Vec3) {
}

func (r *debugRenderer) ReportErrorWarning(warning string) {
	r.log.Debugf("debug draw warning: %s", warning)
}

func (r *debugRenderer) Draw3DText(location mgl32.Vec3, text string) {}

func (r *debugRenderer) DebugMode() solver.DebugDrawModes { return solver.DrawWireframe }

// SetDebugDrawer installs sink as the debug line forwarder, replacing any
// previous one. A nil sink removes it.
func (w *World) SetDebugDrawer(sink DrawLineFunc) {
	if w == nil || w.closed {
		return
	}
	if w.debugRenderer != nil {
		w.debugRenderer.detach()
		w.debugRenderer = nil
		w.dynamics.SetDebugDrawer(nil)
	}
	if sink == nil {
		return
	}
	w.debugRenderer = &debugRenderer{sink: sink, strict: w.strict, log: w.log}
	w.dynamics.SetDebugDrawer(w.debugRenderer)
}

// DebugDraw runs one debug-draw traversal of the world, handing frame to
// every line. Without a drawer it does nothing.
func (w *World) DebugDraw(frame any) (err error) {
	if w == nil {
		return ErrInvalidHandle
	}
	if w.closed {
		return ErrClosed
	}
	r := w.debugRenderer
	if r == nil {
		return nil
	}

	r.attach(frame)
	defer r.detach()
	defer func() {
		// A failing sink must not leave the frame attached or unwind into the caller.
		if p := recover(); p != nil {
			if w.strict {
				panic(p)
			}
			err = fmt.Errorf("debug draw: sink panicked: %v", p)
		}
	}()

	w.dynamics.DebugDrawWorld()
	return nil
}
