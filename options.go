package dynworld

import (
	"github.com/gekko3d/dynworld/tuning"
)

type Option func(*World)

func WithLogger(l Logger) Option {
	return func(w *World) {
		if l != nil {
			w.log = l
		}
	}
}

// WithTuning sets the live tuning source read by slabs and entities.
func WithTuning(src tuning.Source) Option {
	return func(w *World) {
		if src != nil {
			w.tuning = src
		}
	}
}

// WithMaxSubSteps caps the physics substeps run by one Step call. Values are
// clamped to [1, 2].
func WithMaxSubSteps(n int) Option {
	return func(w *World) {
		w.maxSubSteps = max(1, min(2, n))
	}
}

// WithStrictSequencing turns sequencing mistakes (polling an unplaced sensor,
// drawing outside a frame) into panics instead of safe no-ops.
func WithStrictSequencing(strict bool) Option {
	return func(w *World) {
		w.strict = strict
	}
}

func WithBroadphaseCellSize(size float32) Option {
	return func(w *World) {
		w.cellSize = size
	}
}
