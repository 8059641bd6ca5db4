package dynworld

import "errors"

var (
	// ErrInvalidHandle is returned for nil, destroyed or foreign handles.
	ErrInvalidHandle = errors.New("dynworld: invalid handle")
	// ErrInvalidMesh is returned when slab buffers are not whole triangles.
	ErrInvalidMesh = errors.New("dynworld: invalid mesh buffers")
	// ErrSlabAlreadyLive is returned when a new slab is built without passing the live one.
	ErrSlabAlreadyLive = errors.New("dynworld: world already has a live slab")
	ErrSensorNotPlaced = errors.New("dynworld: jump sensor polled before placement")
	ErrNoFrame         = errors.New("dynworld: debug line drawn outside a frame")
	ErrClosed          = errors.New("dynworld: world is closed")
)
