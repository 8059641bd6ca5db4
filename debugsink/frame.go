// Package debugsink holds consumers for debug-draw line passes: an in-memory
// frame collector, a call counter, a compressed on-disk recorder and a
// websocket stream for live viewers.
//
// Every sink here has the line callback signature
// func(frame any, from, to, color [3]float32) and can be handed straight to
// World.SetDebugDrawer.
package debugsink

import "sync/atomic"

type Line struct {
	From  [3]float32 `json:"from"`
	To    [3]float32 `json:"to"`
	Color [3]float32 `json:"color"`
}

// Frame is the lines of one debug-draw pass.
type Frame struct {
	Seq   uint64 `json:"seq"`
	Lines []Line `json:"lines"`
}

func (f *Frame) Reset(seq uint64) {
	f.Seq = seq
	f.Lines = f.Lines[:0]
}

// Collect appends the line to frame, which must be a *Frame. Lines for any
// other frame value are dropped.
func Collect(frame any, from, to, color [3]float32) {
	f, ok := frame.(*Frame)
	if !ok || f == nil {
		return
	}
	f.Lines = append(f.Lines, Line{From: from, To: to, Color: color})
}

// Counter counts line callbacks and ignores their content.
type Counter struct {
	calls atomic.Int64
}

func (c *Counter) DrawLine(frame any, from, to, color [3]float32) {
	c.calls.Add(1)
}

func (c *Counter) Calls() int { return int(c.calls.Load()) }

func (c *Counter) Reset() { c.calls.Store(0) }
