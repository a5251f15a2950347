package sim

import (
	"vmcore/kernel"
	"vmcore/kernel/mm"

	"github.com/google/btree"
	"github.com/sirupsen/logrus"
)

// staleByte is written over every frame handed out by AllocFrame. Real frame
// allocators return frames with whatever their previous owner left behind.
const staleByte = 0xa5

// frameSet keeps the free frames ordered so that the lowest one is handed out
// first, which makes allocations deterministic across runs.
type frameSet struct {
	free *btree.BTreeG[mm.Frame]
}

func newFrameSet(first, last mm.Frame) *frameSet {
	s := &frameSet{
		free: btree.NewG[mm.Frame](8, func(a, b mm.Frame) bool { return a < b }),
	}

	for frame := first; frame <= last; frame++ {
		s.free.ReplaceOrInsert(frame)
	}
	return s
}

func (s *frameSet) take() (mm.Frame, bool) {
	return s.free.DeleteMin()
}

// put returns frame to the set. It reports false if frame was already free.
func (s *frameSet) put(frame mm.Frame) bool {
	_, found := s.free.ReplaceOrInsert(frame)
	return !found
}

func (s *frameSet) len() int {
	return s.free.Len()
}

// AllocFrame reserves the lowest free frame. It implements
// mm.FrameAllocatorFn and returns ErrOutOfMemory once the arena is exhausted.
func (m *Machine) AllocFrame() (mm.Frame, *kernel.Error) {
	frame, ok := m.frames.take()
	if !ok {
		m.log.WithField("allocations", m.allocs).Warn("frame allocator exhausted")
		return mm.InvalidFrame, ErrOutOfMemory
	}

	m.mem.fill(frame, staleByte)
	m.allocs++

	m.log.WithFields(logrus.Fields{
		"frame": frame,
		"phys":  hexAddr(frame.Address()),
	}).Debug("allocated frame")

	return frame, nil
}

// FreeFrame returns a frame obtained from AllocFrame to the allocator.
func (m *Machine) FreeFrame(frame mm.Frame) *kernel.Error {
	if frame == reservedFrame || !m.mem.contains(frame) || frame == mm.FrameFromAddress(m.rootAddr) {
		return ErrInvalidFrame
	}

	if !m.frames.put(frame) {
		return ErrInvalidFrame
	}

	m.log.WithField("frame", frame).Debug("released frame")
	return nil
}

// Allocations returns the number of successful AllocFrame calls.
func (m *Machine) Allocations() int {
	return m.allocs
}

// FreeFrames returns the number of frames that are still available.
func (m *Machine) FreeFrames() int {
	return m.frames.len()
}
