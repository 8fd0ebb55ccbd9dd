package gonoisesynth

import (
	"encoding/binary"
	"math"
)

const streamMaxEventsPerBlock = 128

// Stream pulls blocks from an Engine and serves them as interleaved 32-bit
// little-endian float frames, the layout realtime audio drivers read.
// Notes arrive through a NoteQueue and take effect at the start of the next
// block. Read must only be called from one goroutine.
type Stream struct {
	engine *Engine
	reverb *Reverb
	queue  *NoteQueue

	block  [][]float32
	events []NoteEvent
	pos    int
	filled int
}

// NewStream creates a stream over engine. reverb and queue may be nil.
func NewStream(engine *Engine, reverb *Reverb, queue *NoteQueue) *Stream {
	cfg := engine.Config()
	block := make([][]float32, cfg.Channels)
	for ch := range block {
		block[ch] = make([]float32, cfg.BlockSize)
	}
	return &Stream{
		engine: engine,
		reverb: reverb,
		queue:  queue,
		block:  block,
		events: make([]NoteEvent, 0, streamMaxEventsPerBlock),
	}
}

// FrameSize returns the number of bytes in one interleaved frame
func (s *Stream) FrameSize() int {
	return len(s.block) * 4
}

// Read fills p with whole frames and never fails. A p shorter than one
// frame reads nothing.
func (s *Stream) Read(p []byte) (int, error) {
	frameSize := s.FrameSize()
	frames := len(p) / frameSize

	o := 0
	for i := 0; i < frames; i++ {
		if s.pos == s.filled {
			s.next()
		}
		for ch := range s.block {
			binary.LittleEndian.PutUint32(p[o:], math.Float32bits(s.block[ch][s.pos]))
			o += 4
		}
		s.pos++
	}
	return o, nil
}

// next renders one block
func (s *Stream) next() {
	for ch := range s.block {
		clear(s.block[ch])
	}

	s.events = s.events[:0]
	if s.queue != nil {
		s.events = s.queue.Drain(s.events)
		for i := range s.events {
			s.events[i].SamplePosition = 0
		}
	}

	s.engine.Process(s.block, s.events)
	if s.reverb != nil {
		s.reverb.Apply(s.block, len(s.block[0]))
	}
	s.pos = 0
	s.filled = len(s.block[0])
}
