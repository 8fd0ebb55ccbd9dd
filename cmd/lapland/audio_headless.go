//go:build headless

package main

import (
	"sync/atomic"
	"time"

	"gonoisesynth"
)

// OtoPlayer has no audio device in headless builds. Read still pulls from the
// engine so a host loop can drive it.
type OtoPlayer struct {
	started atomic.Bool
	stream  atomic.Pointer[gonoisesynth.Stream]
}

func NewOtoPlayer(sampleRate, channels int, bufferSize time.Duration) (*OtoPlayer, error) {
	return &OtoPlayer{}, nil
}

func (op *OtoPlayer) SetupPlayer(stream *gonoisesynth.Stream) {
	op.stream.Store(stream)
}

// Read renders into p once started, and reads silence before that
func (op *OtoPlayer) Read(p []byte) (n int, err error) {
	stream := op.stream.Load()
	if stream == nil || !op.started.Load() {
		clear(p)
		return len(p), nil
	}
	return stream.Read(p)
}

func (op *OtoPlayer) Start() {
	op.started.Store(true)
}

func (op *OtoPlayer) Close() {
	op.started.Store(false)
}
