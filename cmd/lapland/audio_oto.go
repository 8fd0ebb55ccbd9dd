//go:build !headless

package main

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/ebitengine/oto/v3"

	"gonoisesynth"
)

// OtoPlayer plays a synth stream through the system audio device
type OtoPlayer struct {
	ctx     *oto.Context
	player  *oto.Player
	stream  atomic.Pointer[gonoisesynth.Stream] // Atomic for lock-free Read()
	started bool
	mutex   sync.Mutex // Only for setup/control operations
}

func NewOtoPlayer(sampleRate, channels int, bufferSize time.Duration) (*OtoPlayer, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatFloat32LE,
		BufferSize:   bufferSize,
	}

	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, err
	}
	<-ready

	return &OtoPlayer{
		ctx: ctx,
	}, nil
}

func (op *OtoPlayer) SetupPlayer(stream *gonoisesynth.Stream) {
	op.mutex.Lock()
	defer op.mutex.Unlock()

	op.stream.Store(stream)
	op.player = op.ctx.NewPlayer(op)
}

func (op *OtoPlayer) Read(p []byte) (n int, err error) {
	stream := op.stream.Load()
	if stream == nil {
		clear(p)
		return len(p), nil
	}
	return stream.Read(p)
}

func (op *OtoPlayer) Start() {
	op.mutex.Lock()
	defer op.mutex.Unlock()

	if !op.started && op.player != nil {
		op.player.Play()
		op.started = true
	}
}

func (op *OtoPlayer) Close() {
	op.mutex.Lock()
	defer op.mutex.Unlock()

	if op.player != nil {
		op.player.Close()
		op.player = nil
	}
	op.started = false
}
