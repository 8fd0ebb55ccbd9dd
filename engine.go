package gonoisesynth

import (
	"errors"
	"fmt"
	"slices"

	"github.com/GeoffreyPlitt/debuggo"
)

var engineDebug = debuggo.Debug("noisesynth:engine")

// ErrInvalidConfig is returned when an engine or pool is configured with
// values it cannot run with
var ErrInvalidConfig = errors.New("invalid engine configuration")

const maxChannels = 8

// Config describes the fixed shape of an engine
type Config struct {
	Voices     int
	SampleRate float64
	BlockSize  int
	Channels   int
	Seed       uint64
}

// DefaultConfig returns a 22-voice stereo engine at 44.1 kHz
func DefaultConfig() Config {
	return Config{
		Voices:     22,
		SampleRate: 44100,
		BlockSize:  512,
		Channels:   2,
		Seed:       1,
	}
}

// Validate checks that the configuration can be run
func (c Config) Validate() error {
	if c.Voices < 1 {
		return fmt.Errorf("%w: voices must be at least 1, got %d", ErrInvalidConfig, c.Voices)
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate must be positive, got %v", ErrInvalidConfig, c.SampleRate)
	}
	if c.BlockSize < 1 {
		return fmt.Errorf("%w: block size must be at least 1, got %d", ErrInvalidConfig, c.BlockSize)
	}
	if c.Channels < 1 || c.Channels > maxChannels {
		return fmt.Errorf("%w: channels must be between 1 and %d, got %d", ErrInvalidConfig, maxChannels, c.Channels)
	}
	return nil
}

// Engine is the block processor. One audio thread calls Process once per
// block; any other goroutine may change parameters through Params.
type Engine struct {
	config Config
	pool   VoicePool
	params *ParameterStore

	lastKeyFreq float64
}

// NewEngine validates cfg, then creates and prepares every voice
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		config: cfg,
		params: NewParameterStore(),
	}
	if err := e.pool.initialize(cfg.Voices, cfg.SampleRate, cfg.BlockSize, cfg.Channels, cfg.Seed); err != nil {
		return nil, fmt.Errorf("failed to create voice pool: %w", err)
	}
	e.lastKeyFreq = prepareKeyFreq

	engineDebug("Engine created: %d voices, %.0f Hz, block %d, %d channels",
		cfg.Voices, cfg.SampleRate, cfg.BlockSize, cfg.Channels)
	return e, nil
}

// Config returns the configuration the engine was built with
func (e *Engine) Config() Config {
	return e.config
}

// Params returns the control surface of the engine
func (e *Engine) Params() *ParameterStore {
	return e.params
}

// Pool exposes the voice pool, mostly for diagnostics
func (e *Engine) Pool() *VoicePool {
	return &e.pool
}

// Process renders one block into out, adding to what is already there.
// out holds one slice per channel, all of the same length. events must lie
// inside the block; they are sorted in place by SamplePosition and positions
// outside the block are clamped to it.
//
// Process does not allocate, lock or block.
func (e *Engine) Process(out [][]float32, events []NoteEvent) {
	if len(out) == 0 {
		return
	}
	n := len(out[0])

	snapshot := e.params.Snapshot()
	e.pool.BroadcastSharedParameters(snapshot)
	if snapshot.KeyFreq != e.lastKeyFreq {
		e.lastKeyFreq = snapshot.KeyFreq
		e.pool.BroadcastKeyFrequencyToIdleVoices(snapshot.KeyFreq)
	}

	slices.SortStableFunc(events, func(a, b NoteEvent) int {
		return a.SamplePosition - b.SamplePosition
	})

	cursor := 0
	for _, ev := range events {
		pos := ev.SamplePosition
		if pos < cursor {
			pos = cursor
		}
		if pos > n {
			pos = n
		}
		e.renderRange(out, cursor, pos-cursor)
		cursor = pos
		e.handleEvent(ev)
	}
	e.renderRange(out, cursor, n-cursor)
}

func (e *Engine) handleEvent(ev NoteEvent) {
	switch ev.Type {
	case EventNoteOn:
		e.pool.HandleNoteOn(ev.Note, ev.Velocity)
		// Idle voices follow the most recent note
		if ev.Note >= 0 && ev.Note < numMidiNotes {
			e.pool.BroadcastKeyFrequencyToIdleVoices(NoteToFrequency(ev.Note))
		}
	case EventNoteOff:
		e.pool.HandleNoteOff(ev.Note, ev.TailOff)
	case EventAllNotesOff:
		e.pool.AllNotesOff(ev.TailOff)
	}
}

// renderRange renders count samples from start in chunks no larger than the
// prepared block size
func (e *Engine) renderRange(out [][]float32, start, count int) {
	for count > 0 {
		chunk := count
		if chunk > e.config.BlockSize {
			chunk = e.config.BlockSize
		}
		e.pool.RenderBlock(out, start, chunk)
		start += chunk
		count -= chunk
	}
}

// NoteOn starts a note immediately, outside of Process. It must be called
// from the same goroutine that calls Process.
func (e *Engine) NoteOn(note int, velocity float64) bool {
	return e.pool.HandleNoteOn(note, velocity)
}

// NoteOff releases a note immediately. Same threading rule as NoteOn.
func (e *Engine) NoteOff(note int, allowTailOff bool) {
	e.pool.HandleNoteOff(note, allowTailOff)
}

// BusyVoices returns the number of sounding voices
func (e *Engine) BusyVoices() int {
	return e.pool.BusyVoiceCount()
}

// DroppedNotes returns the number of note-ons lost to polyphony exhaustion
func (e *Engine) DroppedNotes() uint64 {
	return e.pool.DroppedNotes()
}
