package gonoisesynth

import (
	"cmp"
	"math"
	"slices"

	"github.com/GeoffreyPlitt/debuggo"
)

var renderDebug = debuggo.Debug("noisesynth:render")

const maxScoreSeconds = 3600.0

// ScoreNote is one note of an offline score. Times are in seconds.
type ScoreNote struct {
	Note     int
	Velocity float64 // 0-1
	Start    float64
	Length   float64
}

// Score is a list of notes in any order
type Score []ScoreNote

// Duration returns the time the last note is released
func (s Score) Duration() float64 {
	end := 0.0
	for _, n := range s {
		end = math.Max(end, n.Start+n.Length)
	}
	return end
}

// scheduledEvent is a note event at an absolute sample index
type scheduledEvent struct {
	sample int64
	event  NoteEvent
}

// schedule converts the score to absolute sample events. At equal times a
// note-off sorts before a note-on so a repeated key is released first.
func (s Score) schedule(sampleRate float64) []scheduledEvent {
	events := make([]scheduledEvent, 0, len(s)*2)
	for _, n := range s {
		on := int64(math.Round(n.Start * sampleRate))
		off := int64(math.Round((n.Start + n.Length) * sampleRate))
		events = append(events,
			scheduledEvent{sample: on, event: NoteOn(n.Note, n.Velocity, 0)},
			scheduledEvent{sample: off, event: NoteOff(n.Note, 0)},
		)
	}
	slices.SortStableFunc(events, func(a, b scheduledEvent) int {
		if c := cmp.Compare(a.sample, b.sample); c != 0 {
			return c
		}
		return cmp.Compare(offFirst(a.event), offFirst(b.event))
	})
	return events
}

func offFirst(ev NoteEvent) int {
	if ev.Type == EventNoteOff {
		return 0
	}
	return 1
}

// Renderer drives an Engine offline, block by block, the same way a realtime
// backend would
type Renderer struct {
	engine *Engine
	reverb *Reverb

	block  [][]float32
	view   [][]float32
	events []NoteEvent
}

// NewRenderer creates a renderer for engine. reverb may be nil.
func NewRenderer(engine *Engine, reverb *Reverb) *Renderer {
	cfg := engine.Config()
	block := make([][]float32, cfg.Channels)
	for ch := range block {
		block[ch] = make([]float32, cfg.BlockSize)
	}
	return &Renderer{
		engine: engine,
		reverb: reverb,
		block:  block,
		view:   make([][]float32, cfg.Channels),
		events: make([]NoteEvent, 0, 64),
	}
}

// Render plays score and keeps rendering for tail seconds after the last
// note-off. It returns planar audio, one slice per channel.
func (r *Renderer) Render(score Score, tail float64) [][]float32 {
	cfg := r.engine.Config()
	total := int(math.Ceil((score.Duration() + math.Max(tail, 0)) * cfg.SampleRate))
	scheduled := score.schedule(cfg.SampleRate)

	out := make([][]float32, cfg.Channels)
	for ch := range out {
		out[ch] = make([]float32, total)
	}

	renderDebug("Rendering %d notes, %d frames at %.0f Hz", len(score), total, cfg.SampleRate)

	next := 0
	for start := 0; start < total; start += cfg.BlockSize {
		n := cfg.BlockSize
		if start+n > total {
			n = total - start
		}

		r.events = r.events[:0]
		for next < len(scheduled) && scheduled[next].sample < int64(start+n) {
			ev := scheduled[next].event
			ev.SamplePosition = int(scheduled[next].sample - int64(start))
			if ev.SamplePosition < 0 {
				ev.SamplePosition = 0
			}
			r.events = append(r.events, ev)
			next++
		}

		block := r.blockView(n)
		r.engine.Process(block, r.events)
		if r.reverb != nil {
			r.reverb.Apply(block, n)
		}
		for ch := range out {
			copy(out[ch][start:start+n], block[ch])
		}
	}

	renderDebug("Render complete: %d dropped notes", r.engine.DroppedNotes())
	return out
}

// blockView clears and returns the first n frames of the scratch block
func (r *Renderer) blockView(n int) [][]float32 {
	for ch := range r.block {
		r.view[ch] = r.block[ch][:n]
		clear(r.view[ch])
	}
	return r.view
}
