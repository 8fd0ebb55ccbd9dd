package gonoisesynth

import (
	"fmt"
	"sync/atomic"
)

// NoteEventType is the kind of a NoteEvent
type NoteEventType uint8

const (
	EventNoteOff NoteEventType = iota
	EventNoteOn
	// EventAllNotesOff releases every voice (MIDI CC 123, or CC 120 without tail)
	EventAllNotesOff
)

func (t NoteEventType) String() string {
	switch t {
	case EventNoteOff:
		return "NoteOff"
	case EventNoteOn:
		return "NoteOn"
	case EventAllNotesOff:
		return "AllNotesOff"
	default:
		return "Unknown"
	}
}

// NoteEvent is a timestamped note event inside one processing block
type NoteEvent struct {
	Type           NoteEventType
	Note           int     // 0-127
	Velocity       float64 // 0-1
	SamplePosition int     // offset from the start of the block
	// TailOff applies to note-off style events. A note-off that should
	// cut the voice immediately sets it to false.
	TailOff bool
}

func (e NoteEvent) String() string {
	return fmt.Sprintf("%s{note:%d, vel:%.2f, pos:%d}", e.Type, e.Note, e.Velocity, e.SamplePosition)
}

// NoteOn builds a note-on event
func NoteOn(note int, velocity float64, samplePosition int) NoteEvent {
	return NoteEvent{Type: EventNoteOn, Note: note, Velocity: velocity, SamplePosition: samplePosition}
}

// NoteOff builds a note-off event that lets the voice finish its release
func NoteOff(note int, samplePosition int) NoteEvent {
	return NoteEvent{Type: EventNoteOff, Note: note, SamplePosition: samplePosition, TailOff: true}
}

const (
	midiNoteOff       = 0x80
	midiNoteOn        = 0x90
	midiControlChange = 0xB0

	ccAllSoundOff = 120
	ccAllNotesOff = 123
)

// ParseMIDI converts one raw MIDI channel message into a NoteEvent.
// Messages that carry no note information report false.
func ParseMIDI(msg []byte, samplePosition int) (NoteEvent, bool) {
	if len(msg) < 1 {
		return NoteEvent{}, false
	}

	switch msg[0] & 0xF0 {
	case midiNoteOn:
		if len(msg) < 3 {
			return NoteEvent{}, false
		}
		note := int(msg[1] & 0x7F)
		velocity := msg[2] & 0x7F
		if velocity == 0 {
			// Note on with velocity 0 is a note off
			return NoteOff(note, samplePosition), true
		}
		return NoteOn(note, float64(velocity)/127.0, samplePosition), true

	case midiNoteOff:
		if len(msg) < 2 {
			return NoteEvent{}, false
		}
		return NoteOff(int(msg[1]&0x7F), samplePosition), true

	case midiControlChange:
		if len(msg) < 3 {
			return NoteEvent{}, false
		}
		switch msg[1] {
		case ccAllNotesOff:
			return NoteEvent{Type: EventAllNotesOff, SamplePosition: samplePosition, TailOff: true}, true
		case ccAllSoundOff:
			return NoteEvent{Type: EventAllNotesOff, SamplePosition: samplePosition}, true
		}
	}

	return NoteEvent{}, false
}

// EventBatch collects one period of incoming events in preallocated storage.
// Once it is full, note-ons are dropped and counted, while note-offs are held
// back and applied after the period so no voice is left hanging.
type EventBatch struct {
	events []NoteEvent
	late   []NoteEvent

	dropped atomic.Uint64
}

// NewEventBatch creates a batch holding capacity in-block events and as many
// deferred note-offs
func NewEventBatch(capacity int) *EventBatch {
	return &EventBatch{
		events: make([]NoteEvent, 0, capacity),
		late:   make([]NoteEvent, 0, capacity),
	}
}

// Reset empties the batch for the next period
func (b *EventBatch) Reset() {
	b.events = b.events[:0]
	b.late = b.late[:0]
}

// Add queues ev for the current period
func (b *EventBatch) Add(ev NoteEvent) {
	if len(b.events) < cap(b.events) {
		b.events = append(b.events, ev)
		return
	}
	if ev.Type != EventNoteOn && len(b.late) < cap(b.late) {
		b.late = append(b.late, ev)
		return
	}
	b.dropped.Add(1)
}

// Events returns the events rendered at their sample positions
func (b *EventBatch) Events() []NoteEvent {
	return b.events
}

// ApplyLate hands the deferred note-offs to engine. Call it after the
// period has been processed, from the audio thread.
func (b *EventBatch) ApplyLate(engine *Engine) {
	for _, ev := range b.late {
		engine.handleEvent(ev)
	}
	b.late = b.late[:0]
}

// Dropped returns how many events did not fit. Safe from any goroutine.
func (b *EventBatch) Dropped() uint64 {
	return b.dropped.Load()
}
