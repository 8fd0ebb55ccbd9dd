package gonoisesynth

import (
	"fmt"
	"sync/atomic"

	"github.com/GeoffreyPlitt/debuggo"
)

var poolDebug = debuggo.Debug("noisesynth:pool")

const numMidiNotes = 128

// VoicePool owns a fixed set of voices, hands note-ons to idle voices and
// mixes every voice into one destination buffer.
//
// Polyphony policy: a note-on with no idle voice is dropped and counted.
// There is no voice stealing and no queueing.
//
// Note-offs are routed through a fixed note -> voice table kept here, so the
// pool works without an upstream voice allocator.
type VoicePool struct {
	voices      []*Voice
	noteToVoice [numMidiNotes]int

	dropped atomic.Uint64
}

// Initialize creates and prepares voiceCount voices. It allocates and must
// not be called from the audio thread.
func (p *VoicePool) Initialize(voiceCount int, sampleRate float64, blockSize, outputChannels int) error {
	return p.initialize(voiceCount, sampleRate, blockSize, outputChannels, 1)
}

func (p *VoicePool) initialize(voiceCount int, sampleRate float64, blockSize, outputChannels int, seed uint64) error {
	if voiceCount < 1 {
		return fmt.Errorf("%w: voice count must be at least 1, got %d", ErrInvalidConfig, voiceCount)
	}
	if sampleRate <= 0 {
		return fmt.Errorf("%w: sample rate must be positive, got %v", ErrInvalidConfig, sampleRate)
	}
	if blockSize < 1 {
		return fmt.Errorf("%w: block size must be at least 1, got %d", ErrInvalidConfig, blockSize)
	}
	if outputChannels < 1 {
		return fmt.Errorf("%w: output channels must be at least 1, got %d", ErrInvalidConfig, outputChannels)
	}

	p.voices = make([]*Voice, voiceCount)
	for i := range p.voices {
		// Distinct seeds keep voices uncorrelated
		v := NewVoice(seed + uint64(i)*0x2545F4914F6CDD1D)
		v.Prepare(sampleRate, blockSize, outputChannels)
		p.voices[i] = v
	}
	for i := range p.noteToVoice {
		p.noteToVoice[i] = noNote
	}
	p.dropped.Store(0)

	poolDebug("Voice pool initialized: %d voices, rate=%.0f, block=%d, channels=%d",
		voiceCount, sampleRate, blockSize, outputChannels)
	return nil
}

// HandleNoteOn starts the note on the first idle voice in index order.
// It reports false when the note was dropped.
func (p *VoicePool) HandleNoteOn(note int, velocity float64) bool {
	if note < 0 || note >= numMidiNotes {
		return false
	}

	free := p.firstIdleVoice()
	if free == noNote {
		// Dropped: a voice still holding this note keeps playing
		p.dropped.Add(1)
		return false
	}

	// A note still held on another voice tails off once the new one has a voice
	if idx := p.noteToVoice[note]; idx != noNote {
		if v := p.voices[idx]; v.IsBusy() && v.Note() == note {
			v.StopNote(true)
		}
	}

	p.voices[free].StartNote(note, velocity)
	p.noteToVoice[note] = free
	return true
}

func (p *VoicePool) firstIdleVoice() int {
	for i, v := range p.voices {
		if !v.IsBusy() {
			return i
		}
	}
	return noNote
}

// HandleNoteOff stops the voice holding note, if any
func (p *VoicePool) HandleNoteOff(note int, allowTailOff bool) {
	if note < 0 || note >= numMidiNotes {
		return
	}
	idx := p.noteToVoice[note]
	if idx == noNote {
		return
	}
	p.noteToVoice[note] = noNote

	if v := p.voices[idx]; v.IsBusy() && v.Note() == note {
		v.StopNote(allowTailOff)
	}
}

// AllNotesOff stops every busy voice
func (p *VoicePool) AllNotesOff(allowTailOff bool) {
	for _, v := range p.voices {
		if v.IsBusy() {
			v.StopNote(allowTailOff)
		}
	}
	for i := range p.noteToVoice {
		p.noteToVoice[i] = noNote
	}
}

// BroadcastSharedParameters pushes the same cleaning level, envelope and
// volume to every voice, busy or not
func (p *VoicePool) BroadcastSharedParameters(params SharedSynthParameters) {
	for _, v := range p.voices {
		v.UpdateNoiseCleaningLevel(params.CleaningLevel)
		v.UpdateADSR(params.ADSR)
		v.UpdateVolume(params.Volume)
	}
}

// BroadcastKeyFrequencyToIdleVoices pre-tunes idle voices without touching
// sounding ones
func (p *VoicePool) BroadcastKeyFrequencyToIdleVoices(freq float64) {
	for _, v := range p.voices {
		if !v.IsBusy() {
			v.UpdateKeyFreq(freq)
		}
	}
}

// RenderBlock lets every voice add its output into dest. dest is not cleared.
func (p *VoicePool) RenderBlock(dest [][]float32, startOffset, count int) {
	for _, v := range p.voices {
		v.RenderBlock(dest, startOffset, count)
	}
}

// BusyVoiceCount returns how many voices are sounding
func (p *VoicePool) BusyVoiceCount() int {
	count := 0
	for _, v := range p.voices {
		if v.IsBusy() {
			count++
		}
	}
	return count
}

// DroppedNotes returns how many note-ons were dropped for lack of a voice.
// Safe to call from any goroutine.
func (p *VoicePool) DroppedNotes() uint64 {
	return p.dropped.Load()
}

// Size returns the number of voices
func (p *VoicePool) Size() int {
	return len(p.voices)
}

// Voice returns the voice at index i
func (p *VoicePool) Voice(i int) *Voice {
	return p.voices[i]
}
