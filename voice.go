package gonoisesynth

import (
	"fmt"
	"math"

	"github.com/GeoffreyPlitt/debuggo"
)

var voiceDebug = debuggo.Debug("noisesynth:voice")

const (
	// noiseLevel trims the raw noise before the resonant filter
	noiseLevel = 0.01

	// prepareKeyFreq is the filter tuning a freshly prepared voice starts at
	prepareKeyFreq = 20.0

	noNote = -1
)

// Voice is one monophonic noise -> band-pass -> envelope -> gain chain.
//
// Prepare must be called before RenderBlock; rendering an unprepared voice
// panics. None of the methods allocate or block once the voice is prepared.
type Voice struct {
	noise    *NoiseSource
	filter   BandPassFilter
	envelope Envelope
	gain     float64

	lastSampleRate    float64
	lastKeyFreq       float64
	lastCleaningLevel float64

	channels int
	scratch  []float64

	active   bool
	note     int
	velocity float64
}

// NewVoice creates an idle voice with its own noise generator
func NewVoice(seed uint64) *Voice {
	return &Voice{
		noise:             NewNoiseSource(seed),
		lastKeyFreq:       prepareKeyFreq,
		lastCleaningLevel: DefaultParameters().CleaningLevel,
		note:              noNote,
	}
}

// Prepare sets up the voice for a sample rate, maximum block size and output
// channel count. Any sounding note is dropped and the filter history cleared.
func (v *Voice) Prepare(sampleRate float64, blockSize, outputChannels int) {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || blockSize < 1 || outputChannels < 1 {
		panic(fmt.Sprintf("gonoisesynth: invalid voice preparation (rate=%v block=%d channels=%d)",
			sampleRate, blockSize, outputChannels))
	}

	v.lastSampleRate = sampleRate
	v.channels = outputChannels
	v.scratch = make([]float64, blockSize)

	v.envelope.SetSampleRate(sampleRate)
	v.envelope.Reset()
	v.clearNote()

	v.filter.Reset()
	v.UpdateKeyFreq(prepareKeyFreq)

	voiceDebug("Voice prepared: rate=%.0f block=%d channels=%d", sampleRate, blockSize, outputChannels)
}

// StartNote tunes the filter to the note and triggers the envelope.
// Velocity is kept but does not change the amplitude.
func (v *Voice) StartNote(note int, velocity float64) {
	v.UpdateKeyFreq(NoteToFrequency(note))
	v.envelope.NoteOn()
	v.active = true
	v.note = note
	v.velocity = velocity
}

// StopNote releases the envelope. Without tail-off, or when the envelope has
// nothing left to release, the voice goes idle immediately.
func (v *Voice) StopNote(allowTailOff bool) {
	v.envelope.NoteOff()
	if !allowTailOff || !v.envelope.IsActive() {
		v.envelope.Reset()
		v.clearNote()
	}
}

// UpdateKeyFreq retunes the filter center. Works whether or not the voice is busy.
func (v *Voice) UpdateKeyFreq(freq float64) {
	if freq == v.lastKeyFreq && v.filter.sampleRate == v.lastSampleRate {
		return
	}
	v.lastKeyFreq = freq
	v.retune()
}

// UpdateNoiseCleaningLevel changes the filter bandwidth
func (v *Voice) UpdateNoiseCleaningLevel(level float64) {
	if level == v.lastCleaningLevel && v.filter.sampleRate == v.lastSampleRate {
		return
	}
	v.lastCleaningLevel = level
	v.retune()
}

// UpdateADSR changes the envelope shape used from the next sample on
func (v *Voice) UpdateADSR(params ADSR) {
	v.envelope.SetParameters(params)
}

// UpdateVolume sets the linear output gain
func (v *Voice) UpdateVolume(gain float64) {
	v.gain = gain
}

func (v *Voice) retune() {
	if v.lastSampleRate <= 0 {
		// Retuned on Prepare
		return
	}
	v.filter.Retune(v.lastKeyFreq, v.lastSampleRate, v.lastCleaningLevel)
}

// RenderBlock adds count samples of this voice into every channel of out,
// starting at startOffset. An idle voice leaves out untouched.
func (v *Voice) RenderBlock(out [][]float32, startOffset, count int) {
	if !v.active {
		return
	}
	if v.scratch == nil {
		panic("gonoisesynth: Voice.RenderBlock called before Prepare")
	}
	if count > len(v.scratch) {
		panic(fmt.Sprintf("gonoisesynth: render of %d samples exceeds prepared block size %d", count, len(v.scratch)))
	}

	buf := v.scratch[:count]
	v.noise.Fill(buf)
	for i, s := range buf {
		s = v.filter.Process(s * noiseLevel)
		s *= v.envelope.Process()
		buf[i] = ApplyGain(s, v.gain)
	}

	for ch := 0; ch < len(out) && ch < v.channels; ch++ {
		dst := out[ch][startOffset : startOffset+count]
		for i, s := range buf {
			dst[i] += float32(s)
		}
	}

	if !v.envelope.IsActive() {
		v.clearNote()
	}
}

func (v *Voice) clearNote() {
	v.active = false
	v.note = noNote
	v.velocity = 0
}

// IsBusy reports whether the voice is sounding, including its release tail
func (v *Voice) IsBusy() bool {
	return v.active
}

// Note returns the note the voice is playing, or -1 when idle
func (v *Voice) Note() int {
	return v.note
}

// Velocity returns the velocity the current note was started with
func (v *Voice) Velocity() float64 {
	return v.velocity
}

// KeyFreq returns the frequency the filter was last asked to track
func (v *Voice) KeyFreq() float64 {
	return v.lastKeyFreq
}

// CleaningLevel returns the last cleaning level pushed to the voice
func (v *Voice) CleaningLevel() float64 {
	return v.lastCleaningLevel
}

// EnvelopeState returns the phase of the voice's envelope
func (v *Voice) EnvelopeState() EnvelopeState {
	return v.envelope.State()
}

// EnvelopeLevel returns the envelope's current output level
func (v *Voice) EnvelopeLevel() float64 {
	return v.envelope.Level()
}

// NoteToFrequency converts a MIDI note number to Hz (12-TET, A4 = 440 Hz)
func NoteToFrequency(note int) float64 {
	return 440.0 * math.Pow(2.0, float64(note-69)/12.0)
}
