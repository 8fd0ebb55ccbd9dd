package gonoisesynth

import "math"

// EnvelopeState represents the current phase of an ADSR envelope
type EnvelopeState int

const (
	EnvelopeOff EnvelopeState = iota
	EnvelopeAttack
	EnvelopeDecay
	EnvelopeSustain
	EnvelopeRelease
)

const maxEnvelopeSeconds = 60.0

func (s EnvelopeState) String() string {
	switch s {
	case EnvelopeOff:
		return "off"
	case EnvelopeAttack:
		return "attack"
	case EnvelopeDecay:
		return "decay"
	case EnvelopeSustain:
		return "sustain"
	case EnvelopeRelease:
		return "release"
	default:
		return "unknown"
	}
}

// ADSR holds the envelope shape. Times are in seconds, Sustain is a level in [0, 1].
type ADSR struct {
	Attack  float64
	Decay   float64
	Sustain float64
	Release float64
}

// Clamped returns a copy with every field inside its stable range
func (a ADSR) Clamped() ADSR {
	return ADSR{
		Attack:  clampRange(a.Attack, 0, maxEnvelopeSeconds),
		Decay:   clampRange(a.Decay, 0, maxEnvelopeSeconds),
		Sustain: clampRange(a.Sustain, 0, 1),
		Release: clampRange(a.Release, 0, maxEnvelopeSeconds),
	}
}

// Envelope is a linear ADSR envelope generator advanced one sample at a time
type Envelope struct {
	state EnvelopeState
	level float64

	params     ADSR
	sampleRate float64

	attackRate  float64
	decayRate   float64
	releaseRate float64
}

// SetSampleRate sets the rate the envelope is ticked at
func (e *Envelope) SetSampleRate(sampleRate float64) {
	e.sampleRate = sampleRate
	e.recalculateRates()
}

// SetParameters updates the envelope shape. A running envelope picks up the
// new rates on its next tick.
func (e *Envelope) SetParameters(params ADSR) {
	e.params = params.Clamped()
	e.recalculateRates()
}

// Parameters returns the clamped shape currently in use
func (e *Envelope) Parameters() ADSR {
	return e.params
}

func (e *Envelope) recalculateRates() {
	e.attackRate = rateFor(1.0, e.params.Attack, e.sampleRate)
	e.decayRate = rateFor(1.0-e.params.Sustain, e.params.Decay, e.sampleRate)

	// Sustain follows a lowered level but never climbs back up
	if e.state == EnvelopeSustain {
		e.level = math.Min(e.level, e.params.Sustain)
	}
}

func rateFor(distance, seconds, sampleRate float64) float64 {
	if seconds <= 0 || sampleRate <= 0 {
		return -1
	}
	return distance / (seconds * sampleRate)
}

// NoteOn restarts the envelope from zero in the attack phase
func (e *Envelope) NoteOn() {
	e.level = 0
	switch {
	case e.attackRate > 0:
		e.state = EnvelopeAttack
	case e.decayRate > 0:
		e.level = 1.0
		e.state = EnvelopeDecay
	default:
		e.level = e.params.Sustain
		e.state = EnvelopeSustain
	}
}

// NoteOff moves any running phase into release. With a zero release time the
// envelope stops immediately.
func (e *Envelope) NoteOff() {
	if e.state == EnvelopeOff {
		return
	}

	releaseRate := rateFor(e.level, e.params.Release, e.sampleRate)
	if releaseRate > 0 {
		e.releaseRate = releaseRate
		e.state = EnvelopeRelease
		return
	}
	e.Reset()
}

// Reset stops the envelope and drops its output to zero
func (e *Envelope) Reset() {
	e.state = EnvelopeOff
	e.level = 0
}

// Process advances the envelope by one sample and returns its level in [0, 1]
func (e *Envelope) Process() float64 {
	switch e.state {
	case EnvelopeOff:
		return 0

	case EnvelopeAttack:
		e.level += e.attackRate
		if e.level >= 1.0 {
			e.level = 1.0
			if e.decayRate > 0 {
				e.state = EnvelopeDecay
			} else {
				e.level = e.params.Sustain
				e.state = EnvelopeSustain
			}
		}

	case EnvelopeDecay:
		if e.level <= e.params.Sustain {
			// Sustain was raised past the level: hold where decay got to
			e.state = EnvelopeSustain
			break
		}
		e.level -= e.decayRate
		if e.level <= e.params.Sustain {
			e.level = e.params.Sustain
			e.state = EnvelopeSustain
		}

	case EnvelopeSustain:
		e.level = math.Min(e.level, e.params.Sustain)

	case EnvelopeRelease:
		e.level -= e.releaseRate
		if e.level <= 0 {
			e.Reset()
		}
	}

	return e.level
}

// IsActive returns false only when the envelope is off
func (e *Envelope) IsActive() bool {
	return e.state != EnvelopeOff
}

// State returns the current phase
func (e *Envelope) State() EnvelopeState {
	return e.state
}

// Level returns the last output level without advancing
func (e *Envelope) Level() float64 {
	return e.level
}

func clampRange(value, min, max float64) float64 {
	if math.IsNaN(value) || value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
