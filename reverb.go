package gonoisesynth

import (
	"github.com/GeoffreyPlitt/debuggo"
)

var reverbDebug = debuggo.Debug("noisesynth:reverb")

// Freeverb topology (Jezar at Dreampoint): eight damped combs in parallel
// into four allpasses in series, per side. Delay lengths are for 44.1 kHz.
var (
	combTunings    = [...]int{1116, 1188, 1277, 1356, 1422, 1491, 1557, 1617}
	allpassTunings = [...]int{556, 441, 341, 225}
)

const (
	reverbInputGain = 0.015
	reverbDampScale = 0.4
	reverbRoomScale = 0.28
	reverbRoomBase  = 0.7
	stereoSpread    = 23
	allpassFeedback = 0.5
)

// ReverbSettings are the user-facing reverb controls, all in [0, 1].
// Send 0 bypasses the reverb.
type ReverbSettings struct {
	Send     float64
	RoomSize float64
	Damping  float64
	Width    float64
}

// DefaultReverbSettings returns a bypassed medium room
func DefaultReverbSettings() ReverbSettings {
	return ReverbSettings{
		Send:     0.0,
		RoomSize: 0.5,
		Damping:  0.5,
		Width:    1.0,
	}
}

type combFilter struct {
	buffer   []float64
	idx      int
	feedback float64
	damp     float64
	store    float64
}

func (c *combFilter) process(input float64) float64 {
	output := c.buffer[c.idx]
	c.store = output*(1.0-c.damp) + c.store*c.damp
	c.buffer[c.idx] = input + c.store*c.feedback
	c.idx++
	if c.idx == len(c.buffer) {
		c.idx = 0
	}
	return output
}

type allpassFilter struct {
	buffer []float64
	idx    int
}

func (a *allpassFilter) process(input float64) float64 {
	bufout := a.buffer[a.idx]
	a.buffer[a.idx] = input + bufout*allpassFeedback
	a.idx++
	if a.idx == len(a.buffer) {
		a.idx = 0
	}
	return bufout - input
}

// Reverb is a stereo Freeverb used on the master bus after voices are mixed.
// All delay lines are allocated by NewReverb.
type Reverb struct {
	combsL, combsR         [len(combTunings)]combFilter
	allpassesL, allpassesR [len(allpassTunings)]allpassFilter

	settings ReverbSettings
}

// NewReverb creates a reverb with delay lines scaled to sampleRate
func NewReverb(sampleRate float64, settings ReverbSettings) *Reverb {
	r := &Reverb{}
	scale := sampleRate / 44100.0

	for i, tuning := range combTunings {
		size := maxInt(1, int(float64(tuning)*scale))
		r.combsL[i].buffer = make([]float64, size)
		r.combsR[i].buffer = make([]float64, size+stereoSpread)
	}
	for i, tuning := range allpassTunings {
		size := maxInt(1, int(float64(tuning)*scale))
		r.allpassesL[i].buffer = make([]float64, size)
		r.allpassesR[i].buffer = make([]float64, size+stereoSpread)
	}

	r.SetSettings(settings)
	reverbDebug("Reverb created: rate=%.0f scale=%.2f", sampleRate, scale)
	return r
}

// SetSettings clamps and applies new settings. Not safe to call concurrently
// with Apply.
func (r *Reverb) SetSettings(s ReverbSettings) {
	s.Send = clampRange(s.Send, 0, 1)
	s.RoomSize = clampRange(s.RoomSize, 0, 1)
	s.Damping = clampRange(s.Damping, 0, 1)
	s.Width = clampRange(s.Width, 0, 1)
	r.settings = s

	feedback := s.RoomSize*reverbRoomScale + reverbRoomBase
	damp := s.Damping * reverbDampScale
	for i := range r.combsL {
		r.combsL[i].feedback = feedback
		r.combsR[i].feedback = feedback
		r.combsL[i].damp = damp
		r.combsR[i].damp = damp
	}
}

// Settings returns the clamped settings in use
func (r *Reverb) Settings() ReverbSettings {
	return r.settings
}

// processStereo returns the wet signal for one stereo frame
func (r *Reverb) processStereo(inL, inR float64) (float64, float64) {
	input := (inL + inR) * reverbInputGain

	var outL, outR float64
	for i := range r.combsL {
		outL += r.combsL[i].process(input)
		outR += r.combsR[i].process(input)
	}
	for i := range r.allpassesL {
		outL = r.allpassesL[i].process(outL)
		outR = r.allpassesR[i].process(outR)
	}

	wet1 := r.settings.Width/2.0 + 0.5
	wet2 := (1.0 - r.settings.Width) / 2.0
	return outL*wet1 + outR*wet2, outR*wet1 + outL*wet2
}

// Apply mixes the reverb into the first n frames of out in place:
// dry*(1-send) + wet*send. Mono output uses the left side; channels past the
// second are left dry. Apply does nothing when Send is zero.
func (r *Reverb) Apply(out [][]float32, n int) {
	send := r.settings.Send
	if send <= 0 || len(out) == 0 {
		return
	}
	dry := 1.0 - send

	left := out[0]
	right := left
	if len(out) > 1 {
		right = out[1]
	}

	for i := 0; i < n; i++ {
		inL := float64(left[i])
		inR := float64(right[i])
		wetL, wetR := r.processStereo(inL*send, inR*send)
		left[i] = float32(inL*dry + wetL)
		if len(out) > 1 {
			right[i] = float32(inR*dry + wetR)
		}
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
