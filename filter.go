package gonoisesynth

import (
	"math"

	"github.com/cwbudde/algo-dsp/dsp/filter/biquad"
)

const (
	// Stable coefficient ranges. Inputs outside are clamped before retuning.
	minCenterFreq    = 1.0
	maxCenterRatio   = 0.45 // of the sample rate, keeps the center below Nyquist
	minCleaningLevel = 0.1
	maxCleaningLevel = 1000.0
)

// BandPassFilter is a second-order IIR band-pass that tracks a key frequency.
// The cleaning level is used as Q: higher values give a tighter band and a
// stronger resonant peak (peak gain equals Q).
type BandPassFilter struct {
	// Normalized coefficients and history live in the section. Retuning
	// swaps the coefficients and keeps the history.
	section biquad.Section

	centerFreq    float64
	cleaningLevel float64
	sampleRate    float64
}

// Retune recomputes every coefficient for the given center frequency,
// sample rate and cleaning level. The history is kept.
func (f *BandPassFilter) Retune(centerFreq, sampleRate, cleaningLevel float64) {
	centerFreq = clampCenterFreq(centerFreq, sampleRate)
	cleaningLevel = clampCleaningLevel(cleaningLevel)

	f.centerFreq = centerFreq
	f.cleaningLevel = cleaningLevel
	f.sampleRate = sampleRate

	omega := 2.0 * math.Pi * centerFreq / sampleRate
	sinOmega := math.Sin(omega)
	cosOmega := math.Cos(omega)
	alpha := sinOmega / (2.0 * cleaningLevel)

	// Constant skirt gain band-pass: b0 = Q*alpha
	b0 := sinOmega / 2.0
	b1 := 0.0
	b2 := -sinOmega / 2.0
	a0 := 1.0 + alpha
	a1 := -2.0 * cosOmega
	a2 := 1.0 - alpha

	inv := 1.0 / a0
	f.section.Coefficients = biquad.Coefficients{
		B0: b0 * inv,
		B1: b1 * inv,
		B2: b2 * inv,
		A1: a1 * inv,
		A2: a2 * inv,
	}
}

// Coefficients returns the normalized coefficients from the last retune
func (f *BandPassFilter) Coefficients() biquad.Coefficients {
	return f.section.Coefficients
}

// Process filters one sample and updates the history in place
func (f *BandPassFilter) Process(x0 float64) float64 {
	return f.section.ProcessSample(x0)
}

// Reset clears the filter history
func (f *BandPassFilter) Reset() {
	f.section.Reset()
}

// CenterFreq returns the clamped center frequency last used for retuning
func (f *BandPassFilter) CenterFreq() float64 {
	return f.centerFreq
}

// CleaningLevel returns the clamped cleaning level last used for retuning
func (f *BandPassFilter) CleaningLevel() float64 {
	return f.cleaningLevel
}

func clampCenterFreq(freq, sampleRate float64) float64 {
	maxFreq := sampleRate * maxCenterRatio
	if math.IsNaN(freq) || freq < minCenterFreq {
		return minCenterFreq
	}
	if freq > maxFreq {
		return maxFreq
	}
	return freq
}

func clampCleaningLevel(level float64) float64 {
	if math.IsNaN(level) || level < minCleaningLevel {
		return minCleaningLevel
	}
	if level > maxCleaningLevel {
		return maxCleaningLevel
	}
	return level
}
