package gonoisesynth

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	algofft "github.com/cwbudde/algo-fft"
)

const (
	spectrumSize = 4096
	spectrumHop  = 2048
)

// SpectralPeak returns the frequency in Hz with the most energy in samples,
// averaged over Hann-windowed frames. Key tracking shows up as a peak at the
// played note.
func SpectralPeak(samples []float64, sampleRate int) (float64, error) {
	if len(samples) == 0 || sampleRate <= 0 {
		return 0, errors.New("no audio to analyze")
	}

	plan, err := algofft.NewPlanReal64(spectrumSize)
	if err != nil {
		return 0, fmt.Errorf("fft plan: %w", err)
	}

	hann := make([]float64, spectrumSize)
	for i := range hann {
		hann[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(spectrumSize-1))
	}

	nBins := spectrumSize / 2
	bins := make([]complex128, nBins+1)
	buf := make([]float64, spectrumSize)
	avg := make([]float64, nBins)

	for pos := 0; pos == 0 || pos+spectrumSize <= len(samples); pos += spectrumHop {
		// A short signal is zero padded into one frame
		for i := range buf {
			s := 0.0
			if pos+i < len(samples) {
				s = samples[pos+i]
			}
			buf[i] = s * hann[i]
		}
		plan.Forward(bins, buf)
		for k := 1; k < nBins; k++ {
			avg[k] += cmplx.Abs(bins[k])
		}
	}

	peak := 1
	for k := 2; k < nBins; k++ {
		if avg[k] > avg[peak] {
			peak = k
		}
	}
	if avg[peak] == 0 {
		return 0, nil
	}

	// Parabolic interpolation between neighbouring bins
	offset := 0.0
	if peak+1 < nBins {
		a, b, c := avg[peak-1], avg[peak], avg[peak+1]
		if denom := a - 2*b + c; denom != 0 {
			offset = 0.5 * (a - c) / denom
		}
	}

	binHz := float64(sampleRate) / spectrumSize
	return (float64(peak) + offset) * binHz, nil
}
