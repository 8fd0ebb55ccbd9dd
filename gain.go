package gonoisesynth

// ApplyGain scales one sample by a linear gain. No clamping is done here.
func ApplyGain(sample, gain float64) float64 {
	return sample * gain
}

// ApplyGainBlock scales every sample in buf in place
func ApplyGainBlock(buf []float64, gain float64) {
	for i := range buf {
		buf[i] *= gain
	}
}
