package gonoisesynth

import "math/rand/v2"

// NoiseSource generates white noise uniformly distributed over [-1, 1).
// Each voice owns its own source so voices never share generator state.
type NoiseSource struct {
	rng *rand.Rand
}

// NewNoiseSource creates a noise source seeded for reproducible output
func NewNoiseSource(seed uint64) *NoiseSource {
	return &NoiseSource{
		rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Next returns the next noise sample
func (n *NoiseSource) Next() float64 {
	return n.rng.Float64()*2.0 - 1.0
}

// Fill writes len(buf) noise samples into buf
func (n *NoiseSource) Fill(buf []float64) {
	for i := range buf {
		buf[i] = n.rng.Float64()*2.0 - 1.0
	}
}
