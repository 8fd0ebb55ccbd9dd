package gonoisesynth

import (
	"math"
	"sync/atomic"
)

// SharedSynthParameters is a per-block snapshot of the values every voice reads.
// It is passed by value; voices never hold a reference to the control layer.
type SharedSynthParameters struct {
	KeyFreq       float64 // Hz, pre-tunes idle voices
	CleaningLevel float64 // band-pass Q
	ADSR          ADSR
	Volume        float64 // linear gain
}

// DefaultParameters returns the factory values of the synth
func DefaultParameters() SharedSynthParameters {
	return SharedSynthParameters{
		KeyFreq:       20.0,
		CleaningLevel: 1000.0,
		ADSR: ADSR{
			Attack:  0.1,
			Decay:   0.1,
			Sustain: 0.1,
			Release: 0.6,
		},
		Volume: 0.06,
	}
}

// ParamID identifies one control-surface parameter
type ParamID int

const (
	ParamKeyFreq ParamID = iota
	ParamCleaningLevel
	ParamAttack
	ParamDecay
	ParamSustain
	ParamRelease
	ParamVolume

	numParams
)

// ParameterRange is the host range and default of a parameter
type ParameterRange struct {
	Min     float64
	Max     float64
	Default float64
}

// Clamp limits value to the range; NaN becomes the default
func (r ParameterRange) Clamp(value float64) float64 {
	if math.IsNaN(value) {
		return r.Default
	}
	if value < r.Min {
		return r.Min
	}
	if value > r.Max {
		return r.Max
	}
	return value
}

var paramRanges = [numParams]ParameterRange{
	ParamKeyFreq:       {Min: 20.0, Max: 20000.0, Default: 20.0},
	ParamCleaningLevel: {Min: 20.0, Max: 1000.0, Default: 1000.0},
	ParamAttack:        {Min: 0.1, Max: 1.0, Default: 0.1},
	ParamDecay:         {Min: 0.1, Max: 1.0, Default: 0.1},
	ParamSustain:       {Min: 0.1, Max: 1.0, Default: 0.1},
	ParamRelease:       {Min: 0.1, Max: 10.0, Default: 0.6},
	ParamVolume:        {Min: 0.0, Max: 1.0, Default: 0.06},
}

var paramNames = [numParams]string{
	ParamKeyFreq:       "KeyFreq",
	ParamCleaningLevel: "CleaningLevel",
	ParamAttack:        "Attack",
	ParamDecay:         "Decay",
	ParamSustain:       "Sustain",
	ParamRelease:       "Release",
	ParamVolume:        "Volume",
}

func (id ParamID) String() string {
	if id < 0 || id >= numParams {
		return "Unknown"
	}
	return paramNames[id]
}

// Range returns the host range of a parameter
func (id ParamID) Range() ParameterRange {
	if id < 0 || id >= numParams {
		return ParameterRange{}
	}
	return paramRanges[id]
}

// ParamIDs lists every parameter in declaration order
func ParamIDs() []ParamID {
	ids := make([]ParamID, numParams)
	for i := range ids {
		ids[i] = ParamID(i)
	}
	return ids
}

// ParameterStore holds the current control values as atomic float64 bits.
// A control thread writes with Set; the audio thread reads with Snapshot,
// one atomic load per scalar and no locks.
type ParameterStore struct {
	values [numParams]atomic.Uint64
}

// NewParameterStore creates a store holding the default values
func NewParameterStore() *ParameterStore {
	ps := &ParameterStore{}
	for id := ParamID(0); id < numParams; id++ {
		ps.values[id].Store(math.Float64bits(paramRanges[id].Default))
	}
	return ps
}

// Set clamps value to the parameter's range and publishes it.
// Unknown ids are ignored.
func (ps *ParameterStore) Set(id ParamID, value float64) {
	if id < 0 || id >= numParams {
		return
	}
	ps.values[id].Store(math.Float64bits(paramRanges[id].Clamp(value)))
}

// Get returns the current value of a parameter
func (ps *ParameterStore) Get(id ParamID) float64 {
	if id < 0 || id >= numParams {
		return 0
	}
	return math.Float64frombits(ps.values[id].Load())
}

// SetAll publishes every field of a snapshot
func (ps *ParameterStore) SetAll(p SharedSynthParameters) {
	ps.Set(ParamKeyFreq, p.KeyFreq)
	ps.Set(ParamCleaningLevel, p.CleaningLevel)
	ps.Set(ParamAttack, p.ADSR.Attack)
	ps.Set(ParamDecay, p.ADSR.Decay)
	ps.Set(ParamSustain, p.ADSR.Sustain)
	ps.Set(ParamRelease, p.ADSR.Release)
	ps.Set(ParamVolume, p.Volume)
}

// Snapshot reads every parameter once. Values written concurrently may show
// up one block late; each scalar is read whole.
func (ps *ParameterStore) Snapshot() SharedSynthParameters {
	return SharedSynthParameters{
		KeyFreq:       ps.Get(ParamKeyFreq),
		CleaningLevel: ps.Get(ParamCleaningLevel),
		ADSR: ADSR{
			Attack:  ps.Get(ParamAttack),
			Decay:   ps.Get(ParamDecay),
			Sustain: ps.Get(ParamSustain),
			Release: ps.Get(ParamRelease),
		},
		Volume: ps.Get(ParamVolume),
	}
}
