package gonoisesynth

import (
	"fmt"

	"github.com/GeoffreyPlitt/debuggo"
)

var debug = debuggo.Debug("noisesynth:main")

// Synth ties an engine, its master reverb and an optional JACK client
// together from a patch file
type Synth struct {
	patch      *Patch
	engine     *Engine
	reverb     *Reverb
	jackClient *JackClient
}

// NewSynth creates a synth from a patch file. With a non-empty
// jackClientName it also tries to open a JACK client; failing to do so is
// logged and the synth stays usable offline.
func NewSynth(patchPath, jackClientName string) (*Synth, error) {
	debug("Creating new synth from patch: %s", patchPath)

	patch, err := ParsePatchFile(patchPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create synth: %w", err)
	}

	s, err := NewSynthFromPatch(patch)
	if err != nil {
		return nil, err
	}

	if jackClientName != "" {
		jc, err := NewJackClient(s.engine, s.reverb, jackClientName)
		if err != nil {
			debug("JACK client not available: %v", err)
		} else {
			s.jackClient = jc
		}
	}

	return s, nil
}

// NewSynthFromPatch builds an offline synth from an already parsed patch
func NewSynthFromPatch(patch *Patch) (*Synth, error) {
	cfg := patch.Config()
	engine, err := NewEngine(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create synth: %w", err)
	}
	engine.Params().SetAll(patch.Parameters())

	debug("Synth ready: %d voices, %d notes in score", cfg.Voices, len(patch.Notes))

	return &Synth{
		patch:  patch,
		engine: engine,
		reverb: NewReverb(cfg.SampleRate, patch.ReverbSettings()),
	}, nil
}

// Engine returns the synth's block processor
func (s *Synth) Engine() *Engine {
	return s.engine
}

// Params returns the synth's control surface
func (s *Synth) Params() *ParameterStore {
	return s.engine.Params()
}

// Reverb returns the master reverb
func (s *Synth) Reverb() *Reverb {
	return s.reverb
}

// Score returns the score embedded in the patch
func (s *Synth) Score() Score {
	return s.patch.Score()
}

// RenderScore renders the patch's own score offline
func (s *Synth) RenderScore(tail float64) [][]float32 {
	return NewRenderer(s.engine, s.reverb).Render(s.patch.Score(), tail)
}

// JackClient returns the JACK client, or nil when none is open
func (s *Synth) JackClient() *JackClient {
	return s.jackClient
}

// StartJack activates the JACK client
func (s *Synth) StartJack() error {
	if s.jackClient == nil {
		return fmt.Errorf("no JACK client open")
	}
	return s.jackClient.Start()
}

// StopAndClose stops and closes the JACK client, if any
func (s *Synth) StopAndClose() error {
	if s.jackClient == nil {
		return nil
	}

	debug("Stopping and closing JACK client")
	if err := s.jackClient.Stop(); err != nil {
		debug("Failed to stop JACK client: %v", err)
	}
	err := s.jackClient.Close()
	s.jackClient = nil
	if err != nil {
		return fmt.Errorf("failed to close JACK client: %w", err)
	}
	return nil
}
