package gonoisesynth

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

// createTestPatchFile writes a patch file into a per-test temp directory
func createTestPatchFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.patch")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write temp patch file: %v", err)
	}
	return path
}

// createTestEngine creates a stereo engine at 44.1 kHz with 512-sample blocks
func createTestEngine(t *testing.T, voices int) *Engine {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Voices = voices
	engine, err := NewEngine(cfg)
	if err != nil {
		t.Fatalf("Failed to create test engine: %v", err)
	}
	return engine
}

// newBlock allocates a cleared planar block
func newBlock(channels, frames int) [][]float32 {
	block := make([][]float32, channels)
	for ch := range block {
		block[ch] = make([]float32, frames)
	}
	return block
}

// rms returns the root mean square of buf
func rms(buf []float32) float64 {
	if len(buf) == 0 {
		return 0
	}
	var sum float64
	for _, s := range buf {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(buf)))
}

// allZero reports whether every sample of buf is exactly zero
func allZero(buf []float32) bool {
	for _, s := range buf {
		if s != 0 {
			return false
		}
	}
	return true
}

// preparedVoice returns a voice ready to sound with the factory envelope
// and unity gain
func preparedVoice(seed uint64, sampleRate float64, blockSize, channels int) *Voice {
	v := NewVoice(seed)
	v.Prepare(sampleRate, blockSize, channels)
	v.UpdateADSR(DefaultParameters().ADSR)
	v.UpdateVolume(1.0)
	return v
}

// expectPanic fails the test if fn returns normally
func expectPanic(t *testing.T, name string, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Errorf("Expected %s to panic", name)
		}
	}()
	fn()
}
