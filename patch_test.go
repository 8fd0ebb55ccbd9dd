package gonoisesynth

import (
	"math"
	"path/filepath"
	"strings"
	"testing"
)

func TestParsePatchFile(t *testing.T) {
	patch, err := ParsePatchFile(filepath.Join("testdata", "test.patch"))
	if err != nil {
		t.Fatalf("Failed to parse test.patch: %v", err)
	}

	if patch.Global == nil || patch.Engine == nil || patch.Voice == nil || patch.Reverb == nil {
		t.Fatal("Expected global, engine, voice and reverb sections")
	}
	if len(patch.Notes) != 3 {
		t.Errorf("Expected 3 notes, got %d", len(patch.Notes))
	}

	expectedVoiceOpcodes := map[string]string{
		"key_freq":      "110",
		"cleaning":      "400",
		"ampeg_attack":  "0.05",
		"ampeg_decay":   "0.2",
		"ampeg_sustain": "0.5",
	}
	for opcode, expectedValue := range expectedVoiceOpcodes {
		if value := patch.Voice.Opcodes[opcode]; value != expectedValue {
			t.Errorf("Expected voice %s to be '%s', got '%s'", opcode, expectedValue, value)
		}
	}
}

func TestParsePatchFileNotFound(t *testing.T) {
	_, err := ParsePatchFile("nonexistent.patch")
	if err == nil {
		t.Error("Expected error for nonexistent file")
	}
}

func TestPatchConfig(t *testing.T) {
	patch, err := ParsePatchFile(filepath.Join("testdata", "test.patch"))
	if err != nil {
		t.Fatalf("Failed to parse test.patch: %v", err)
	}

	want := Config{Voices: 8, SampleRate: 22050, BlockSize: 256, Channels: 2, Seed: 7}
	if got := patch.Config(); got != want {
		t.Errorf("Expected config %+v, got %+v", want, got)
	}
}

func TestPatchInheritance(t *testing.T) {
	patch, err := ParsePatchFile(filepath.Join("testdata", "test.patch"))
	if err != nil {
		t.Fatalf("Failed to parse test.patch: %v", err)
	}

	params := patch.Parameters()
	tests := []struct {
		name string
		got  float64
		want float64
	}{
		// From <voice>
		{"key_freq", params.KeyFreq, 110},
		{"cleaning", params.CleaningLevel, 400},
		{"sustain", params.ADSR.Sustain, 0.5},
		// Only in <global>
		{"volume", params.Volume, 0.2},
		{"release", params.ADSR.Release, 0.3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if math.Abs(tt.got-tt.want) > 1e-9 {
				t.Errorf("Expected %s=%.3f, got %.3f", tt.name, tt.want, tt.got)
			}
		})
	}
}

func TestPatchSectionOverridesGlobal(t *testing.T) {
	patch, err := ParsePatch(strings.NewReader(`
<global> volume=0.5 cleaning=100
<voice> volume=0.1
`))
	if err != nil {
		t.Fatalf("Failed to parse patch: %v", err)
	}

	params := patch.Parameters()
	if params.Volume != 0.1 {
		t.Errorf("Expected voice volume to override global, got %f", params.Volume)
	}
	if params.CleaningLevel != 100 {
		t.Errorf("Expected cleaning inherited from global, got %f", params.CleaningLevel)
	}
}

func TestPatchDefaults(t *testing.T) {
	patch, err := ParsePatch(strings.NewReader(""))
	if err != nil {
		t.Fatalf("Failed to parse empty patch: %v", err)
	}

	if patch.Config() != DefaultConfig() {
		t.Errorf("Expected default config, got %+v", patch.Config())
	}
	if patch.Parameters() != DefaultParameters() {
		t.Errorf("Expected default parameters, got %+v", patch.Parameters())
	}
	if patch.ReverbSettings() != DefaultReverbSettings() {
		t.Errorf("Expected default reverb, got %+v", patch.ReverbSettings())
	}
	if len(patch.Score()) != 0 {
		t.Errorf("Expected empty score, got %d notes", len(patch.Score()))
	}
}

func TestPatchMalformedValues(t *testing.T) {
	patch, err := ParsePatch(strings.NewReader(`
volume=0.9
<engine> voices=many
<voice> cleaning=abc unknown_opcode=5 ampeg_attack=0.3
<mystery> volume=1
`))
	if err != nil {
		t.Fatalf("Failed to parse patch: %v", err)
	}

	if patch.Config().Voices != DefaultConfig().Voices {
		t.Errorf("Expected invalid voices to fall back to default, got %d", patch.Config().Voices)
	}
	params := patch.Parameters()
	if params.CleaningLevel != DefaultParameters().CleaningLevel {
		t.Errorf("Expected invalid cleaning to fall back to default, got %f", params.CleaningLevel)
	}
	if params.ADSR.Attack != 0.3 {
		t.Errorf("Expected valid opcodes on the same line to be kept, got %f", params.ADSR.Attack)
	}
	if _, ok := patch.Voice.Opcodes["unknown_opcode"]; ok {
		t.Error("Expected unknown opcodes to be dropped")
	}
	// Opcodes outside any section and in unknown sections are ignored
	if params.Volume != DefaultParameters().Volume {
		t.Errorf("Expected stray volume to be ignored, got %f", params.Volume)
	}
}

func TestPatchReverbSettings(t *testing.T) {
	patch, err := ParsePatchFile(filepath.Join("testdata", "test.patch"))
	if err != nil {
		t.Fatalf("Failed to parse test.patch: %v", err)
	}

	want := ReverbSettings{Send: 0.25, RoomSize: 0.6, Damping: 0.4, Width: 0.9}
	if got := patch.ReverbSettings(); got != want {
		t.Errorf("Expected %+v, got %+v", want, got)
	}
}

func TestPatchScore(t *testing.T) {
	patch, err := ParsePatchFile(filepath.Join("testdata", "test.patch"))
	if err != nil {
		t.Fatalf("Failed to parse test.patch: %v", err)
	}

	score := patch.Score()
	if len(score) != 3 {
		t.Fatalf("Expected 3 score notes, got %d", len(score))
	}

	want := []ScoreNote{
		{Note: 60, Velocity: 1.0, Start: 0, Length: 0.5},
		{Note: 64, Velocity: 100.0 / 127.0, Start: 0.25, Length: 0.5},
		{Note: 67, Velocity: 100.0 / 127.0, Start: 0.5, Length: 1},
	}
	for i := range want {
		if score[i] != want[i] {
			t.Errorf("Note %d: expected %+v, got %+v", i, want[i], score[i])
		}
	}
}

func TestPatchScoreSkipsInvalidKeys(t *testing.T) {
	patch, err := ParsePatch(strings.NewReader(`
<note> start=1
<note> key=200
<note> key=48 start=-3 length=99999
`))
	if err != nil {
		t.Fatalf("Failed to parse patch: %v", err)
	}

	score := patch.Score()
	if len(score) != 1 {
		t.Fatalf("Expected 1 valid note, got %d", len(score))
	}
	if score[0].Start != 0 || score[0].Length != maxScoreSeconds {
		t.Errorf("Expected start and length clamped, got %+v", score[0])
	}
}
