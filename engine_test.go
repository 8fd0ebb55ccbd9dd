package gonoisesynth

import (
	"errors"
	"testing"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		valid  bool
	}{
		{"default", func(c *Config) {}, true},
		{"single voice mono", func(c *Config) { c.Voices = 1; c.Channels = 1 }, true},
		{"no voices", func(c *Config) { c.Voices = 0 }, false},
		{"negative sample rate", func(c *Config) { c.SampleRate = -44100 }, false},
		{"zero block size", func(c *Config) { c.BlockSize = 0 }, false},
		{"too many channels", func(c *Config) { c.Channels = maxChannels + 1 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.valid && err != nil {
				t.Errorf("Expected valid config, got %v", err)
			}
			if !tt.valid && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Expected ErrInvalidConfig, got %v", err)
			}

			_, err = NewEngine(cfg)
			if tt.valid != (err == nil) {
				t.Errorf("NewEngine error mismatch: valid=%v err=%v", tt.valid, err)
			}
		})
	}
}

func TestEngineTwoNotes(t *testing.T) {
	engine := createTestEngine(t, 2)

	out := newBlock(2, 512)
	engine.Process(out, []NoteEvent{NoteOn(60, 1.0, 0), NoteOn(64, 1.0, 0)})

	if rms(out[0]) == 0 || rms(out[1]) == 0 {
		t.Error("Expected two sounding notes to produce output")
	}
	if engine.BusyVoices() != 2 {
		t.Errorf("Expected 2 busy voices, got %d", engine.BusyVoices())
	}
}

func TestEngineZeroVolumeIsSilent(t *testing.T) {
	engine := createTestEngine(t, 2)
	engine.Params().Set(ParamVolume, 0)

	out := newBlock(2, 512)
	engine.Process(out, []NoteEvent{NoteOn(60, 1.0, 0), NoteOn(64, 1.0, 0)})
	for i := 0; i < 10; i++ {
		engine.Process(out, nil)
	}

	if !allZero(out[0]) || !allZero(out[1]) {
		t.Error("Expected volume 0 to produce exact silence")
	}
}

func TestEngineSampleAccurateEvents(t *testing.T) {
	engine := createTestEngine(t, 4)

	out := newBlock(2, 512)
	engine.Process(out, []NoteEvent{NoteOn(60, 1.0, 100)})

	if !allZero(out[0][:100]) {
		t.Error("Expected silence before the note-on position")
	}
	if allZero(out[0][100:]) {
		t.Error("Expected output from the note-on position on")
	}
}

func TestEngineSortsEvents(t *testing.T) {
	engine := createTestEngine(t, 4)

	out := newBlock(2, 512)
	// Out of order: the note-off must still land after the note-on
	engine.Process(out, []NoteEvent{NoteOff(60, 400), NoteOn(60, 1.0, 50)})

	v := engine.Pool().Voice(0)
	if v.EnvelopeState() != EnvelopeRelease {
		t.Errorf("Expected voice 0 to be releasing, got %s", v.EnvelopeState())
	}
	if !allZero(out[0][:50]) {
		t.Error("Expected silence before the note-on")
	}
}

func TestEngineEventPositionsClamped(t *testing.T) {
	engine := createTestEngine(t, 2)

	out := newBlock(2, 256)
	engine.Process(out, []NoteEvent{NoteOn(60, 1.0, -20), NoteOn(62, 1.0, 10000)})

	if engine.BusyVoices() != 2 {
		t.Errorf("Expected both clamped notes to start, got %d busy", engine.BusyVoices())
	}
	if allZero(out[0]) {
		t.Error("Expected the note clamped to the block start to sound")
	}
}

func TestEngineDroppedNotes(t *testing.T) {
	engine := createTestEngine(t, 2)

	out := newBlock(2, 512)
	engine.Process(out, []NoteEvent{NoteOn(60, 1.0, 0), NoteOn(64, 1.0, 0), NoteOn(67, 1.0, 0)})

	if engine.BusyVoices() != 2 {
		t.Errorf("Expected 2 busy voices, got %d", engine.BusyVoices())
	}
	if engine.DroppedNotes() != 1 {
		t.Errorf("Expected 1 dropped note, got %d", engine.DroppedNotes())
	}
}

func TestEngineParameterBroadcast(t *testing.T) {
	engine := createTestEngine(t, 3)
	engine.Params().Set(ParamCleaningLevel, 500)
	engine.Params().Set(ParamKeyFreq, 880)

	engine.Process(newBlock(2, 512), nil)

	for i := 0; i < engine.Pool().Size(); i++ {
		v := engine.Pool().Voice(i)
		if v.CleaningLevel() != 500 {
			t.Errorf("Voice %d: expected cleaning 500, got %f", i, v.CleaningLevel())
		}
		if v.KeyFreq() != 880 {
			t.Errorf("Voice %d: expected idle tuning 880 Hz, got %f", i, v.KeyFreq())
		}
	}
}

func TestEngineNoteOnPretunesIdleVoices(t *testing.T) {
	engine := createTestEngine(t, 3)

	engine.Process(newBlock(2, 512), []NoteEvent{NoteOn(69, 1.0, 0)})

	for i := 1; i < 3; i++ {
		if freq := engine.Pool().Voice(i).KeyFreq(); freq != 440 {
			t.Errorf("Expected idle voice %d tuned to 440 Hz, got %f", i, freq)
		}
	}
}

func TestEngineBlockLongerThanPrepared(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Voices = 2
	cfg.BlockSize = 64
	engine, err := NewEngine(cfg)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	out := newBlock(2, 300)
	engine.Process(out, []NoteEvent{NoteOn(60, 1.0, 0)})

	if allZero(out[0][200:]) {
		t.Error("Expected the whole oversized block to be rendered")
	}
}

func TestEngineAllNotesOff(t *testing.T) {
	engine := createTestEngine(t, 4)
	engine.Process(newBlock(2, 512), []NoteEvent{NoteOn(60, 1.0, 0), NoteOn(64, 1.0, 0)})

	engine.Process(newBlock(2, 512), []NoteEvent{{Type: EventAllNotesOff}})
	if engine.BusyVoices() != 0 {
		t.Errorf("Expected all voices stopped, got %d busy", engine.BusyVoices())
	}
}

func TestEngineReleaseEndsInSilence(t *testing.T) {
	engine := createTestEngine(t, 2)
	engine.Params().Set(ParamRelease, 0.1)

	engine.Process(newBlock(2, 512), []NoteEvent{NoteOn(60, 1.0, 0)})
	engine.Process(newBlock(2, 512), []NoteEvent{NoteOff(60, 0)})

	// 0.1 s release is under 9 blocks
	for i := 0; i < 20; i++ {
		engine.Process(newBlock(2, 512), nil)
	}
	if engine.BusyVoices() != 0 {
		t.Fatalf("Expected the voice to finish its release, %d busy", engine.BusyVoices())
	}

	out := newBlock(2, 512)
	engine.Process(out, nil)
	if !allZero(out[0]) {
		t.Error("Expected silence once every voice is idle")
	}
}

func TestEngineDeterministic(t *testing.T) {
	a := createTestEngine(t, 4)
	b := createTestEngine(t, 4)

	events := func() []NoteEvent {
		return []NoteEvent{NoteOn(60, 1.0, 0), NoteOn(67, 1.0, 128)}
	}
	outA := newBlock(2, 512)
	outB := newBlock(2, 512)
	a.Process(outA, events())
	b.Process(outB, events())

	for i := range outA[0] {
		if outA[0][i] != outB[0][i] {
			t.Fatalf("Engines with the same seed diverged at sample %d", i)
		}
	}
}

func TestEngineProcessDoesNotAllocate(t *testing.T) {
	engine := createTestEngine(t, 8)
	out := newBlock(2, 512)
	events := make([]NoteEvent, 0, 4)

	allocs := testing.AllocsPerRun(50, func() {
		events = append(events[:0], NoteOn(60, 1.0, 10), NoteOff(60, 300))
		engine.Process(out, events)
	})
	if allocs != 0 {
		t.Errorf("Expected Process not to allocate, got %.1f allocations per block", allocs)
	}
}
