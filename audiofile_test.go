package gonoisesynth

import (
	"errors"
	"math"
	"path/filepath"
	"testing"
)

// createTestSignal returns a stereo 441 Hz sine, opposite phase per channel
func createTestSignal(frames int, sampleRate float64) [][]float32 {
	data := newBlock(2, frames)
	for i := 0; i < frames; i++ {
		s := float32(0.5 * math.Sin(2*math.Pi*441*float64(i)/sampleRate))
		data[0][i] = s
		data[1][i] = -s
	}
	return data
}

func TestAudioFileRoundTrip(t *testing.T) {
	for _, ext := range []string{".wav", ".flac"} {
		t.Run(ext, func(t *testing.T) {
			// More than one FLAC block
			const frames = 10000
			data := createTestSignal(frames, 44100)
			path := filepath.Join(t.TempDir(), "roundtrip"+ext)

			if err := WriteAudioFile(path, data, 44100); err != nil {
				t.Fatalf("Failed to write %s: %v", path, err)
			}

			file, err := LoadAudioFile(path)
			if err != nil {
				t.Fatalf("Failed to load %s: %v", path, err)
			}

			if file.SampleRate != 44100 {
				t.Errorf("Expected sample rate 44100, got %d", file.SampleRate)
			}
			if len(file.Channels) != 2 {
				t.Fatalf("Expected 2 channels, got %d", len(file.Channels))
			}
			if file.Frames() != frames {
				t.Fatalf("Expected %d frames, got %d", frames, file.Frames())
			}

			// 16-bit quantization
			const tolerance = 2.0 / 32768.0
			for ch := range data {
				for i := range data[ch] {
					if diff := math.Abs(file.Channels[ch][i] - float64(data[ch][i])); diff > tolerance {
						t.Fatalf("ch%d[%d]: expected %f, got %f", ch, i, data[ch][i], file.Channels[ch][i])
					}
				}
			}
		})
	}
}

func TestWriteClipsOutOfRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.wav")
	data := [][]float32{{2, -2, 0.5}}
	if err := WriteAudioFile(path, data, 8000); err != nil {
		t.Fatalf("Failed to write: %v", err)
	}

	file, err := LoadAudioFile(path)
	if err != nil {
		t.Fatalf("Failed to load: %v", err)
	}
	if file.Channels[0][0] > 1 || file.Channels[0][1] < -1 {
		t.Errorf("Expected clipped samples, got %v", file.Channels[0])
	}
}

func TestUnsupportedAudioFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.mp3")
	if err := WriteAudioFile(path, [][]float32{{0}}, 44100); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Expected ErrUnsupportedFormat on write, got %v", err)
	}
	if _, err := LoadAudioFile(path); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Expected ErrUnsupportedFormat on load, got %v", err)
	}
}

func TestLoadMissingAudioFile(t *testing.T) {
	if _, err := LoadAudioFile(filepath.Join(t.TempDir(), "missing.wav")); err == nil {
		t.Error("Expected error for a missing file")
	}
}

func TestAnalyze(t *testing.T) {
	// 100 whole cycles
	data := createTestSignal(10000, 44100)
	stats := AnalyzeFloat32(data)

	if len(stats) != 2 {
		t.Fatalf("Expected stats for 2 channels, got %d", len(stats))
	}
	for ch, s := range stats {
		if math.Abs(s.Peak-0.5) > 0.001 {
			t.Errorf("ch%d: expected peak 0.5, got %f", ch, s.Peak)
		}
		if math.Abs(s.RMS-0.5/math.Sqrt2) > 0.001 {
			t.Errorf("ch%d: expected RMS %f, got %f", ch, 0.5/math.Sqrt2, s.RMS)
		}
	}

	empty := Analyze([][]float64{{}})
	if empty[0] != (ChannelStats{}) {
		t.Errorf("Expected zero stats for an empty channel, got %+v", empty[0])
	}
}
