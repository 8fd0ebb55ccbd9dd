package gonoisesynth

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/GeoffreyPlitt/debuggo"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"
)

var audioFileDebug = debuggo.Debug("noisesynth:audiofile")

// ErrUnsupportedFormat is returned for file extensions other than .wav and .flac
var ErrUnsupportedFormat = errors.New("unsupported audio format")

const (
	outputBitDepth = 16
	pcm16Scale     = 32767.0
	flacBlockSize  = 4096
)

// AudioFile is decoded audio in planar float64 form
type AudioFile struct {
	FilePath   string
	Channels   [][]float64 // one slice per channel
	SampleRate int
}

// Frames returns the number of samples per channel
func (a *AudioFile) Frames() int {
	if len(a.Channels) == 0 {
		return 0
	}
	return len(a.Channels[0])
}

// LoadAudioFile decodes a WAV or FLAC file
func LoadAudioFile(filePath string) (*AudioFile, error) {
	audioFileDebug("Loading audio file: %s", filePath)

	switch ext := strings.ToLower(filepath.Ext(filePath)); ext {
	case ".wav":
		return loadWAV(filePath)
	case ".flac":
		return loadFLAC(filePath)
	default:
		return nil, fmt.Errorf("%w: %s (supported: .wav, .flac)", ErrUnsupportedFormat, ext)
	}
}

func loadWAV(filePath string) (*AudioFile, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open WAV file %s: %w", filePath, err)
	}
	defer file.Close()

	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("invalid WAV file: %s", filePath)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to read audio data from %s: %w", filePath, err)
	}

	channels := int(buf.Format.NumChannels)
	if channels < 1 {
		return nil, fmt.Errorf("invalid channel count %d in %s", channels, filePath)
	}
	scale := fullScale(int(decoder.BitDepth))

	frames := len(buf.Data) / channels
	out := makePlanar(channels, frames)
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			out[ch][i] = float64(buf.Data[i*channels+ch]) / scale
		}
	}

	return &AudioFile{
		FilePath:   filePath,
		Channels:   out,
		SampleRate: int(buf.Format.SampleRate),
	}, nil
}

func loadFLAC(filePath string) (*AudioFile, error) {
	stream, err := flac.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open FLAC file %s: %w", filePath, err)
	}
	defer stream.Close()

	info := stream.Info
	if info == nil {
		return nil, fmt.Errorf("no stream info available for FLAC file: %s", filePath)
	}

	channels := int(info.NChannels)
	scale := fullScale(int(info.BitsPerSample))
	out := makePlanar(channels, 0)

	for {
		f, err := stream.ParseNext()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to read FLAC frame from %s: %w", filePath, err)
		}

		for ch := 0; ch < channels; ch++ {
			for _, sample := range f.Subframes[ch].Samples {
				out[ch] = append(out[ch], float64(sample)/scale)
			}
		}
	}

	return &AudioFile{
		FilePath:   filePath,
		Channels:   out,
		SampleRate: int(info.SampleRate),
	}, nil
}

func fullScale(bitDepth int) float64 {
	switch bitDepth {
	case 8:
		return 128.0
	case 24:
		return 8388608.0
	case 32:
		return 2147483648.0
	default:
		return 32768.0
	}
}

func makePlanar(channels, frames int) [][]float64 {
	out := make([][]float64, channels)
	for ch := range out {
		out[ch] = make([]float64, frames)
	}
	return out
}

func toPCM16(s float32) int {
	v := math.Max(-1.0, math.Min(1.0, float64(s)))
	return int(math.Round(v * pcm16Scale))
}

// WriteAudioFile writes planar audio to path, picking WAV or FLAC from the
// file extension
func WriteAudioFile(path string, data [][]float32, sampleRate int) error {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".wav" && ext != ".flac" {
		return fmt.Errorf("%w: %s (supported: .wav, .flac)", ErrUnsupportedFormat, ext)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	if ext == ".wav" {
		err = WriteWAV(file, data, sampleRate)
	} else {
		err = WriteFLAC(file, data, sampleRate)
	}
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	audioFileDebug("Wrote %s (%d channels, %d Hz)", path, len(data), sampleRate)
	return nil
}

// WriteWAV encodes planar audio as 16-bit PCM WAV
func WriteWAV(w io.WriteSeeker, data [][]float32, sampleRate int) error {
	channels := len(data)
	if channels == 0 {
		return errors.New("no channels to write")
	}
	frames := len(data[0])

	interleaved := make([]int, frames*channels)
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			interleaved[i*channels+ch] = toPCM16(data[ch][i])
		}
	}

	encoder := wav.NewEncoder(w, sampleRate, outputBitDepth, channels, 1)
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: channels,
			SampleRate:  sampleRate,
		},
		Data:           interleaved,
		SourceBitDepth: outputBitDepth,
	}
	if err := encoder.Write(buf); err != nil {
		return fmt.Errorf("failed to encode WAV: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("failed to finish WAV: %w", err)
	}
	return nil
}

var flacChannelLayouts = [...]frame.Channels{
	1: frame.ChannelsMono,
	2: frame.ChannelsLR,
	3: frame.ChannelsLRC,
	4: frame.ChannelsLRLsRs,
	5: frame.ChannelsLRCLsRs,
	6: frame.ChannelsLRCLfeLsRs,
	7: frame.ChannelsLRCLfeCsSlSr,
	8: frame.ChannelsLRCLfeLsRsSlSr,
}

// WriteFLAC encodes planar audio as 16-bit FLAC with verbatim subframes
func WriteFLAC(w io.Writer, data [][]float32, sampleRate int) error {
	channels := len(data)
	if channels == 0 || channels >= len(flacChannelLayouts) {
		return fmt.Errorf("cannot write %d channels as FLAC", channels)
	}
	frames := len(data[0])

	info := &meta.StreamInfo{
		BlockSizeMin:  flacBlockSize,
		BlockSizeMax:  flacBlockSize,
		SampleRate:    uint32(sampleRate),
		NChannels:     uint8(channels),
		BitsPerSample: outputBitDepth,
		NSamples:      uint64(frames),
	}
	enc, err := flac.NewEncoder(w, info)
	if err != nil {
		return fmt.Errorf("failed to create FLAC encoder: %w", err)
	}

	for start, num := 0, uint64(0); start < frames; start, num = start+flacBlockSize, num+1 {
		n := flacBlockSize
		if start+n > frames {
			n = frames - start
		}

		subframes := make([]*frame.Subframe, channels)
		for ch := range subframes {
			samples := make([]int32, n)
			for i := range samples {
				samples[i] = int32(toPCM16(data[ch][start+i]))
			}
			subframes[ch] = &frame.Subframe{
				SubHeader: frame.SubHeader{Pred: frame.PredVerbatim},
				Samples:   samples,
				NSamples:  n,
			}
		}

		f := &frame.Frame{
			Header: frame.Header{
				HasFixedBlockSize: true,
				BlockSize:         uint16(n),
				SampleRate:        uint32(sampleRate),
				Channels:          flacChannelLayouts[channels],
				BitsPerSample:     outputBitDepth,
				Num:               num,
			},
			Subframes: subframes,
		}
		if err := enc.WriteFrame(f); err != nil {
			enc.Close()
			return fmt.Errorf("failed to encode FLAC frame %d: %w", num, err)
		}
	}

	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to finish FLAC: %w", err)
	}
	return nil
}

// ChannelStats summarizes the level of one channel
type ChannelStats struct {
	Peak float64
	RMS  float64
}

// Analyze returns the peak and RMS level of every channel
func Analyze(channels [][]float64) []ChannelStats {
	stats := make([]ChannelStats, len(channels))
	for ch, samples := range channels {
		if len(samples) == 0 {
			continue
		}
		var sum, peak float64
		for _, s := range samples {
			sum += s * s
			peak = math.Max(peak, math.Abs(s))
		}
		stats[ch] = ChannelStats{
			Peak: peak,
			RMS:  math.Sqrt(sum / float64(len(samples))),
		}
	}
	return stats
}

// AnalyzeFloat32 is Analyze for planar float32 audio as produced by Renderer
func AnalyzeFloat32(channels [][]float32) []ChannelStats {
	converted := make([][]float64, len(channels))
	for ch, samples := range channels {
		converted[ch] = make([]float64, len(samples))
		for i, s := range samples {
			converted[ch][i] = float64(s)
		}
	}
	return Analyze(converted)
}
