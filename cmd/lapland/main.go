// Command lapland renders, analyzes and plays the polyphonic noise synth.
package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/GeoffreyPlitt/debuggo"

	"gonoisesynth"
)

var debug = debuggo.Debug("noisesynth:cli")

const usage = `usage: lapland <command> [flags]

commands:
  render   render a patch score or a chord to .wav or .flac
  analyze  print peak and RMS levels of a .wav or .flac file
  play     play the synth from the computer keyboard
  jack     run as a JACK client until interrupted

Run 'lapland <command> -h' for the flags of a command.
Set DEBUG=noisesynth:* for debug output.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "render":
		err = runRender(args)
	case "analyze":
		err = runAnalyze(args)
	case "play":
		err = runPlay(args)
	case "jack":
		err = runJack(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// synthFlags are the engine and voice settings shared by render and play
type synthFlags struct {
	patch      *string
	voices     *int
	sampleRate *int
	blockSize  *int
	keyFreq    *float64
	cleaning   *float64
	attack     *float64
	decay      *float64
	sustain    *float64
	release    *float64
	volume     *float64
	reverbSend *float64
}

func addSynthFlags(fs *flag.FlagSet) *synthFlags {
	defCfg := gonoisesynth.DefaultConfig()
	defParams := gonoisesynth.DefaultParameters()
	return &synthFlags{
		patch:      fs.String("patch", "", "Patch file; its settings replace the flags below"),
		voices:     fs.Int("voices", defCfg.Voices, "Number of voices"),
		sampleRate: fs.Int("sample-rate", int(defCfg.SampleRate), "Sample rate in Hz"),
		blockSize:  fs.Int("block-size", defCfg.BlockSize, "Processing block size in samples"),
		keyFreq:    fs.Float64("key-freq", defParams.KeyFreq, "Idle filter tuning in Hz"),
		cleaning:   fs.Float64("cleaning", defParams.CleaningLevel, "Noise cleaning level (filter Q)"),
		attack:     fs.Float64("attack", defParams.ADSR.Attack, "Attack time in seconds"),
		decay:      fs.Float64("decay", defParams.ADSR.Decay, "Decay time in seconds"),
		sustain:    fs.Float64("sustain", defParams.ADSR.Sustain, "Sustain level (0-1)"),
		release:    fs.Float64("release", defParams.ADSR.Release, "Release time in seconds"),
		volume:     fs.Float64("volume", defParams.Volume, "Output gain (0-1)"),
		reverbSend: fs.Float64("reverb", 0, "Reverb send (0-1, 0 = off)"),
	}
}

// build returns a synth from the patch file if one was given, otherwise
// from the flags
func (f *synthFlags) build() (*gonoisesynth.Synth, error) {
	if *f.patch != "" {
		return gonoisesynth.NewSynth(*f.patch, "")
	}

	patch, err := gonoisesynth.ParsePatch(strings.NewReader(f.patchText()))
	if err != nil {
		return nil, err
	}
	return gonoisesynth.NewSynthFromPatch(patch)
}

// patchText writes the flags as patch text so both paths share one loader
func (f *synthFlags) patchText() string {
	var b strings.Builder
	fmt.Fprintf(&b, "<engine> voices=%d sample_rate=%d block_size=%d\n", *f.voices, *f.sampleRate, *f.blockSize)
	fmt.Fprintf(&b, "<voice> key_freq=%g cleaning=%g volume=%g\n", *f.keyFreq, *f.cleaning, *f.volume)
	fmt.Fprintf(&b, "ampeg_attack=%g ampeg_decay=%g ampeg_sustain=%g ampeg_release=%g\n",
		*f.attack, *f.decay, *f.sustain, *f.release)
	fmt.Fprintf(&b, "<reverb> send=%g\n", *f.reverbSend)
	return b.String()
}

func runRender(args []string) error {
	fs := flag.NewFlagSet("render", flag.ExitOnError)
	sf := addSynthFlags(fs)
	output := fs.String("output", "output.wav", "Output file (.wav or .flac)")
	notes := fs.String("notes", "60,64,67", "Comma separated MIDI notes, used when the patch has no score")
	length := fs.Float64("length", 1.0, "Note length in seconds, used with -notes")
	tail := fs.Float64("tail", -1, "Seconds rendered after the last note-off (default: the release time)")
	fs.Parse(args)

	synth, err := sf.build()
	if err != nil {
		return err
	}

	score := synth.Score()
	if len(score) == 0 {
		score, err = chordScore(*notes, *length)
		if err != nil {
			return err
		}
	}

	if *tail < 0 {
		*tail = synth.Params().Get(gonoisesynth.ParamRelease)
	}

	cfg := synth.Engine().Config()
	fmt.Printf("Rendering %d notes, %.2f seconds at %.0f Hz (%d voices)...\n",
		len(score), score.Duration()+*tail, cfg.SampleRate, cfg.Voices)

	start := time.Now()
	audio := gonoisesynth.NewRenderer(synth.Engine(), synth.Reverb()).Render(score, *tail)
	debug("Rendered in %v", time.Since(start))

	if err := gonoisesynth.WriteAudioFile(*output, audio, int(cfg.SampleRate)); err != nil {
		return err
	}

	fmt.Printf("Wrote %s\n", *output)
	if dropped := synth.Engine().DroppedNotes(); dropped > 0 {
		fmt.Printf("Warning: %d notes dropped, polyphony exhausted\n", dropped)
	}
	printStats(gonoisesynth.AnalyzeFloat32(audio))
	return nil
}

func chordScore(list string, length float64) (gonoisesynth.Score, error) {
	var score gonoisesynth.Score
	for _, field := range strings.Split(list, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		note, err := strconv.Atoi(field)
		if err != nil || note < 0 || note > 127 {
			return nil, fmt.Errorf("invalid note %q", field)
		}
		score = append(score, gonoisesynth.ScoreNote{Note: note, Velocity: 1.0, Length: length})
	}
	return score, nil
}

func runAnalyze(args []string) error {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() == 0 {
		return fmt.Errorf("analyze needs at least one file")
	}

	for _, path := range fs.Args() {
		file, err := gonoisesynth.LoadAudioFile(path)
		if err != nil {
			return err
		}
		fmt.Printf("%s: %d channels, %d frames, %d Hz\n", path, len(file.Channels), file.Frames(), file.SampleRate)
		printStats(gonoisesynth.Analyze(file.Channels))
		if len(file.Channels) > 0 {
			peak, err := gonoisesynth.SpectralPeak(file.Channels[0], file.SampleRate)
			if err != nil {
				return fmt.Errorf("failed to analyze %s: %w", path, err)
			}
			fmt.Printf("  spectral peak: %.1f Hz\n", peak)
		}
	}
	return nil
}

func printStats(stats []gonoisesynth.ChannelStats) {
	for ch, s := range stats {
		fmt.Printf("  ch%d: peak %.4f (%.1f dBFS), RMS %.4f (%.1f dBFS)\n",
			ch+1, s.Peak, dbfs(s.Peak), s.RMS, dbfs(s.RMS))
	}
}

func dbfs(v float64) float64 {
	if v <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(v)
}

func runPlay(args []string) error {
	fs := flag.NewFlagSet("play", flag.ExitOnError)
	sf := addSynthFlags(fs)
	base := fs.Int("base", 60, "MIDI note of the 'a' key")
	hold := fs.Duration("hold", 400*time.Millisecond, "How long a key press holds its note")
	latency := fs.Duration("latency", 40*time.Millisecond, "Audio device buffer length")
	fs.Parse(args)

	synth, err := sf.build()
	if err != nil {
		return err
	}
	cfg := synth.Engine().Config()

	queue := gonoisesynth.NewNoteQueue(256)
	player, err := NewOtoPlayer(int(cfg.SampleRate), cfg.Channels, *latency)
	if err != nil {
		return fmt.Errorf("failed to open audio device: %w", err)
	}
	player.SetupPlayer(gonoisesynth.NewStream(synth.Engine(), synth.Reverb(), queue))
	player.Start()
	defer player.Close()

	kb := NewKeyboard(queue, *base, *hold)
	if err := kb.Start(); err != nil {
		return err
	}
	defer kb.Stop()

	fmt.Print("Keys a w s e d f t g y h u j k o l play notes, z/x change octave,\r\n")
	fmt.Print("space releases everything, q quits.\r\n")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	select {
	case <-kb.Quit():
	case <-sig:
	}
	return nil
}

func runJack(args []string) error {
	fs := flag.NewFlagSet("jack", flag.ExitOnError)
	patch := fs.String("patch", "", "Patch file (required)")
	name := fs.String("name", "lapland", "JACK client name")
	fs.Parse(args)

	if *patch == "" {
		return fmt.Errorf("jack needs -patch")
	}

	synth, err := gonoisesynth.NewSynth(*patch, *name)
	if err != nil {
		return err
	}
	if synth.JackClient() == nil {
		return fmt.Errorf("could not open JACK client %q (is JACK running and was the binary built with -tags jack?)", *name)
	}
	defer synth.StopAndClose()

	if err := synth.StartJack(); err != nil {
		return err
	}
	fmt.Printf("JACK client %q running, Ctrl-C to stop\n", *name)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	fmt.Println("Stopping")
	return nil
}
