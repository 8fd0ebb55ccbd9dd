//go:build jack
// +build jack

package gonoisesynth

import (
	"fmt"

	"github.com/GeoffreyPlitt/debuggo"
	"github.com/xthexder/go-jack"
)

var jackDebug = debuggo.Debug("noisesynth:jack")

const maxJackEventsPerBlock = 256

// JackClient runs an Engine inside a JACK process callback
type JackClient struct {
	client        *jack.Client
	engine        *Engine
	reverb        *Reverb
	audioOutPorts []*jack.Port
	midiInPort    *jack.Port
	sampleRate    uint32
	bufferSize    uint32

	// Preallocated per-callback state
	outs    [][]jack.AudioSample
	scratch [][]float32
	view    [][]float32
	batch   *EventBatch
}

// NewJackClient opens a JACK client with one audio output per engine channel
// and a MIDI input. The JACK sample rate must match the engine's.
func NewJackClient(engine *Engine, reverb *Reverb, clientName string) (*JackClient, error) {
	jackDebug("Creating JACK client: %s", clientName)

	client, status := jack.ClientOpen(clientName, jack.NoStartServer)
	if status != 0 || client == nil {
		return nil, fmt.Errorf("failed to open JACK client (status %d)", status)
	}

	cfg := engine.Config()
	jc := &JackClient{
		client:     client,
		engine:     engine,
		reverb:     reverb,
		sampleRate: client.GetSampleRate(),
		bufferSize: client.GetBufferSize(),
		view:       make([][]float32, cfg.Channels),
		outs:       make([][]jack.AudioSample, 0, cfg.Channels),
		batch:      NewEventBatch(maxJackEventsPerBlock),
	}

	if float64(jc.sampleRate) != cfg.SampleRate {
		client.Close()
		return nil, fmt.Errorf("%w: JACK runs at %d Hz, engine at %.0f Hz", ErrInvalidConfig, jc.sampleRate, cfg.SampleRate)
	}

	jc.scratch = make([][]float32, cfg.Channels)
	for ch := range jc.scratch {
		jc.scratch[ch] = make([]float32, cfg.BlockSize)
	}

	for ch := 0; ch < cfg.Channels; ch++ {
		port := client.PortRegister(fmt.Sprintf("audio_out_%d", ch+1), jack.DEFAULT_AUDIO_TYPE, jack.PortIsOutput, 0)
		if port == nil {
			client.Close()
			return nil, fmt.Errorf("failed to register audio output port %d", ch+1)
		}
		jc.audioOutPorts = append(jc.audioOutPorts, port)
	}

	jc.midiInPort = client.PortRegister("midi_in", jack.DEFAULT_MIDI_TYPE, jack.PortIsInput, 0)
	if jc.midiInPort == nil {
		client.Close()
		return nil, fmt.Errorf("failed to register MIDI input port")
	}

	if code := client.SetProcessCallback(jc.processCallback); code != 0 {
		client.Close()
		return nil, fmt.Errorf("failed to set JACK process callback (code %d)", code)
	}

	jackDebug("JACK client created successfully (sample rate: %d Hz, buffer size: %d)",
		jc.sampleRate, jc.bufferSize)
	return jc, nil
}

// Start activates the JACK client and begins audio processing
func (jc *JackClient) Start() error {
	jackDebug("Starting JACK client")
	if code := jc.client.Activate(); code != 0 {
		return fmt.Errorf("failed to activate JACK client (code %d)", code)
	}
	return nil
}

// Stop deactivates the JACK client
func (jc *JackClient) Stop() error {
	jackDebug("Stopping JACK client")
	if code := jc.client.Deactivate(); code != 0 {
		return fmt.Errorf("failed to deactivate JACK client (code %d)", code)
	}
	return nil
}

// Close closes the JACK client connection
func (jc *JackClient) Close() error {
	jackDebug("Closing JACK client")
	if code := jc.client.Close(); code != 0 {
		return fmt.Errorf("failed to close JACK client (code %d)", code)
	}
	return nil
}

// processCallback is called by JACK on its realtime thread for each period
func (jc *JackClient) processCallback(nframes uint32) int {
	outs := jc.outs[:0]
	for _, port := range jc.audioOutPorts {
		outs = append(outs, port.GetBuffer(nframes))
	}

	jc.batch.Reset()
	for _, ev := range jc.midiInPort.GetMidiEvents(nframes) {
		if noteEvent, ok := ParseMIDI(ev.Buffer, int(ev.Time)); ok {
			jc.batch.Add(noteEvent)
		}
	}

	// Periods longer than the engine block are split; events go to the
	// chunk they fall into.
	blockSize := len(jc.scratch[0])
	events := jc.batch.Events()
	for start := 0; start < int(nframes); start += blockSize {
		n := blockSize
		if start+n > int(nframes) {
			n = int(nframes) - start
		}

		split := 0
		for split < len(events) && events[split].SamplePosition < start+n {
			events[split].SamplePosition -= start
			split++
		}

		for ch := range jc.scratch {
			jc.view[ch] = jc.scratch[ch][:n]
			clear(jc.view[ch])
		}
		jc.engine.Process(jc.view, events[:split])
		events = events[split:]

		if jc.reverb != nil {
			jc.reverb.Apply(jc.view, n)
		}
		for ch, out := range outs {
			for i, s := range jc.view[ch] {
				out[start+i] = jack.AudioSample(s)
			}
		}
	}
	jc.batch.ApplyLate(jc.engine)

	return 0
}

// DroppedMIDIEvents returns how many MIDI events overflowed a period
func (jc *JackClient) DroppedMIDIEvents() uint64 {
	return jc.batch.Dropped()
}
