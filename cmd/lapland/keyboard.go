package main

import (
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/term"

	"gonoisesynth"
)

// Two piano-style rows: the home row plays white keys, the row above
// plays black keys
var keyOffsets = map[byte]int{
	'a': 0, 'w': 1, 's': 2, 'e': 3, 'd': 4, 'f': 5, 't': 6,
	'g': 7, 'y': 8, 'h': 9, 'u': 10, 'j': 11, 'k': 12, 'o': 13, 'l': 14,
}

const (
	keyCtrlC = 0x03
	keyEsc   = 0x1b
)

// Keyboard turns raw terminal key presses into notes on a NoteQueue.
// Terminals report presses but not releases, so each note is held for a
// fixed time after its last key repeat.
type Keyboard struct {
	queue  *gonoisesynth.NoteQueue
	hold   time.Duration
	octave int

	fd       int
	oldState *term.State

	keys    chan byte
	quit    chan struct{}
	stopCh  chan struct{}
	done    chan struct{}
	stopped sync.Once
}

func NewKeyboard(queue *gonoisesynth.NoteQueue, baseNote int, hold time.Duration) *Keyboard {
	return &Keyboard{
		queue:  queue,
		hold:   hold,
		octave: baseNote,
		keys:   make(chan byte, 16),
		quit:   make(chan struct{}),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start puts stdin in raw mode and begins reading keys
func (k *Keyboard) Start() error {
	k.fd = int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(k.fd)
	if err != nil {
		return fmt.Errorf("failed to set raw mode: %w", err)
	}
	k.oldState = oldState

	// Blocked in Read until the next key; it exits with the process
	go func() {
		buf := make([]byte, 1)
		for {
			n, err := os.Stdin.Read(buf)
			if err != nil {
				return
			}
			if n == 1 {
				select {
				case k.keys <- buf[0]:
				case <-k.stopCh:
					return
				}
			}
		}
	}()

	go k.run()
	return nil
}

// Quit is closed when the user asks to leave
func (k *Keyboard) Quit() <-chan struct{} {
	return k.quit
}

// Stop releases held notes and restores the terminal
func (k *Keyboard) Stop() {
	k.stopped.Do(func() {
		close(k.stopCh)
	})
	<-k.done
	if k.oldState != nil {
		_ = term.Restore(k.fd, k.oldState)
		k.oldState = nil
	}
}

// run is the only producer on the queue
func (k *Keyboard) run() {
	defer close(k.done)

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	held := make(map[int]time.Time)
	quitOnce := sync.Once{}

	for {
		select {
		case <-k.stopCh:
			k.push(gonoisesynth.NoteEvent{Type: gonoisesynth.EventAllNotesOff, TailOff: true})
			return

		case b := <-k.keys:
			switch b {
			case 'q', keyCtrlC, keyEsc:
				quitOnce.Do(func() { close(k.quit) })
			case 'z':
				k.octave = max(k.octave-12, 0)
				fmt.Printf("octave base %d\r\n", k.octave)
			case 'x':
				k.octave = min(k.octave+12, 108)
				fmt.Printf("octave base %d\r\n", k.octave)
			case ' ':
				k.push(gonoisesynth.NoteEvent{Type: gonoisesynth.EventAllNotesOff, TailOff: true})
				clear(held)
			default:
				note, ok := keyToNote(b, k.octave)
				if !ok {
					continue
				}
				if _, playing := held[note]; !playing {
					k.push(gonoisesynth.NoteOn(note, 1.0, 0))
				}
				held[note] = time.Now().Add(k.hold)
			}

		case now := <-ticker.C:
			for note, until := range held {
				if now.After(until) {
					k.push(gonoisesynth.NoteOff(note, 0))
					delete(held, note)
				}
			}
		}
	}
}

func (k *Keyboard) push(ev gonoisesynth.NoteEvent) {
	if !k.queue.Push(ev) {
		fmt.Printf("note queue full, dropped %s\r\n", ev)
	}
}

func keyToNote(b byte, base int) (int, bool) {
	offset, ok := keyOffsets[b]
	if !ok {
		return 0, false
	}
	note := base + offset
	if note > 127 {
		return 0, false
	}
	return note, true
}
