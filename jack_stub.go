//go:build !jack
// +build !jack

package gonoisesynth

import (
	"errors"
	"fmt"
)

// ErrJackDisabled is returned by every JackClient call in builds without
// the jack tag
var ErrJackDisabled = errors.New("JACK support not enabled")

// JackClient is a placeholder so offline builds need no JACK headers
type JackClient struct{}

// NewJackClient always fails; build with '-tags jack' and the JACK
// development headers installed for realtime output
func NewJackClient(engine *Engine, reverb *Reverb, clientName string) (*JackClient, error) {
	return nil, fmt.Errorf("cannot open JACK client %q: %w", clientName, ErrJackDisabled)
}

func (jc *JackClient) Start() error { return ErrJackDisabled }

func (jc *JackClient) Stop() error { return ErrJackDisabled }

func (jc *JackClient) Close() error { return ErrJackDisabled }
