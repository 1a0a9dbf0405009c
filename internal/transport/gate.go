// Package transport gates the MIDI transports (Bluetooth and USB) and hosts
// the backends that feed raw traffic into the router.
package transport

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Kind identifies a transport.
type Kind int

const (
	BLE Kind = iota
	USB
	numKinds
)

func (k Kind) String() string {
	switch k {
	case BLE:
		return "ble"
	case USB:
		return "usb"
	}
	return "unknown"
}

// ErrUnavailable is returned by a backend that cannot run on this build or
// host. Enabling such a transport leaves it disabled.
var ErrUnavailable = errors.New("transport unavailable")

// Backend owns the lifecycle of a physical transport.
type Backend interface {
	Enable() error
	Disable()
}

type state struct {
	enabled   atomic.Bool
	connected atomic.Bool
	backend   Backend
}

// Gate holds the enable and connection state of every transport. Reads are
// lock-free so the MIDI path can consult it on every message; changes are
// serialized.
type Gate struct {
	mu     sync.Mutex
	states [numKinds]state
	log    logrus.FieldLogger
}

// NewGate returns a gate with every transport disabled.
func NewGate(log logrus.FieldLogger) *Gate {
	return &Gate{log: log}
}

// Attach sets the backend started and stopped by SetEnabled.
func (g *Gate) Attach(k Kind, b Backend) {
	if !k.valid() {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.states[k].backend = b
}

func (k Kind) valid() bool { return k >= 0 && k < numKinds }

// SetEnabled switches a transport on or off and reports the resulting state.
// Repeating the current state is a no-op.
func (g *Gate) SetEnabled(k Kind, on bool) bool {
	if !k.valid() {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	st := &g.states[k]
	log := g.log.WithField("transport", k)
	if st.enabled.Load() == on {
		return on
	}

	if !on {
		st.enabled.Store(false)
		st.connected.Store(false)
		if st.backend != nil {
			st.backend.Disable()
		}
		log.Info("MIDI transport disabled")
		return false
	}

	st.connected.Store(false)
	if st.backend != nil {
		if err := st.backend.Enable(); err != nil {
			if errors.Is(err, ErrUnavailable) {
				log.Info("MIDI transport not available")
			} else {
				log.WithError(err).Warn("MIDI transport failed to start")
			}
			return false
		}
	}
	st.enabled.Store(true)
	log.Info("MIDI transport enabled")
	return true
}

// IsEnabled reports whether traffic from k should be forwarded.
func (g *Gate) IsEnabled(k Kind) bool {
	if !k.valid() {
		return false
	}
	return g.states[k].enabled.Load()
}

// SetConnected records a connection callback from the backend.
func (g *Gate) SetConnected(k Kind, connected bool) {
	if !k.valid() {
		return
	}
	g.states[k].connected.Store(connected)
	g.log.WithField("transport", k).WithField("connected", connected).Debug("MIDI transport connection changed")
}

// IsConnected is false whenever the transport is disabled.
func (g *Gate) IsConnected(k Kind) bool {
	if !k.valid() {
		return false
	}
	st := &g.states[k]
	return st.enabled.Load() && st.connected.Load()
}

// Close disables every transport.
func (g *Gate) Close() {
	for k := Kind(0); k < numKinds; k++ {
		g.SetEnabled(k, false)
	}
}
