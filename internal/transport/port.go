package transport

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register rtmidi driver
)

const portRescanInterval = time.Second

// ExcludedPorts are virtual ports that are never picked up automatically.
var ExcludedPorts = []string{"Midi Through", "Through Port", "Dummy"}

// ListenFunc starts delivering raw messages from the named input port.
type ListenFunc func(name string, fn func([]byte)) (stop func(), err error)

// PortBackend listens on an OS MIDI input port. Paired Bluetooth MIDI
// peripherals show up as ordinary ports, so while enabled the backend waits
// for a port whose name matches, connects, and reconnects after it vanishes.
type PortBackend struct {
	match     string
	onMessage func([]byte)
	onConnect func(bool)
	log       logrus.FieldLogger

	// Swappable for tests.
	list     func() []string
	listen   ListenFunc
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPortBackend watches for an input port containing match. onMessage runs
// on the driver's callback goroutine.
func NewPortBackend(match string, onMessage func([]byte), onConnect func(bool), log logrus.FieldLogger) *PortBackend {
	return &PortBackend{
		match:     match,
		onMessage: onMessage,
		onConnect: onConnect,
		log:       log,
		list:      InPortNames,
		listen:    listenPort,
		interval:  portRescanInterval,
	}
}

// InPortNames lists the MIDI input ports known to the driver.
func InPortNames() []string {
	ins := midi.GetInPorts()
	names := make([]string, 0, len(ins))
	for _, in := range ins {
		names = append(names, in.String())
	}
	return names
}

func listenPort(name string, fn func([]byte)) (func(), error) {
	for _, in := range midi.GetInPorts() {
		if in.String() != name {
			continue
		}
		stop, err := midi.ListenTo(in, func(msg midi.Message, timestampms int32) {
			fn([]byte(msg))
		})
		if err != nil {
			return nil, fmt.Errorf("failed to listen on %s: %w", name, err)
		}
		return stop, nil
	}
	return nil, fmt.Errorf("input port not found: %s", name)
}

// Enable starts the port watcher.
func (b *PortBackend) Enable() error {
	if b.match == "" {
		return ErrUnavailable
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	b.done = make(chan struct{})
	go b.watch(ctx, b.done)
	return nil
}

// Disable stops the watcher and closes the port.
func (b *PortBackend) Disable() {
	b.mu.Lock()
	cancel, done := b.cancel, b.done
	b.cancel, b.done = nil, nil
	b.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (b *PortBackend) watch(ctx context.Context, done chan struct{}) {
	defer close(done)

	t := time.NewTicker(b.interval)
	defer t.Stop()

	var (
		stop    func()
		current string
	)
	defer func() {
		if stop != nil {
			stop()
			b.onConnect(false)
		}
	}()

	for {
		names := b.list()
		if stop != nil && !containsName(names, current) {
			b.log.WithField("port", current).Warn("MIDI port disappeared")
			stop()
			stop = nil
			b.onConnect(false)
		}
		if stop == nil {
			if name, ok := pickPort(names, b.match); ok {
				s, err := b.listen(name, b.onMessage)
				if err != nil {
					b.log.WithError(err).WithField("port", name).Error("MIDI connect failed")
				} else {
					stop, current = s, name
					b.log.WithField("port", name).Info("MIDI port connected")
					b.onConnect(true)
				}
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

func pickPort(names []string, match string) (string, bool) {
	match = strings.ToLower(match)
	for _, n := range names {
		if IsExcluded(n) {
			continue
		}
		if strings.Contains(strings.ToLower(n), match) {
			return n, true
		}
	}
	return "", false
}

// IsExcluded reports whether name is a virtual port that is never picked.
func IsExcluded(name string) bool {
	lower := strings.ToLower(name)
	for _, p := range ExcludedPorts {
		if strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}
