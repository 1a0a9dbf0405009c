package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.bug.st/serial"
)

// PacketSize is the size of a USB-MIDI event packet.
const PacketSize = 4

const serialReopenInterval = time.Second

// SerialBackend polls USB-MIDI event packets from a serial device, the way the
// module's USB stack hands them over one 4-byte packet at a time. A device
// that fails while enabled is reopened until it comes back or the backend is
// disabled.
type SerialBackend struct {
	device    string
	baud      int
	onPacket  func([]byte)
	onConnect func(bool)
	log       logrus.FieldLogger

	// Swappable for tests.
	open     func(device string, baud int) (io.ReadCloser, error)
	interval time.Duration

	mu     sync.Mutex
	port   io.ReadCloser
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSerialBackend reads packets from device. An empty device name means the
// host has no USB MIDI path and Enable reports ErrUnavailable.
func NewSerialBackend(device string, baud int, onPacket func([]byte), onConnect func(bool), log logrus.FieldLogger) *SerialBackend {
	return &SerialBackend{
		device:    device,
		baud:      baud,
		onPacket:  onPacket,
		onConnect: onConnect,
		log:       log.WithField("device", device),
		open:      openSerial,
		interval:  serialReopenInterval,
	}
}

func openSerial(device string, baud int) (io.ReadCloser, error) {
	p, err := serial.Open(device, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// SerialPortNames lists the serial devices present on the host.
func SerialPortNames() ([]string, error) {
	return serial.GetPortsList()
}

// Enable opens the device and starts polling. The first open must succeed.
func (b *SerialBackend) Enable() error {
	if b.device == "" {
		return ErrUnavailable
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancel != nil {
		return nil
	}

	p, err := b.open(b.device, b.baud)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", b.device, err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	b.port, b.cancel = p, cancel
	b.done = make(chan struct{})
	go b.run(ctx, p, b.done)
	b.log.WithField("baud", b.baud).Info("serial: port opened")
	b.onConnect(true)
	return nil
}

// Disable closes the device, which also ends the poll loop.
func (b *SerialBackend) Disable() {
	b.mu.Lock()
	cancel, done, p := b.cancel, b.done, b.port
	b.cancel, b.done, b.port = nil, nil, nil
	if cancel != nil {
		cancel()
	}
	b.mu.Unlock()
	if cancel == nil {
		return
	}
	if p != nil {
		_ = p.Close()
	}
	<-done
	b.log.Info("serial: port closed")
}

func (b *SerialBackend) run(ctx context.Context, p io.ReadCloser, done chan struct{}) {
	defer close(done)
	for {
		err := b.poll(p)
		if ctx.Err() != nil {
			b.onConnect(false)
			return
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			b.log.Warn("serial: device closed")
		} else {
			b.log.WithError(err).Warn("serial: read failed")
		}
		b.mu.Lock()
		if b.port == p {
			b.port = nil
		}
		b.mu.Unlock()
		_ = p.Close()
		b.onConnect(false)

		if p = b.reopen(ctx); p == nil {
			return
		}
		b.log.Info("serial: port reopened")
		b.onConnect(true)
	}
}

// reopen retries the device until it opens or ctx ends, and returns nil in
// the latter case.
func (b *SerialBackend) reopen(ctx context.Context) io.ReadCloser {
	t := time.NewTicker(b.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
		p, err := b.open(b.device, b.baud)
		if err != nil {
			b.log.WithError(err).Debug("serial: reopen failed")
			continue
		}
		b.mu.Lock()
		if ctx.Err() != nil {
			b.mu.Unlock()
			_ = p.Close()
			return nil
		}
		b.port = p
		b.mu.Unlock()
		return p
	}
}

// poll delivers packets until r fails. A window that does not frame a packet
// the module handles is slid forward one byte at a time until it does, so a
// dropped byte costs the packets around it rather than every packet after it.
func (b *SerialBackend) poll(r io.Reader) error {
	var buf [PacketSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return err
	}
	skipped := 0
	for {
		if !framed(buf[:]) {
			copy(buf[:], buf[1:])
			if _, err := io.ReadFull(r, buf[PacketSize-1:]); err != nil {
				return err
			}
			skipped++
			continue
		}
		if skipped > 0 {
			b.log.WithField("skipped", skipped).Debug("serial: resynchronized")
			skipped = 0
		}
		pkt := make([]byte, PacketSize)
		copy(pkt, buf[:])
		b.onPacket(pkt)
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return err
		}
	}
}

// framed reports whether pkt is a channel voice or real-time packet whose
// code index number agrees with its status byte. The cable number is ignored.
func framed(pkt []byte) bool {
	cin, status := pkt[0]&0x0F, pkt[1]
	switch {
	case cin >= 0x8 && cin <= 0xE:
		return status>>4 == cin && pkt[2] < 0x80 && pkt[3] < 0x80
	case cin == 0xF:
		return status >= 0xF8
	}
	return false
}
