package cmd

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/icco/urack/internal/config"
	"github.com/icco/urack/internal/learn"
	"github.com/icco/urack/internal/midi"
	"github.com/icco/urack/internal/processor"
	"github.com/icco/urack/internal/transport"
	"github.com/sirupsen/logrus"
)

// rack is the wired module: settings, learn side channel, processor,
// transports and the router between them.
type rack struct {
	log     logrus.FieldLogger
	store   *config.FileStore
	sampler *learn.Sampler
	proc    *processor.Processor
	gate    *transport.Gate
	router  *midi.Router
}

// newRack loads the settings and wires everything together. Every log line of
// the run carries a session id so runs sharing a log file can be told apart.
func newRack(log logrus.FieldLogger, opts ...processor.Option) (*rack, error) {
	log = log.WithField("session", uuid.NewString())

	path := configPath
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return nil, fmt.Errorf("error locating settings: %w", err)
		}
		path = p
	}
	store, err := config.Load(path, outputs)
	if err != nil {
		return nil, err
	}
	log.WithField("path", store.Path()).Debug("loaded settings")

	r := &rack{
		log:     log,
		store:   store,
		sampler: learn.New(),
		proc:    processor.New(store, opts...),
		gate:    transport.NewGate(log),
	}
	r.router = midi.NewRouter(r.gate, r.proc, r.sampler, log)

	r.gate.Attach(transport.BLE, transport.NewPortBackend(blePort,
		func(msg []byte) { r.router.Route(transport.BLE, msg) },
		func(connected bool) { r.gate.SetConnected(transport.BLE, connected) },
		log.WithField("transport", transport.BLE),
	))
	r.gate.Attach(transport.USB, transport.NewSerialBackend(usbDevice, usbBaud,
		func(pkt []byte) { r.router.Route(transport.USB, pkt) },
		func(connected bool) { r.gate.SetConnected(transport.USB, connected) },
		log.WithField("transport", transport.USB),
	))
	return r, nil
}

// start brings the transports up the way they were left.
func (r *rack) start() {
	r.gate.SetEnabled(transport.BLE, r.store.BluetoothEnabled())
	r.gate.SetEnabled(transport.USB, r.store.USBEnabled())
}

func (r *rack) close() {
	r.gate.Close()
}
