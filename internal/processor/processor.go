// Package processor turns routed MIDI into per-output control values
// following the stored output mappings.
package processor

import (
	"slices"
	"sync"

	"github.com/icco/urack/internal/config"
	"github.com/icco/urack/internal/midi"
)

// ClocksPerQuarter is the MIDI clock resolution.
const ClocksPerQuarter = 24

// Store is the part of the configuration the processor follows.
type Store interface {
	MidiChannel() config.Channel
	ClockMode() config.ClockMode
	OutputCount() int
	OutType(idx int) config.OutType
	OutChannel(idx int) config.OutChannel
}

// Voice plays the notes reaching the processor.
type Voice interface {
	NoteOn(channel, note, velocity uint8)
	NoteOff(channel, note uint8)
}

// Tap observes every event the processor handles.
type Tap interface {
	Event(ev midi.Event)
}

// Option configures a Processor.
type Option func(*Processor)

// WithVoice sends notes to v.
func WithVoice(v Voice) Option {
	return func(p *Processor) { p.voice = v }
}

// WithTap sends every event to t. Taps run in the order they were added.
func WithTap(t Tap) Option {
	return func(p *Processor) { p.taps = append(p.taps, t) }
}

// Output is the current state of one output.
type Output struct {
	Type    config.OutType
	Channel config.OutChannel
	// Value is 0/1 for gates and clock, a note for pitch, 0..127 for velocity
	// and controllers and -8192..8191 for pitch bend.
	Value int
}

type output struct {
	typ   config.OutType
	value int
	held  []uint8
}

// Processor implements the router's processor. It is safe for concurrent use.
type Processor struct {
	store Store
	voice Voice
	taps  []Tap

	mu      sync.Mutex
	outs    []output
	running bool
	clocks  int
}

// New returns a processor reading mappings from store.
func New(store Store, opts ...Option) *Processor {
	p := &Processor{store: store}
	for _, o := range opts {
		o(p)
	}
	return p
}

// sync resizes the output list and drops state for outputs whose type was
// edited since the last event. Callers hold mu.
func (p *Processor) sync() {
	n := p.store.OutputCount()
	if len(p.outs) != n {
		p.outs = make([]output, n)
	}
	for i := range p.outs {
		if t := p.store.OutType(i); t != p.outs[i].typ {
			p.outs[i] = output{typ: t}
		}
	}
}

// listens reports whether output idx follows channel ch.
func (p *Processor) listens(idx int, ch uint8) bool {
	switch oc := p.store.OutChannel(idx); oc {
	case config.OutChannelAll:
		return true
	case config.OutChannelUnchanged:
		return config.Channel(ch) == p.store.MidiChannel()
	default:
		c, _ := oc.Concrete()
		return config.Channel(ch) == c
	}
}

func (p *Processor) each(ch uint8, fn func(o *output)) {
	p.sync()
	for i := range p.outs {
		if p.listens(i, ch) {
			fn(&p.outs[i])
		}
	}
}

func (p *Processor) observe(ev midi.Event) {
	for _, t := range p.taps {
		t.Event(ev)
	}
}

func (p *Processor) NoteOn(channel, note, velocity uint8) {
	p.mu.Lock()
	p.each(channel, func(o *output) {
		o.held = append(slices.DeleteFunc(o.held, func(n uint8) bool { return n == note }), note)
		switch o.typ {
		case config.OutGate:
			o.value = 1
		case config.OutPitch:
			o.value = int(note)
		case config.OutVelocity:
			o.value = int(velocity)
		}
	})
	p.mu.Unlock()

	if p.voice != nil {
		p.voice.NoteOn(channel, note, velocity)
	}
	p.observe(midi.Event{Kind: midi.NoteOn, Channel: channel, Data1: note, Data2: velocity})
}

// NoteOff releases note. Gates stay open while other notes are held and pitch
// falls back to the most recent of them.
func (p *Processor) NoteOff(channel, note, velocity uint8) {
	p.mu.Lock()
	p.each(channel, func(o *output) {
		o.held = slices.DeleteFunc(o.held, func(n uint8) bool { return n == note })
		switch o.typ {
		case config.OutGate:
			if len(o.held) == 0 {
				o.value = 0
			}
		case config.OutPitch:
			if len(o.held) > 0 {
				o.value = int(o.held[len(o.held)-1])
			}
		}
	})
	p.mu.Unlock()

	if p.voice != nil {
		p.voice.NoteOff(channel, note)
	}
	p.observe(midi.Event{Kind: midi.NoteOff, Channel: channel, Data1: note, Data2: velocity})
}

func (p *Processor) ControlChange(channel, controller, value uint8) {
	p.mu.Lock()
	p.each(channel, func(o *output) {
		if n, ok := o.typ.Controller(); ok && n == controller {
			o.value = int(value)
		}
	})
	p.mu.Unlock()
	p.observe(midi.Event{Kind: midi.ControlChange, Channel: channel, Data1: controller, Data2: value})
}

func (p *Processor) PitchBend(channel uint8, value int16) {
	p.mu.Lock()
	p.each(channel, func(o *output) {
		if o.typ == config.OutPitchBend {
			o.value = int(value)
		}
	})
	p.mu.Unlock()
	p.observe(midi.Event{Kind: midi.PitchBend, Channel: channel, Bend: value})
}

// Clock advances clock outputs while the transport runs. The output is high
// for the first half of every divided period.
func (p *Processor) Clock() {
	p.mu.Lock()
	if div := p.store.ClockMode().Divisor(); p.running && div > 0 {
		period := ClocksPerQuarter * div
		high := 0
		if p.clocks%period < period/2 {
			high = 1
		}
		p.clocks++
		p.sync()
		for i := range p.outs {
			if p.outs[i].typ == config.OutClock {
				p.outs[i].value = high
			}
		}
	}
	p.mu.Unlock()
	p.observe(midi.Event{Kind: midi.Clock})
}

func (p *Processor) Start() {
	p.mu.Lock()
	p.running = true
	p.clocks = 0
	p.mu.Unlock()
	p.observe(midi.Event{Kind: midi.Start})
}

func (p *Processor) Stop() {
	p.mu.Lock()
	p.running = false
	p.sync()
	for i := range p.outs {
		if p.outs[i].typ == config.OutClock {
			p.outs[i].value = 0
		}
	}
	p.mu.Unlock()
	p.observe(midi.Event{Kind: midi.Stop})
}

// Running reports whether a MIDI Start has been seen without a Stop.
func (p *Processor) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Snapshot returns every output's current state.
func (p *Processor) Snapshot() []Output {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sync()
	out := make([]Output, len(p.outs))
	for i, o := range p.outs {
		out[i] = Output{Type: o.typ, Channel: p.store.OutChannel(i), Value: o.value}
	}
	return out
}
