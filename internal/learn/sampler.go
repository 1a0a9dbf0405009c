// Package learn captures the most recent controller and pitch-bend value per
// MIDI channel so the settings screen can bind an output to whatever the
// operator just moved.
package learn

import (
	"sync/atomic"
)

// NumChannels is the number of 1-based channel slots.
const NumChannels = 16

// present marks a slot as holding a value. The low 16 bits carry the value, so
// a CC of 0 and a centred pitch bend are both distinguishable from "nothing".
const present uint32 = 1 << 31

// Value is an optional sample.
type Value[T any] struct {
	v  T
	ok bool
}

// Some wraps a present value.
func Some[T any](v T) Value[T] { return Value[T]{v: v, ok: true} }

// Get returns the value and whether it is present.
func (o Value[T]) Get() (T, bool) { return o.v, o.ok }

// Present reports whether a value was captured.
func (o Value[T]) Present() bool { return o.ok }

// Sample is what a consume hands back: each field independently present or not.
type Sample struct {
	CC        Value[uint8]
	PitchBend Value[int16]
}

// Empty reports whether neither field holds a value.
func (s Sample) Empty() bool {
	return !s.CC.Present() && !s.PitchBend.Present()
}

type slot struct {
	cc   atomic.Uint32
	bend atomic.Uint32
}

// Sampler keeps one latest-value-wins slot per channel. Writers run on the
// MIDI callback path and readers on the UI tick; every field is a single
// atomic word so a read never sees half a value.
type Sampler struct {
	slots [NumChannels]slot
}

// New returns an empty sampler.
func New() *Sampler {
	return &Sampler{}
}

func (s *Sampler) slot(channel uint8) *slot {
	if channel < 1 || channel > NumChannels {
		return nil
	}
	return &s.slots[channel-1]
}

// RecordCC overwrites the channel's controller slot with the number of the
// controller that just moved.
func (s *Sampler) RecordCC(channel, controller uint8) {
	if sl := s.slot(channel); sl != nil {
		sl.cc.Store(present | uint32(controller&0x7f))
	}
}

// RecordPitchBend overwrites the channel's pitch-bend value.
func (s *Sampler) RecordPitchBend(channel uint8, value int16) {
	if sl := s.slot(channel); sl != nil {
		sl.bend.Store(present | uint32(uint16(value)))
	}
}

// Consume reads and clears both fields of one channel.
func (s *Sampler) Consume(channel uint8) Sample {
	sl := s.slot(channel)
	if sl == nil {
		return Sample{}
	}
	return Sample{
		CC:        decodeCC(sl.cc.Swap(0)),
		PitchBend: decodeBend(sl.bend.Swap(0)),
	}
}

// ConsumeAny returns the first controller value and the first pitch-bend value
// found scanning channels upward from 1. Only the slots it returns are cleared.
func (s *Sampler) ConsumeAny() Sample {
	var out Sample
	for i := range s.slots {
		sl := &s.slots[i]
		if !out.CC.Present() && sl.cc.Load()&present != 0 {
			out.CC = decodeCC(sl.cc.Swap(0))
		}
		if !out.PitchBend.Present() && sl.bend.Load()&present != 0 {
			out.PitchBend = decodeBend(sl.bend.Swap(0))
		}
		if out.CC.Present() && out.PitchBend.Present() {
			break
		}
	}
	return out
}

// Reset clears every slot.
func (s *Sampler) Reset() {
	for i := range s.slots {
		s.slots[i].cc.Store(0)
		s.slots[i].bend.Store(0)
	}
}

func decodeCC(raw uint32) Value[uint8] {
	if raw&present == 0 {
		return Value[uint8]{}
	}
	return Some(uint8(raw & 0x7f))
}

func decodeBend(raw uint32) Value[int16] {
	if raw&present == 0 {
		return Value[int16]{}
	}
	return Some(int16(uint16(raw)))
}
