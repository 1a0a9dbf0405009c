package midi

import (
	gomidi "gitlab.com/gomidi/midi/v2"
)

// USB-MIDI code index numbers handled by the module.
const (
	cinNoteOff    = 0x8
	cinNoteOn     = 0x9
	cinControl    = 0xB
	cinPitchBend  = 0xE
	cinSingleByte = 0xF
)

// messageLen is the full length of a message starting with status, zero for
// statuses the module ignores.
func messageLen(status byte) int {
	switch status & 0xF0 {
	case 0x80, 0x90, 0xB0, 0xE0:
		return 3
	case 0xF0:
		switch status {
		case 0xF8, 0xFA, 0xFC:
			return 1
		}
	}
	return 0
}

// DecodeMessage decodes a MIDI 1.0 message as delivered by the Bluetooth
// service. Wire channels are 0-based; the event channel is 1-based, and this
// is the only place the offset is applied.
func DecodeMessage(raw []byte) (Event, bool) {
	if len(raw) == 0 {
		return Event{}, false
	}
	n := messageLen(raw[0])
	if n == 0 || len(raw) < n {
		return Event{}, false
	}
	msg := gomidi.Message(raw[:n])

	var (
		ch, d1, d2 uint8
		rel        int16
		abs        uint16
	)
	switch {
	case msg.GetNoteOn(&ch, &d1, &d2):
		if d2 == 0 {
			return Event{Kind: NoteOff, Channel: ch + 1, Data1: d1}, true
		}
		return Event{Kind: NoteOn, Channel: ch + 1, Data1: d1, Data2: d2}, true
	case msg.GetNoteOff(&ch, &d1, &d2):
		return Event{Kind: NoteOff, Channel: ch + 1, Data1: d1, Data2: d2}, true
	case msg.GetControlChange(&ch, &d1, &d2):
		return Event{Kind: ControlChange, Channel: ch + 1, Data1: d1, Data2: d2}, true
	case msg.GetPitchBend(&ch, &rel, &abs):
		return Event{Kind: PitchBend, Channel: ch + 1, Bend: rel}, true
	case msg.Is(gomidi.TimingClockMsg):
		return Event{Kind: Clock}, true
	case msg.Is(gomidi.StartMsg):
		return Event{Kind: Start}, true
	case msg.Is(gomidi.StopMsg):
		return Event{Kind: Stop}, true
	}
	return Event{}, false
}

// DecodeUSBPacket decodes a 4-byte USB-MIDI event packet. The code index
// number must agree with the status byte it carries.
func DecodeUSBPacket(pkt []byte) (Event, bool) {
	if len(pkt) < 4 {
		return Event{}, false
	}
	cin := pkt[0] & 0x0F
	status := pkt[1]

	switch cin {
	case cinNoteOff, cinNoteOn, cinControl, cinPitchBend:
		if status>>4 != cin {
			return Event{}, false
		}
	case cinSingleByte:
		if messageLen(status) != 1 {
			return Event{}, false
		}
	default:
		return Event{}, false
	}
	return DecodeMessage(pkt[1:4])
}
