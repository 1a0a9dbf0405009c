// Package audio plays routed notes through the default sound device so the
// outputs can be auditioned without a rack attached.
package audio

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/ebitengine/oto/v3"
)

const (
	sampleRate   = 44100
	channelCount = 2 // stereo
	bitDepth     = 2 // 16-bit
	maxVoices    = 16
)

// Wave is an oscillator shape.
type Wave int

const (
	WaveSine Wave = iota
	WaveSquare
	WaveSawtooth
	WaveTriangle
)

var waveNames = []string{"sine", "square", "saw", "triangle"}

func (w Wave) String() string {
	if w < 0 || int(w) >= len(waveNames) {
		return "?"
	}
	return waveNames[w]
}

// ParseWave parses a wave name as used on the command line.
func ParseWave(s string) (Wave, error) {
	for i, name := range waveNames {
		if strings.EqualFold(name, s) {
			return Wave(i), nil
		}
	}
	return WaveSine, fmt.Errorf("unknown wave %q", s)
}

type voice struct {
	note      uint8
	channel   uint8
	velocity  float64
	step      float64
	phase     float64
	envelope  float64
	releasing bool
	active    bool
}

// mixer renders voices into interleaved 16-bit stereo frames.
type mixer struct {
	mu     sync.Mutex
	wave   Wave
	volume float64
	voices [maxVoices]voice
	next   int
}

func (m *mixer) noteOn(channel, note, velocity uint8) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if velocity == 0 {
		m.release(channel, note)
		return
	}
	v := m.free()
	*v = voice{
		note:     note,
		channel:  channel,
		velocity: float64(velocity) / 127,
		step:     noteFreq(note) / sampleRate,
		active:   true,
	}
}

// free returns an idle voice, stealing round robin when all are busy.
func (m *mixer) free() *voice {
	for i := range m.voices {
		if !m.voices[i].active {
			return &m.voices[i]
		}
	}
	v := &m.voices[m.next]
	m.next = (m.next + 1) % maxVoices
	return v
}

func (m *mixer) noteOff(channel, note uint8) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.release(channel, note)
}

func (m *mixer) release(channel, note uint8) {
	for i := range m.voices {
		v := &m.voices[i]
		if v.active && !v.releasing && v.note == note && v.channel == channel {
			v.releasing = true
		}
	}
}

func (m *mixer) active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, v := range m.voices {
		if v.active {
			n++
		}
	}
	return n
}

func (m *mixer) Read(buf []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	frames := len(buf) / (channelCount * bitDepth)
	for i := 0; i < frames; i++ {
		var sample float64
		for j := range m.voices {
			v := &m.voices[j]
			if !v.active {
				continue
			}
			sample += oscillate(m.wave, v.phase) * v.velocity * v.envelope * 0.2

			v.phase += v.step
			if v.phase >= 1 {
				v.phase--
			}
			switch {
			case v.releasing:
				v.envelope *= 0.9995
				if v.envelope < 0.001 {
					v.active = false
				}
			case v.envelope < 1:
				v.envelope = math.Min(v.envelope+0.001, 1)
			}
		}

		s := int16(math.Max(-1, math.Min(1, sample*m.volume)) * 32767)
		idx := i * channelCount * bitDepth
		buf[idx] = byte(s)
		buf[idx+1] = byte(s >> 8)
		buf[idx+2] = byte(s)
		buf[idx+3] = byte(s >> 8)
	}
	return frames * channelCount * bitDepth, nil
}

func oscillate(w Wave, phase float64) float64 {
	switch w {
	case WaveSquare:
		if phase < 0.5 {
			return 0.8
		}
		return -0.8
	case WaveSawtooth:
		return 2*phase - 1
	case WaveTriangle:
		if phase < 0.5 {
			return 4*phase - 1
		}
		return 3 - 4*phase
	}
	return math.Sin(2 * math.Pi * phase)
}

// noteFreq converts a MIDI note number to Hz, A4 = 440.
func noteFreq(note uint8) float64 {
	return 440.0 * math.Pow(2.0, (float64(note)-69.0)/12.0)
}

// Synth is a small polyphonic audition synth.
type Synth struct {
	mix    *mixer
	player *oto.Player
}

// NewSynth opens the default audio device.
func NewSynth(wave Wave, volume float64) (*Synth, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channelCount,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return nil, fmt.Errorf("error opening audio device: %w", err)
	}
	<-ready

	s := &Synth{mix: &mixer{wave: wave, volume: math.Max(0, math.Min(1, volume))}}
	s.player = ctx.NewPlayer(s.mix)
	s.player.Play()
	return s, nil
}

// NoteOn starts a voice.
func (s *Synth) NoteOn(channel, note, velocity uint8) { s.mix.noteOn(channel, note, velocity) }

// NoteOff releases a voice.
func (s *Synth) NoteOff(channel, note uint8) { s.mix.noteOff(channel, note) }

// Close silences the synth.
func (s *Synth) Close() error {
	s.player.Pause()
	return nil
}
