package processor

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/icco/urack/internal/midi"
	"gitlab.com/gomidi/midi/v2/smf"
)

// Resolution is the recorder's ticks per quarter note.
const Resolution = 960

// Recorder captures routed events in real time and writes them out as a
// two-track Standard MIDI File: tempo map first, performance second.
type Recorder struct {
	mu    sync.Mutex
	bpm   float64
	now   func() time.Time
	start time.Time
	last  uint32
	track smf.Track
	count int
}

// NewRecorder starts a recording at bpm. The tempo only sets how wall clock
// time maps to ticks.
func NewRecorder(bpm float64) *Recorder {
	r := &Recorder{bpm: bpm, now: time.Now}
	r.start = r.now()
	return r
}

func (r *Recorder) ticks(t time.Time) uint32 {
	beats := t.Sub(r.start).Minutes() * r.bpm
	return uint32(math.Round(beats * Resolution))
}

// Event records ev at the current time. Real-time messages have no place in
// a file and are skipped.
func (r *Recorder) Event(ev midi.Event) {
	switch ev.Kind {
	case midi.Clock, midi.Start, midi.Stop:
		return
	}
	msg := ev.Message()
	if msg == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	abs := r.ticks(r.now())
	if abs < r.last {
		abs = r.last
	}
	r.track.Add(abs-r.last, msg)
	r.last = abs
	r.count++
}

// Len is the number of recorded events.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// WriteFile saves the recording to path.
func (r *Recorder) WriteFile(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sm := smf.New()
	sm.TimeFormat = smf.MetricTicks(Resolution)

	var tempo smf.Track
	tempo.Add(0, smf.MetaMeter(4, 4))
	tempo.Add(0, smf.MetaTempo(r.bpm))
	tempo.Close(0)
	if err := sm.Add(tempo); err != nil {
		return fmt.Errorf("error adding tempo track: %w", err)
	}

	perf := make(smf.Track, len(r.track))
	copy(perf, r.track)
	perf.Close(0)
	if err := sm.Add(perf); err != nil {
		return fmt.Errorf("error adding performance track: %w", err)
	}

	if err := sm.WriteFile(path); err != nil {
		return fmt.Errorf("error writing MIDI file: %w", err)
	}
	return nil
}
