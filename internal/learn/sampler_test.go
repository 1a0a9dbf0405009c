package learn

import (
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

var sampleOpts = cmp.AllowUnexported(Value[uint8]{}, Value[int16]{})

func TestConsumeClearsChannel(t *testing.T) {
	s := New()
	s.RecordCC(5, 64)
	s.RecordPitchBend(5, -200)

	got := s.Consume(5)
	want := Sample{CC: Some[uint8](64), PitchBend: Some[int16](-200)}
	if diff := cmp.Diff(want, got, sampleOpts); diff != "" {
		t.Errorf("First consume (-want +got):\n%s", diff)
	}

	if again := s.Consume(5); !again.Empty() {
		t.Errorf("Second consume should be empty, got %+v", again)
	}
}

func TestConsumeTwiceIsEmptyOnEveryChannel(t *testing.T) {
	s := New()
	for ch := uint8(1); ch <= NumChannels; ch++ {
		s.RecordCC(ch, ch)
		s.RecordPitchBend(ch, int16(ch)*100)
	}
	for ch := uint8(1); ch <= NumChannels; ch++ {
		if first := s.Consume(ch); first.Empty() {
			t.Errorf("Channel %d: first consume was empty", ch)
		}
		if second := s.Consume(ch); !second.Empty() {
			t.Errorf("Channel %d: second consume = %+v, want empty", ch, second)
		}
	}
}

func TestZeroValuesArePresent(t *testing.T) {
	s := New()
	s.RecordCC(1, 0)
	s.RecordPitchBend(1, 0)

	got := s.Consume(1)
	if v, ok := got.CC.Get(); !ok || v != 0 {
		t.Errorf("CC = (%d, %v), want (0, true)", v, ok)
	}
	if v, ok := got.PitchBend.Get(); !ok || v != 0 {
		t.Errorf("PitchBend = (%d, %v), want (0, true)", v, ok)
	}
}

func TestLatestValueWins(t *testing.T) {
	s := New()
	s.RecordCC(3, 10)
	s.RecordCC(3, 20)
	s.RecordCC(3, 30)

	if v, _ := s.Consume(3).CC.Get(); v != 30 {
		t.Errorf("CC = %d, want 30", v)
	}
}

func TestPitchBendExtremes(t *testing.T) {
	s := New()
	for _, v := range []int16{-8192, 8191, -1} {
		s.RecordPitchBend(2, v)
		if got, ok := s.Consume(2).PitchBend.Get(); !ok || got != v {
			t.Errorf("PitchBend = (%d, %v), want (%d, true)", got, ok, v)
		}
	}
}

func TestConsumeAnyLowestChannelWins(t *testing.T) {
	s := New()
	s.RecordCC(9, 90)
	s.RecordCC(4, 40)
	s.RecordPitchBend(12, 1200)
	s.RecordPitchBend(7, 700)

	got := s.ConsumeAny()
	want := Sample{CC: Some[uint8](40), PitchBend: Some[int16](700)}
	if diff := cmp.Diff(want, got, sampleOpts); diff != "" {
		t.Errorf("ConsumeAny (-want +got):\n%s", diff)
	}

	// Slots that were not returned survive.
	if v, ok := s.Consume(9).CC.Get(); !ok || v != 90 {
		t.Errorf("Channel 9 CC = (%d, %v), want (90, true)", v, ok)
	}
	if v, ok := s.Consume(12).PitchBend.Get(); !ok || v != 1200 {
		t.Errorf("Channel 12 bend = (%d, %v), want (1200, true)", v, ok)
	}
	if !s.Consume(4).Empty() || !s.Consume(7).Empty() {
		t.Error("Consumed slots should have been cleared")
	}
}

func TestConsumeAnyOnEmptySampler(t *testing.T) {
	if got := New().ConsumeAny(); !got.Empty() {
		t.Errorf("ConsumeAny = %+v, want empty", got)
	}
}

func TestOutOfRangeChannelsAreIgnored(t *testing.T) {
	s := New()
	s.RecordCC(0, 1)
	s.RecordCC(17, 1)
	s.RecordPitchBend(200, 1)

	if got := s.ConsumeAny(); !got.Empty() {
		t.Errorf("ConsumeAny = %+v, want empty", got)
	}
	if got := s.Consume(0); !got.Empty() {
		t.Errorf("Consume(0) = %+v, want empty", got)
	}
}

func TestReset(t *testing.T) {
	s := New()
	s.RecordCC(1, 1)
	s.RecordPitchBend(16, 1)
	s.Reset()

	if got := s.ConsumeAny(); !got.Empty() {
		t.Errorf("ConsumeAny after Reset = %+v, want empty", got)
	}
}

func TestConcurrentRecordAndConsume(t *testing.T) {
	s := New()
	const writes = 5000

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < writes; i++ {
			s.RecordCC(8, uint8(i%128))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < writes; i++ {
			s.RecordPitchBend(8, int16(i%8192))
		}
	}()

	seen := 0
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	for {
		select {
		case <-done:
			s.Consume(8)
			if !s.Consume(8).Empty() {
				t.Error("Slot should be empty after final consume")
			}
			t.Logf("observed %d samples", seen)
			return
		default:
			got := s.Consume(8)
			if v, ok := got.CC.Get(); ok {
				if v > 127 {
					t.Fatalf("Torn CC value %d", v)
				}
				seen++
			}
			if v, ok := got.PitchBend.Get(); ok && (v < 0 || v >= 8192) {
				t.Fatalf("Torn pitch-bend value %d", v)
			}
		}
	}
}
