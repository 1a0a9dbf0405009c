package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")

	fs, err := Load(path, 4)
	if err != nil {
		t.Fatalf("Error loading settings: %v", err)
	}

	if diff := cmp.Diff(Defaults(4), fs.Snapshot()); diff != "" {
		t.Errorf("Unexpected defaults (-want +got):\n%s", diff)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("Load should not create the file, stat err = %v", err)
	}
}

func TestStorePersistsEdits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.yaml")

	fs, err := Load(path, 3)
	if err != nil {
		t.Fatalf("Error loading settings: %v", err)
	}
	fs.SetMidiChannel(5)
	fs.SetClockMode(ClockMIDIHalf)
	fs.SetUSBEnabled(true)
	fs.SetOutType(1, CC(74))
	fs.SetOutChannel(1, OutChannelAll)
	fs.SetOutType(2, OutPitchBend)
	if err := fs.Store(); err != nil {
		t.Fatalf("Error storing settings: %v", err)
	}

	again, err := Load(path, 3)
	if err != nil {
		t.Fatalf("Error reloading settings: %v", err)
	}
	if diff := cmp.Diff(fs.Snapshot(), again.Snapshot()); diff != "" {
		t.Errorf("Reloaded settings differ (-want +got):\n%s", diff)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("Temporary file left behind, stat err = %v", err)
	}
}

func TestLoadClampsOutOfRangeValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	data := []byte(`midi_channel: 42
clock_mode: midi/4
outputs:
  - type: cc12
    channel: 99
    max_type: gate
  - type: pitchbend
    channel: all
`)
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("Error writing settings: %v", err)
	}

	fs, err := Load(path, 2)
	if err != nil {
		t.Fatalf("Error loading settings: %v", err)
	}

	if got := fs.MidiChannel(); got != MaxChannel {
		t.Errorf("MidiChannel = %v, want %v", got, MaxChannel)
	}
	if got := fs.ClockMode(); got != ClockMIDIQuarter {
		t.Errorf("ClockMode = %v, want %v", got, ClockMIDIQuarter)
	}
	if got := fs.OutType(0); got != OutGate {
		t.Errorf("OutType(0) = %v, want Gate (narrowed by max_type)", got)
	}
	if got := fs.OutChannel(0); got != OutChannelAll {
		t.Errorf("OutChannel(0) = %v, want All", got)
	}
	if got := fs.MaxOutType(0); got != OutGate {
		t.Errorf("MaxOutType(0) = %v, want Gate", got)
	}
	if got := fs.MaxOutType(1); got != OutPitchBend {
		t.Errorf("MaxOutType(1) = %v, want Bend", got)
	}
}

func TestLoadRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	if err := os.WriteFile(path, []byte("outputs:\n  - type: banana\n"), 0600); err != nil {
		t.Fatalf("Error writing settings: %v", err)
	}
	if _, err := Load(path, 1); err == nil {
		t.Error("Expected an error for an unknown output type")
	}
}

func TestOutputIndexOutOfRangeIsIgnored(t *testing.T) {
	fs := NewMemory(2)
	fs.SetOutType(7, OutGate)
	fs.SetOutChannel(-1, 3)

	if got := fs.OutType(7); got != OutNone {
		t.Errorf("OutType(7) = %v, want Off", got)
	}
	if got := fs.OutChannel(-1); got != OutChannelUnchanged {
		t.Errorf("OutChannel(-1) = %v, want --", got)
	}
	if err := fs.Store(); err != nil {
		t.Errorf("Memory store should not fail: %v", err)
	}
}

func TestOutTypeParsing(t *testing.T) {
	tests := []struct {
		in   string
		want OutType
		ok   bool
	}{
		{"off", OutNone, true},
		{"Gate", OutGate, true},
		{"cc0", CC(0), true},
		{"CC127", CC(127), true},
		{"cc128", OutNone, false},
		{"pitchbend", OutPitchBend, true},
		{"wobble", OutNone, false},
	}

	for _, tt := range tests {
		got, err := ParseOutType(tt.in)
		if (err == nil) != tt.ok {
			t.Errorf("ParseOutType(%q) error = %v, want ok=%v", tt.in, err, tt.ok)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseOutType(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestDisplayStrings(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{CC(64).String(), "CC64"},
		{OutPitchBend.String(), "Bend"},
		{OutChannelUnchanged.String(), "--"},
		{OutChannelAll.String(), "All"},
		{OutChannel(9).String(), "9"},
		{ClockMIDIHalf.String(), "MIDI/2"},
		{OnOff(true), "On"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}
