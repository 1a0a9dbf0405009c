// Package config holds the persisted MIDI routing settings: per-output
// mappings plus the global channel, clock and transport flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// DefaultOutputs is the number of outputs on the rack module.
const DefaultOutputs = 8

// OutputMapping routes one output to a slice of the MIDI stream.
type OutputMapping struct {
	Type    OutType    `yaml:"type"`
	Channel OutChannel `yaml:"channel"`

	// MaxType narrows the types this output may take, e.g. gate-only jacks.
	MaxType *OutType `yaml:"max_type,omitempty"`
}

// Settings is the on-disk form of the store.
type Settings struct {
	MidiChannel      Channel         `yaml:"midi_channel"`
	ClockMode        ClockMode       `yaml:"clock_mode"`
	BluetoothEnabled bool            `yaml:"bluetooth_enabled"`
	USBEnabled       bool            `yaml:"usb_enabled"`
	Outputs          []OutputMapping `yaml:"outputs"`
}

// Defaults returns the factory settings for n outputs.
func Defaults(n int) Settings {
	s := Settings{
		MidiChannel: MinChannel,
		ClockMode:   ClockInternal,
		Outputs:     make([]OutputMapping, n),
	}
	for i := range s.Outputs {
		s.Outputs[i] = OutputMapping{Type: OutNone, Channel: OutChannelUnchanged}
	}
	return s
}

// FileStore is the configuration store. It is safe for concurrent use: the
// settings screen writes while the MIDI path reads mappings.
type FileStore struct {
	mu   sync.RWMutex
	path string
	s    Settings
}

// DefaultPath returns the platform config location of the settings file.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "urack", "settings.yaml"), nil
}

// Load reads the settings at path, falling back to defaults when the file does
// not exist yet. The output list is resized to outputs entries.
func Load(path string, outputs int) (*FileStore, error) {
	s := Defaults(outputs)

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("error reading settings: %w", err)
	default:
		if err := yaml.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("error parsing settings %s: %w", path, err)
		}
	}

	fs := &FileStore{path: path, s: s}
	fs.normalize(outputs)
	return fs, nil
}

// NewMemory returns a store that never touches the disk.
func NewMemory(outputs int) *FileStore {
	return &FileStore{s: Defaults(outputs)}
}

func (fs *FileStore) normalize(outputs int) {
	if len(fs.s.Outputs) > outputs {
		fs.s.Outputs = fs.s.Outputs[:outputs]
	}
	for len(fs.s.Outputs) < outputs {
		fs.s.Outputs = append(fs.s.Outputs, OutputMapping{})
	}
	fs.s.MidiChannel = Clamp(fs.s.MidiChannel, MinChannel, MaxChannel)
	fs.s.ClockMode = Clamp(fs.s.ClockMode, ClockInternal, ClockMIDIQuarter)
	for i := range fs.s.Outputs {
		o := &fs.s.Outputs[i]
		o.Channel = Clamp(o.Channel, OutChannelUnchanged, OutChannelAll)
		if o.MaxType != nil {
			*o.MaxType = Clamp(*o.MaxType, OutNone, OutPitchBend)
		}
		o.Type = Clamp(o.Type, OutNone, fs.maxOutType(i))
	}
}

// Store persists the current settings. The write goes to a temporary file
// that replaces the old one so a power cut never leaves a torn file.
func (fs *FileStore) Store() error {
	fs.mu.RLock()
	data, err := yaml.Marshal(&fs.s)
	path := fs.path
	fs.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("error encoding settings: %w", err)
	}
	if path == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("error creating settings dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("error writing settings: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("error replacing settings: %w", err)
	}
	return nil
}

// Path is where Store writes; empty for memory stores.
func (fs *FileStore) Path() string { return fs.path }

// Snapshot returns a deep copy of the current settings.
func (fs *FileStore) Snapshot() Settings {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	s := fs.s
	s.Outputs = make([]OutputMapping, len(fs.s.Outputs))
	copy(s.Outputs, fs.s.Outputs)
	return s
}

func (fs *FileStore) MidiChannel() Channel {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.s.MidiChannel
}

func (fs *FileStore) SetMidiChannel(c Channel) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.s.MidiChannel = Clamp(c, MinChannel, MaxChannel)
}

func (fs *FileStore) MinMidiChannel() Channel { return MinChannel }
func (fs *FileStore) MaxMidiChannel() Channel { return MaxChannel }

func (fs *FileStore) ClockMode() ClockMode {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.s.ClockMode
}

func (fs *FileStore) SetClockMode(m ClockMode) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.s.ClockMode = Clamp(m, ClockInternal, ClockMIDIQuarter)
}

func (fs *FileStore) MinClockMode() ClockMode { return ClockInternal }
func (fs *FileStore) MaxClockMode() ClockMode { return ClockMIDIQuarter }

func (fs *FileStore) BluetoothEnabled() bool {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.s.BluetoothEnabled
}

func (fs *FileStore) SetBluetoothEnabled(on bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.s.BluetoothEnabled = on
}

func (fs *FileStore) USBEnabled() bool {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.s.USBEnabled
}

func (fs *FileStore) SetUSBEnabled(on bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.s.USBEnabled = on
}

// OutputCount is the number of routable outputs.
func (fs *FileStore) OutputCount() int {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return len(fs.s.Outputs)
}

func (fs *FileStore) valid(idx int) bool {
	return idx >= 0 && idx < len(fs.s.Outputs)
}

func (fs *FileStore) OutType(idx int) OutType {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	if !fs.valid(idx) {
		return OutNone
	}
	return fs.s.Outputs[idx].Type
}

func (fs *FileStore) SetOutType(idx int, t OutType) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if !fs.valid(idx) {
		return
	}
	fs.s.Outputs[idx].Type = Clamp(t, OutNone, fs.maxOutType(idx))
}

func (fs *FileStore) MinOutType(idx int) OutType { return OutNone }

func (fs *FileStore) MaxOutType(idx int) OutType {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.maxOutType(idx)
}

func (fs *FileStore) maxOutType(idx int) OutType {
	if fs.valid(idx) && fs.s.Outputs[idx].MaxType != nil {
		return *fs.s.Outputs[idx].MaxType
	}
	return OutPitchBend
}

func (fs *FileStore) OutChannel(idx int) OutChannel {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	if !fs.valid(idx) {
		return OutChannelUnchanged
	}
	return fs.s.Outputs[idx].Channel
}

func (fs *FileStore) SetOutChannel(idx int, c OutChannel) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if !fs.valid(idx) {
		return
	}
	fs.s.Outputs[idx].Channel = Clamp(c, OutChannelUnchanged, OutChannelAll)
}

func (fs *FileStore) MinOutChannel() OutChannel { return OutChannelUnchanged }
func (fs *FileStore) MaxOutChannel() OutChannel { return OutChannelAll }
