package transport

import (
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func testLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type fakeBackend struct {
	mu       sync.Mutex
	enables  int
	disables int
	err      error
}

func (f *fakeBackend) Enable() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enables++
	return f.err
}

func (f *fakeBackend) Disable() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disables++
}

func TestGateStartsDisabled(t *testing.T) {
	g := NewGate(testLogger())
	for _, k := range []Kind{BLE, USB} {
		if g.IsEnabled(k) {
			t.Errorf("%v should start disabled", k)
		}
		if g.IsConnected(k) {
			t.Errorf("%v should start disconnected", k)
		}
	}
}

func TestEnableIsIdempotent(t *testing.T) {
	g := NewGate(testLogger())
	b := &fakeBackend{}
	g.Attach(BLE, b)

	if !g.SetEnabled(BLE, true) {
		t.Fatal("First enable should succeed")
	}
	if !g.SetEnabled(BLE, true) {
		t.Fatal("Second enable should report enabled")
	}
	if b.enables != 1 {
		t.Errorf("Backend enabled %d times, want 1", b.enables)
	}

	g.SetEnabled(BLE, false)
	g.SetEnabled(BLE, false)
	if b.disables != 1 {
		t.Errorf("Backend disabled %d times, want 1", b.disables)
	}
}

func TestUnavailableTransportStaysDisabled(t *testing.T) {
	g := NewGate(testLogger())
	g.Attach(USB, &fakeBackend{err: ErrUnavailable})

	if g.SetEnabled(USB, true) {
		t.Error("SetEnabled should report false for an unavailable transport")
	}
	if g.IsEnabled(USB) {
		t.Error("USB should remain disabled")
	}
}

func TestFailingBackendStaysDisabled(t *testing.T) {
	g := NewGate(testLogger())
	g.Attach(BLE, &fakeBackend{err: errors.New("radio on fire")})

	if g.SetEnabled(BLE, true) || g.IsEnabled(BLE) {
		t.Error("BLE should remain disabled after a backend error")
	}
}

func TestDisabledTransportIsNeverConnected(t *testing.T) {
	g := NewGate(testLogger())
	g.Attach(BLE, &fakeBackend{})

	g.SetConnected(BLE, true)
	if g.IsConnected(BLE) {
		t.Error("Disabled transport reported connected")
	}

	g.SetEnabled(BLE, true)
	g.SetConnected(BLE, true)
	if !g.IsConnected(BLE) {
		t.Error("Enabled transport with a connection should be connected")
	}

	g.SetEnabled(BLE, false)
	if g.IsConnected(BLE) {
		t.Error("Disabling should clear the connection")
	}

	g.SetEnabled(BLE, true)
	if g.IsConnected(BLE) {
		t.Error("Re-enabling should not resurrect a stale connection")
	}
}

func TestGateWithoutBackend(t *testing.T) {
	g := NewGate(testLogger())
	if !g.SetEnabled(USB, true) || !g.IsEnabled(USB) {
		t.Error("A gate without a backend should still track the flag")
	}
	g.Close()
	if g.IsEnabled(USB) {
		t.Error("Close should disable every transport")
	}
	if g.SetEnabled(Kind(9), true) || g.IsEnabled(Kind(-1)) {
		t.Error("Unknown transports are always disabled")
	}
}

func TestPortBackendConnectsAndReconnects(t *testing.T) {
	var (
		mu        sync.Mutex
		ports     = []string{"Midi Through Port-0", "URack Bluetooth"}
		connected []bool
		stops     int
	)
	b := NewPortBackend("bluetooth", func([]byte) {}, func(c bool) {
		mu.Lock()
		defer mu.Unlock()
		connected = append(connected, c)
	}, testLogger())
	b.interval = time.Millisecond
	b.list = func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), ports...)
	}
	b.listen = func(name string, fn func([]byte)) (func(), error) {
		if name != "URack Bluetooth" {
			t.Errorf("Connected to unexpected port %q", name)
		}
		return func() {
			mu.Lock()
			defer mu.Unlock()
			stops++
		}, nil
	}

	if err := b.Enable(); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(connected) == 1
	})

	mu.Lock()
	ports = ports[:1]
	mu.Unlock()
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(connected) == 2
	})

	b.Disable()
	b.Disable()

	mu.Lock()
	defer mu.Unlock()
	if connected[0] != true || connected[1] != false {
		t.Errorf("Connection callbacks = %v, want [true false]", connected)
	}
	if stops != 1 {
		t.Errorf("Port stopped %d times, want 1", stops)
	}
}

func TestPortBackendWithoutMatchIsUnavailable(t *testing.T) {
	b := NewPortBackend("", nil, nil, testLogger())
	if err := b.Enable(); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Enable error = %v, want ErrUnavailable", err)
	}
}

type pipePort struct {
	*io.PipeReader
}

func TestSerialBackendDeliversPackets(t *testing.T) {
	r, w := io.Pipe()
	got := make(chan []byte, 4)
	b := NewSerialBackend("/dev/ttyFAKE", 31250, func(p []byte) { got <- p }, func(bool) {}, testLogger())
	b.open = func(device string, baud int) (io.ReadCloser, error) {
		return pipePort{r}, nil
	}

	if err := b.Enable(); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	go func() {
		_, _ = w.Write([]byte{0x0B, 0xB4, 0x07, 0x64, 0x09, 0x90})
		_, _ = w.Write([]byte{0x3C, 0x40})
	}()

	want := [][]byte{{0x0B, 0xB4, 0x07, 0x64}, {0x09, 0x90, 0x3C, 0x40}}
	for i, w := range want {
		select {
		case p := <-got:
			if string(p) != string(w) {
				t.Errorf("Packet %d = % x, want % x", i, p, w)
			}
		case <-time.After(time.Second):
			t.Fatalf("Timed out waiting for packet %d", i)
		}
	}

	b.Disable()
}

func TestSerialBackendResynchronizes(t *testing.T) {
	r, w := io.Pipe()
	got := make(chan []byte, 4)
	b := NewSerialBackend("/dev/ttyFAKE", 31250, func(p []byte) { got <- p }, func(bool) {}, testLogger())
	b.open = func(device string, baud int) (io.ReadCloser, error) {
		return pipePort{r}, nil
	}
	if err := b.Enable(); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	defer b.Disable()

	go func() {
		// Tail of a packet whose head was lost, then two whole packets.
		_, _ = w.Write([]byte{0x07, 0x64})
		_, _ = w.Write([]byte{0x0B, 0xB4, 0x07, 0x64})
		_, _ = w.Write([]byte{0x0F, 0xF8, 0x00, 0x00})
	}()

	want := [][]byte{{0x0B, 0xB4, 0x07, 0x64}, {0x0F, 0xF8, 0x00, 0x00}}
	for i, w := range want {
		select {
		case p := <-got:
			if string(p) != string(w) {
				t.Errorf("Packet %d = % x, want % x", i, p, w)
			}
		case <-time.After(time.Second):
			t.Fatalf("Timed out waiting for packet %d", i)
		}
	}
}

func TestFramed(t *testing.T) {
	tests := []struct {
		pkt  []byte
		want bool
	}{
		{[]byte{0x09, 0x90, 0x3C, 0x40}, true},
		{[]byte{0x1B, 0xB0, 0x07, 0x00}, true},
		{[]byte{0x0E, 0xE3, 0x00, 0x40}, true},
		{[]byte{0x0F, 0xFA, 0x00, 0x00}, true},
		{[]byte{0x09, 0x80, 0x3C, 0x40}, false},
		{[]byte{0x0B, 0xB0, 0x87, 0x00}, false},
		{[]byte{0x0F, 0xF0, 0x00, 0x00}, false},
		{[]byte{0x04, 0xF0, 0x7E, 0x00}, false},
		{[]byte{0x07, 0x64, 0x0B, 0xB4}, false},
	}
	for _, tt := range tests {
		if got := framed(tt.pkt); got != tt.want {
			t.Errorf("framed(% x) = %v, want %v", tt.pkt, got, tt.want)
		}
	}
}

func TestSerialBackendReopensAfterReadError(t *testing.T) {
	var (
		mu        sync.Mutex
		opens     int
		connected []bool
		writers   = make(chan *io.PipeWriter, 2)
	)
	got := make(chan []byte, 4)
	b := NewSerialBackend("/dev/ttyFAKE", 31250, func(p []byte) { got <- p }, func(c bool) {
		mu.Lock()
		defer mu.Unlock()
		connected = append(connected, c)
	}, testLogger())
	b.interval = time.Millisecond
	b.open = func(device string, baud int) (io.ReadCloser, error) {
		mu.Lock()
		defer mu.Unlock()
		opens++
		if opens == 2 {
			return nil, errors.New("no such device")
		}
		r, w := io.Pipe()
		writers <- w
		return pipePort{r}, nil
	}

	if err := b.Enable(); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	first := <-writers
	first.CloseWithError(errors.New("device unplugged"))

	var second *io.PipeWriter
	select {
	case second = <-writers:
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for reopen")
	}
	go func() { _, _ = second.Write([]byte{0x09, 0x91, 0x3C, 0x40}) }()
	select {
	case p := <-got:
		if p[1] != 0x91 {
			t.Errorf("Packet after reopen = % x", p)
		}
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for packet after reopen")
	}

	b.Disable()
	b.Disable()

	mu.Lock()
	defer mu.Unlock()
	want := []bool{true, false, true, false}
	if len(connected) != len(want) {
		t.Fatalf("Connection callbacks = %v, want %v", connected, want)
	}
	for i := range want {
		if connected[i] != want[i] {
			t.Errorf("Connection callbacks = %v, want %v", connected, want)
			break
		}
	}
	if opens != 3 {
		t.Errorf("Device opened %d times, want 3", opens)
	}
}

func TestSerialBackendDisableWhileReopening(t *testing.T) {
	r, w := io.Pipe()
	opens := 0
	var mu sync.Mutex
	b := NewSerialBackend("/dev/ttyFAKE", 31250, func([]byte) {}, func(bool) {}, testLogger())
	b.interval = time.Millisecond
	b.open = func(device string, baud int) (io.ReadCloser, error) {
		mu.Lock()
		defer mu.Unlock()
		opens++
		if opens == 1 {
			return pipePort{r}, nil
		}
		return nil, errors.New("no such device")
	}
	if err := b.Enable(); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	w.CloseWithError(errors.New("device unplugged"))
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return opens > 2
	})

	stopped := make(chan struct{})
	go func() {
		b.Disable()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Disable blocked while the device was missing")
	}
	if err := b.Enable(); err == nil {
		t.Error("Enable succeeded with the device missing")
	}
}

func TestSerialBackendWithoutDeviceIsUnavailable(t *testing.T) {
	b := NewSerialBackend("", 0, nil, nil, testLogger())
	if err := b.Enable(); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Enable error = %v, want ErrUnavailable", err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("Timed out waiting for condition")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestPickPort(t *testing.T) {
	names := []string{"Midi Through Port-0", "USB Keyboard", "WIDI Bluetooth MIDI", "Bluetooth Dummy"}
	tests := []struct {
		match string
		want  string
		ok    bool
	}{
		{"bluetooth", "WIDI Bluetooth MIDI", true},
		{"KEYBOARD", "USB Keyboard", true},
		{"through", "", false},
		{"launchpad", "", false},
	}
	for _, tt := range tests {
		got, ok := pickPort(names, tt.match)
		if got != tt.want || ok != tt.ok {
			t.Errorf("pickPort(%q) = (%q, %v), want (%q, %v)", tt.match, got, ok, tt.want, tt.ok)
		}
	}
	if !IsExcluded("Midi Through Port-0") || IsExcluded("USB Keyboard") {
		t.Error("IsExcluded misclassified a port")
	}
}
