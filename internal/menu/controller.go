package menu

import (
	"github.com/icco/urack/internal/config"
	"github.com/icco/urack/internal/learn"
	"github.com/icco/urack/internal/transport"
	"github.com/sirupsen/logrus"
)

// Store is the configuration the controller reads and edits.
type Store interface {
	MidiChannel() config.Channel
	SetMidiChannel(config.Channel)
	MinMidiChannel() config.Channel
	MaxMidiChannel() config.Channel

	ClockMode() config.ClockMode
	SetClockMode(config.ClockMode)
	MinClockMode() config.ClockMode
	MaxClockMode() config.ClockMode

	OutputCount() int
	OutType(idx int) config.OutType
	SetOutType(idx int, t config.OutType)
	MinOutType(idx int) config.OutType
	MaxOutType(idx int) config.OutType
	OutChannel(idx int) config.OutChannel
	SetOutChannel(idx int, c config.OutChannel)
	MinOutChannel() config.OutChannel
	MaxOutChannel() config.OutChannel

	BluetoothEnabled() bool
	SetBluetoothEnabled(bool)
	USBEnabled() bool
	SetUSBEnabled(bool)

	Store() error
}

// Transports starts and stops the transports behind the Bluetooth and USB
// pages.
type Transports interface {
	SetEnabled(k transport.Kind, on bool) bool
}

// Sampler is the learn side channel.
type Sampler interface {
	Consume(channel uint8) learn.Sample
	ConsumeAny() learn.Sample
	Reset()
}

// Navigator leaves the settings screen.
type Navigator interface {
	Escape()
}

// Input is one tick's worth of normalized controls.
type Input struct {
	Encoder int
	Confirm bool
	Back    bool
}

// Cursor is the controller's focus. Editing is only ever set while the
// paginator is inactive.
type Cursor struct {
	Page      Page
	Item      int
	Column    int
	Paginator bool
	Editing   bool
}

// Render asks the display to draw Layout with the cursor.
type Render struct {
	Cursor
	Layout Layout
}

// Controller owns the cursor and applies edits to the store. It is driven
// from a single goroutine.
type Controller struct {
	store   Store
	gate    Transports
	sampler Sampler
	nav     Navigator
	log     logrus.FieldLogger

	layouts [pageCount]Layout
	cur     Cursor
}

// New builds a controller positioned at the Outputs paginator.
func New(store Store, gate Transports, sampler Sampler, nav Navigator, log logrus.FieldLogger) *Controller {
	c := &Controller{
		store:   store,
		gate:    gate,
		sampler: sampler,
		nav:     nav,
		log:     log,
	}
	c.layouts[PageOutputs] = OutputsLayout(store.OutputCount())
	c.layouts[PageBluetooth] = EnableLayout()
	c.layouts[PageUSB] = EnableLayout()
	c.cur = Cursor{Page: PageOutputs, Paginator: true}
	return c
}

// Enter resets the screen to its initial state and drops anything the
// sampler captured while the screen was away.
func (c *Controller) Enter() Render {
	c.cur = Cursor{Page: PageOutputs, Paginator: true}
	c.sampler.Reset()
	return c.render()
}

// Cursor returns the current focus.
func (c *Controller) Cursor() Cursor { return c.cur }

// Layout returns the items of page p.
func (c *Controller) Layout(p Page) Layout {
	if p < 0 || p >= pageCount {
		return nil
	}
	return c.layouts[p]
}

// Update applies one input and, while editing an output, one learn capture.
func (c *Controller) Update(in Input) Render {
	if in.Confirm {
		c.confirm()
	}
	if in.Back {
		c.back()
	}
	if in.Encoder != 0 {
		switch {
		case c.cur.Paginator:
			c.turnPage(in.Encoder)
		case c.cur.Editing:
			c.adjust(in.Encoder)
		default:
			pos := c.layouts[c.cur.Page].Move(Position{Item: c.cur.Item, Column: c.cur.Column}, in.Encoder)
			c.cur.Item, c.cur.Column = pos.Item, pos.Column
		}
	}
	if c.cur.Editing && c.cur.Page == PageOutputs {
		c.capture()
	}
	return c.render()
}

// turnPage moves the paginator. The item focus belongs to the page it was
// taken on, so a new page starts at its first item.
func (c *Controller) turnPage(delta int) {
	p := config.Clamp(c.cur.Page+Page(delta), PageOutputs, pageCount-1)
	if p != c.cur.Page {
		c.cur.Page = p
		c.cur.Item, c.cur.Column = 0, 0
	}
}

func (c *Controller) render() Render {
	return Render{Cursor: c.cur, Layout: c.layouts[c.cur.Page]}
}

func (c *Controller) confirm() {
	switch {
	case c.cur.Paginator:
		c.cur.Paginator = false
		c.cur.Item, c.cur.Column = 0, 0
		c.sampler.Reset()
	case !c.cur.Editing:
		c.cur.Editing = true
		c.sampler.Reset()
	}
}

func (c *Controller) back() {
	switch {
	case c.cur.Editing:
		c.cur.Editing = false
	case !c.cur.Paginator:
		c.cur.Paginator = true
	default:
		c.nav.Escape()
	}
}

func (c *Controller) item() (Item, bool) {
	l := c.layouts[c.cur.Page]
	if c.cur.Item < 0 || c.cur.Item >= len(l) {
		return Item{}, false
	}
	return l[c.cur.Item], true
}

// adjust steps the selected field by delta within its range and persists the
// result if it changed.
func (c *Controller) adjust(delta int) {
	it, ok := c.item()
	if !ok {
		return
	}
	changed := false
	switch it.Setting {
	case SettingChannel:
		old := c.store.MidiChannel()
		v := config.Clamp(int(old)+delta, int(c.store.MinMidiChannel()), int(c.store.MaxMidiChannel()))
		if changed = config.Channel(v) != old; changed {
			c.store.SetMidiChannel(config.Channel(v))
		}
	case SettingClock:
		old := c.store.ClockMode()
		v := config.Clamp(int(old)+delta, int(c.store.MinClockMode()), int(c.store.MaxClockMode()))
		if changed = config.ClockMode(v) != old; changed {
			c.store.SetClockMode(config.ClockMode(v))
		}
	case SettingOutput:
		idx := it.Output
		if c.cur.Column == ColumnChannel {
			old := c.store.OutChannel(idx)
			v := config.Clamp(int(old)+delta, int(c.store.MinOutChannel()), int(c.store.MaxOutChannel()))
			if changed = config.OutChannel(v) != old; changed {
				c.store.SetOutChannel(idx, config.OutChannel(v))
			}
		} else {
			old := c.store.OutType(idx)
			v := config.Clamp(int(old)+delta, int(c.store.MinOutType(idx)), int(c.store.MaxOutType(idx)))
			if changed = config.OutType(v) != old; changed {
				c.store.SetOutType(idx, config.OutType(v))
			}
		}
	case SettingEnable:
		changed = c.adjustEnable(delta)
	}
	if changed {
		c.persist()
	}
}

func (c *Controller) adjustEnable(delta int) bool {
	var (
		kind transport.Kind
		old  bool
		set  func(bool)
	)
	switch c.cur.Page {
	case PageBluetooth:
		kind, old, set = transport.BLE, c.store.BluetoothEnabled(), c.store.SetBluetoothEnabled
	case PageUSB:
		kind, old, set = transport.USB, c.store.USBEnabled(), c.store.SetUSBEnabled
	default:
		return false
	}
	cur := 0
	if old {
		cur = 1
	}
	on := config.Clamp(cur+delta, 0, 1) == 1
	if on == old {
		return false
	}
	set(on)
	c.gate.SetEnabled(kind, on)
	return true
}

// capture binds the selected output to whatever moved on its channel since the
// last tick. A pitch bend in the same tick as a controller wins.
func (c *Controller) capture() {
	it, ok := c.item()
	if !ok || it.Setting != SettingOutput {
		return
	}
	idx := it.Output

	var s learn.Sample
	switch ch := c.store.OutChannel(idx); ch {
	case config.OutChannelAll:
		s = c.sampler.ConsumeAny()
	case config.OutChannelUnchanged:
		s = c.sampler.Consume(uint8(c.store.MidiChannel()))
	default:
		s = c.sampler.Consume(uint8(ch))
	}
	if s.Empty() {
		return
	}

	old := c.store.OutType(idx)
	t := old
	if n, ok := s.CC.Get(); ok {
		t = c.learned(idx, config.CC(n), t)
	}
	if s.PitchBend.Present() {
		t = c.learned(idx, config.OutPitchBend, t)
	}
	if t == old {
		return
	}
	c.store.SetOutType(idx, t)
	c.log.WithFields(logrus.Fields{"output": idx + 1, "type": t}).Info("learned output type")
	c.persist()
}

// learned returns t if output idx can take it, otherwise fallback.
func (c *Controller) learned(idx int, t, fallback config.OutType) config.OutType {
	if t < c.store.MinOutType(idx) || t > c.store.MaxOutType(idx) {
		return fallback
	}
	return t
}

func (c *Controller) persist() {
	if err := c.store.Store(); err != nil {
		c.log.WithError(err).Warn("could not store settings")
	}
}
