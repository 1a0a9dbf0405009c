// Package menu is the settings screen state machine: a paginator over the
// Outputs, Bluetooth and USB pages, a cursor over each page's items, live
// value editing and MIDI learn.
package menu

import "fmt"

// Page is one screen of settings.
type Page int

const (
	PageOutputs Page = iota
	PageBluetooth
	PageUSB
	pageCount
)

var pageNames = [pageCount]string{"Outputs", "Bluetooth", "Usb"}

func (p Page) String() string {
	if p < 0 || p >= pageCount {
		return "?"
	}
	return pageNames[p]
}

// Pages lists every page in paginator order.
func Pages() []Page {
	return []Page{PageOutputs, PageBluetooth, PageUSB}
}

// Columns is the number of editable fields in a row.
type Columns int

const (
	SingleColumn Columns = 1
	DualColumn   Columns = 2
)

// Setting is the store field an item edits.
type Setting int

const (
	SettingChannel Setting = iota
	SettingClock
	SettingOutput
	SettingEnable
)

// Output columns.
const (
	ColumnType    = 0
	ColumnChannel = 1
)

// Item is one row of a page.
type Item struct {
	Label   string
	Columns Columns
	Setting Setting
	// Output is the output index for SettingOutput rows.
	Output int
}

// Layout is the ordered, immutable list of a page's items.
type Layout []Item

// OutputsLayout is the Outputs page: base channel, clock mode and one
// dual-column row per output.
func OutputsLayout(outputs int) Layout {
	l := Layout{
		{Label: "Channel", Columns: SingleColumn, Setting: SettingChannel},
		{Label: "Clock", Columns: SingleColumn, Setting: SettingClock},
	}
	for i := 0; i < outputs; i++ {
		l = append(l, Item{
			Label:   fmt.Sprintf("Out %d", i+1),
			Columns: DualColumn,
			Setting: SettingOutput,
			Output:  i,
		})
	}
	return l
}

// EnableLayout is a transport page.
func EnableLayout() Layout {
	return Layout{{Label: "Enable", Columns: SingleColumn, Setting: SettingEnable}}
}

// columns returns the column count of item i, or 0 outside the layout.
func (l Layout) columns(i int) int {
	if i < 0 || i >= len(l) {
		return 0
	}
	return int(l[i].Columns)
}

// Position is an (item, column) cursor within a layout.
type Position struct {
	Item   int
	Column int
}

// Step moves pos one field forward (dir > 0) or backward (dir < 0). Rows are
// walked column by column; a single-column row is one field. At either end of
// the layout the position holds.
func (l Layout) Step(pos Position, dir int) Position {
	if dir == 0 || len(l) == 0 {
		return pos
	}
	cols := l.columns(pos.Item)
	if cols <= 1 {
		next := pos.Item + sign(dir)
		if next < 0 || next >= len(l) {
			return pos
		}
		return Position{Item: next}
	}

	col := pos.Column + sign(dir)
	switch {
	case col < 0:
		if pos.Item == 0 {
			return Position{Item: 0}
		}
		prev := pos.Item - 1
		return Position{Item: prev, Column: l.columns(prev) - 1}
	case col >= cols:
		if pos.Item == len(l)-1 {
			return Position{Item: pos.Item, Column: cols - 1}
		}
		return Position{Item: pos.Item + 1}
	}
	return Position{Item: pos.Item, Column: col}
}

// Move applies |delta| steps in the direction of delta.
func (l Layout) Move(pos Position, delta int) Position {
	n := delta
	if n < 0 {
		n = -n
	}
	for i := 0; i < n; i++ {
		next := l.Step(pos, delta)
		if next == pos {
			break
		}
		pos = next
	}
	return pos
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
