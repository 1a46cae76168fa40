// Package view defines the contract between the filtering pipeline and
// whatever displays it: a Port receives render calls, an Input supplies the
// current value of a control and its change events.
package view

import "sync"

// Row is one rendered transaction.
type Row struct {
	Date      string // e.g. "May 10"
	BreakDown string // e.g. "2 x 10.00 ="
	Amount    string // e.g. "-20.00 ISK"
	Class     string // transaction type, used as style class
}

// Port receives render calls from the pipeline. Calls arrive synchronously
// with the pipeline emission that caused them.
type Port interface {
	// SetFieldState shows message next to the field; an empty message marks
	// the field valid.
	SetFieldState(field, message string)
	// SetFormErrors replaces the list of cross-field errors.
	SetFormErrors(lines []string)
	// ReplaceTransactions clears the results region and rebuilds it.
	ReplaceTransactions(summary string, rows []Row)
	// SetTotal updates the total label.
	SetTotal(label string)
	// ShowBanner displays a page-level failure, e.g. a dataset load error.
	ShowBanner(message string)
}

// Input is a form control.
type Input interface {
	// Value is the control's current value.
	Value() string
	// OnChange registers fn for every later change and returns a cancel func.
	OnChange(fn func(string)) (cancel func())
}

// Control is an in-memory Input. Set simulates a change event.
type Control struct {
	mu       sync.Mutex
	value    string
	handlers map[int]func(string)
	next     int
}

// NewControl returns a control holding value.
func NewControl(value string) *Control {
	return &Control{value: value, handlers: map[int]func(string){}}
}

func (c *Control) Value() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

func (c *Control) OnChange(fn func(string)) func() {
	c.mu.Lock()
	id := c.next
	c.next++
	c.handlers[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.handlers, id)
		c.mu.Unlock()
	}
}

// Set updates the value and fires change handlers in registration order.
func (c *Control) Set(value string) {
	c.mu.Lock()
	c.value = value
	fns := make([]func(string), 0, len(c.handlers))
	for id := 0; id < c.next; id++ {
		if fn, ok := c.handlers[id]; ok {
			fns = append(fns, fn)
		}
	}
	c.mu.Unlock()
	for _, fn := range fns {
		fn(value)
	}
}
