package notifier

import "fmt"

// BeforeNotify inspects an event before delivery. Returning false drops the
// event. Filters run on the goroutine that called Notify and may be invoked
// concurrently.
type BeforeNotify interface {
	Run(e *Event) bool
}

// BeforeNotifyFunc adapts a function to BeforeNotify.
type BeforeNotifyFunc func(e *Event) bool

func (f BeforeNotifyFunc) Run(e *Event) bool {
	return f(e)
}

// runBeforeNotify runs the chain in registration order and stops at the first veto.
func (c *Client) runBeforeNotify(e *Event) bool {
	c.mu.RLock()
	chain := c.beforeNotify
	c.mu.RUnlock()

	for i, f := range chain {
		if !c.runFilter(i, f, e) {
			return false
		}
	}
	return true
}

// runFilter treats a panicking filter as if it had returned true.
func (c *Client) runFilter(index int, f BeforeNotify, e *Event) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			c.log.With("filter_index", index, "panic", fmt.Sprintf("%v", r)).
				Warn("[notifier]: before notify filter panicked, continuing")
			ok = true
		}
	}()
	return f.Run(e)
}
