package platform

import (
	"context"
	"errors"
	"sync"
)

// Context is the application context shared by integrations.
//
// It replaces a global registry: integrations keep their runtime data in a
// per-domain slot and register teardown callbacks that Close runs in
// reverse order.
type Context struct {
	Host *Host

	mu      sync.Mutex
	data    map[string]any
	closers []closer
	closed  bool
}

type closer struct {
	name string
	fn   func(ctx context.Context) error
}

// NewContext creates an application context around host.
func NewContext(host *Host) *Context {
	return &Context{
		Host: host,
		data: make(map[string]any),
	}
}

// Data returns the value stored for domain.
func (c *Context) Data(domain string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[domain]
	return v, ok
}

// SetData stores v for domain, replacing any previous value.
func (c *Context) SetData(domain string, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[domain] = v
}

// DeleteData clears the slot for domain.
func (c *Context) DeleteData(domain string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, domain)
}

// OnClose registers fn to run when the context closes.
// Callbacks run last-registered first.
func (c *Context) OnClose(name string, fn func(ctx context.Context) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrContextClosed
	}
	c.closers = append(c.closers, closer{name: name, fn: fn})
	return nil
}

// Close runs every teardown callback, then detaches all entities.
// Errors are joined; later callbacks still run after a failure.
// Calling Close again is a no-op.
func (c *Context) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	closers := c.closers
	c.closers = nil
	c.mu.Unlock()

	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].fn(ctx); err != nil {
			errs = append(errs, errors.New(closers[i].name+": "+err.Error()))
		}
	}

	if c.Host != nil {
		if err := c.Host.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
