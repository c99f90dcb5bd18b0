package memory

import (
	"context"
	"sync"
)

// CodeReservations tracks room codes held by this process.
type CodeReservations struct {
	mu    sync.Mutex
	codes map[string]struct{}
}

func NewCodeReservations() *CodeReservations {
	return &CodeReservations{codes: make(map[string]struct{})}
}

func (c *CodeReservations) Reserve(_ context.Context, code string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, taken := c.codes[code]; taken {
		return false, nil
	}
	c.codes[code] = struct{}{}
	return true, nil
}

func (c *CodeReservations) Refresh(context.Context, string) error {
	return nil
}

func (c *CodeReservations) Release(_ context.Context, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.codes, code)
	return nil
}

// Held reports whether code is reserved.
func (c *CodeReservations) Held(code string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.codes[code]
	return ok
}
