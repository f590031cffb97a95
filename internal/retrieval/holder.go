package retrieval

import (
	"context"
	"sync/atomic"
)

// Holder publishes the current engine. Reloads build a new engine and Swap
// it in; in-flight searches keep the engine they started with.
type Holder struct {
	engine atomic.Pointer[Engine]
}

// NewHolder creates a holder serving e
func NewHolder(e *Engine) *Holder {
	h := &Holder{}
	h.engine.Store(e)
	return h
}

// Load returns the current engine
func (h *Holder) Load() *Engine {
	return h.engine.Load()
}

// Swap installs e and returns the previous engine
func (h *Holder) Swap(e *Engine) *Engine {
	return h.engine.Swap(e)
}

// Search runs q on the current engine
func (h *Holder) Search(ctx context.Context, q Query) (*Response, error) {
	return h.engine.Load().Search(ctx, q)
}
