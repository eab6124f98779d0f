// Package publisher delivers rendered content to channel transports.
package publisher

import (
	"context"
	"fmt"
	"sync"

	"github.com/unclebandit/omnipost-backend/internal/model"
)

// Publisher transmits one rendered message. recipient is nil for broadcast channels.
// Implementations must honour ctx cancellation; a returned error is recorded as that
// target's failure and is never retried by the caller.
type Publisher interface {
	Publish(ctx context.Context, content model.RenderedContent, metadata map[string]any, recipient *model.Recipient) error
}

// Func adapts a function to Publisher.
type Func func(ctx context.Context, content model.RenderedContent, metadata map[string]any, recipient *model.Recipient) error

func (f Func) Publish(ctx context.Context, content model.RenderedContent, metadata map[string]any, recipient *model.Recipient) error {
	return f(ctx, content, metadata, recipient)
}

// Registry maps each channel to the publisher that serves it.
type Registry struct {
	mu       sync.RWMutex
	byCh     map[model.Channel]Publisher
	fallback Publisher
}

func NewRegistry() *Registry {
	return &Registry{byCh: make(map[model.Channel]Publisher)}
}

func (r *Registry) Register(ch model.Channel, p Publisher) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byCh[ch] = p
	return r
}

// Fallback serves every channel without an explicit registration.
func (r *Registry) Fallback(p Publisher) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = p
	return r
}

func (r *Registry) For(ch model.Channel) (Publisher, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.byCh[ch]; ok {
		return p, nil
	}
	if r.fallback != nil {
		return r.fallback, nil
	}
	return nil, fmt.Errorf("no publisher configured for channel %s", ch)
}
