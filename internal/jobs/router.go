package jobs

import (
	"context"
	"fmt"
	"sync"
)

// Router dispatches jobs to the handler registered for their type.
type Router struct {
	mu       sync.RWMutex
	handlers map[JobType]JobHandler
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{handlers: make(map[JobType]JobHandler)}
}

// Register binds h to t, replacing any previous handler.
func (r *Router) Register(t JobType, h JobHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[t] = h
}

// Supports reports whether a handler is registered for t.
func (r *Router) Supports(t JobType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[t]
	return ok
}

// Handle implements JobHandler.
func (r *Router) Handle(ctx context.Context, job *Job) (string, error) {
	r.mu.RLock()
	h, ok := r.handlers[job.Type]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("no handler registered for job type %q", job.Type)
	}
	return h(ctx, job)
}
