package worker

import (
	"context"
	"sync"
)

// Group runs background loops under one cancellable context. Stop cancels the
// context and blocks until every loop has returned, so callers can close
// shared resources afterwards.
type Group struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewGroup(parent context.Context) *Group {
	ctx, cancel := context.WithCancel(parent)
	return &Group{ctx: ctx, cancel: cancel}
}

// Context is cancelled by Stop or when the parent is done.
func (g *Group) Context() context.Context {
	return g.ctx
}

func (g *Group) Go(loop func(context.Context)) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		loop(g.ctx)
	}()
}

func (g *Group) Stop() {
	g.cancel()
	g.wg.Wait()
}
