package chat

import (
	"context"
	"sync"
)

// gates hands out one serialization point per room. Sends to the same room
// pass through it one at a time; sends to different rooms never contend
// beyond the brief map lookup.
type gates struct {
	mu    sync.Mutex
	rooms map[string]*gate
}

type gate struct {
	slot chan struct{}
	refs int
}

func newGates() *gates {
	return &gates{rooms: make(map[string]*gate)}
}

// enter blocks until the caller holds room's gate or ctx is done. On success
// the returned func must be called to leave the gate.
func (g *gates) enter(ctx context.Context, room string) (func(), error) {
	g.mu.Lock()
	gt, ok := g.rooms[room]
	if !ok {
		gt = &gate{slot: make(chan struct{}, 1)}
		g.rooms[room] = gt
	}
	gt.refs++
	g.mu.Unlock()

	select {
	case gt.slot <- struct{}{}:
		return func() {
			<-gt.slot
			g.release(room, gt)
		}, nil
	case <-ctx.Done():
		g.release(room, gt)
		return nil, ctx.Err()
	}
}

func (g *gates) release(room string, gt *gate) {
	g.mu.Lock()
	gt.refs--
	if gt.refs == 0 {
		delete(g.rooms, room)
	}
	g.mu.Unlock()
}

func (g *gates) len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.rooms)
}
