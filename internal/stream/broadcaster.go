// Package stream fans audition playout out to HTTP and WebRTC listeners.
package stream

import (
	"context"
	"fmt"
	"sync"
)

// Frame is 20ms of interleaved 48kHz stereo PCM tagged with the listener
// number of the clip it belongs to. Clip is zero during gaps.
type Frame struct {
	Clip int
	PCM  []int16
}

// ClipTitle is the name listeners see for a clip, matching the study file
// names. Gaps have no title.
func ClipTitle(clip int) string {
	if clip <= 0 {
		return ""
	}
	return fmt.Sprintf("Track %02d", clip)
}

// Broadcaster fans frames from one playout loop out to N listeners and
// remembers which clip each listener last heard.
type Broadcaster struct {
	mu        sync.RWMutex
	listeners map[*Listener]struct{}
	heard     map[string]int
	frames    uint64
	clip      int
}

// Listener receives frames from the broadcaster. Its clip bookkeeping
// belongs to the single goroutine draining C.
type Listener struct {
	ID   string
	C    chan Frame // ~3 seconds of buffer
	done chan struct{}
	b    *Broadcaster
	clip int
}

// NewBroadcaster creates a new broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		listeners: make(map[*Listener]struct{}),
		heard:     make(map[string]int),
	}
}

// Subscribe registers a listener. id keys the heard-clip record and may be
// empty for anonymous listeners.
func (b *Broadcaster) Subscribe(id string) *Listener {
	l := &Listener{
		ID:   id,
		C:    make(chan Frame, 150),
		done: make(chan struct{}),
		b:    b,
	}
	b.mu.Lock()
	b.listeners[l] = struct{}{}
	b.mu.Unlock()
	return l
}

// Unsubscribe removes a listener and signals it to stop. What it heard is kept.
func (b *Broadcaster) Unsubscribe(l *Listener) {
	b.mu.Lock()
	delete(b.listeners, l)
	b.mu.Unlock()
	close(l.done)
}

// Done is closed once the listener is unsubscribed.
func (l *Listener) Done() <-chan struct{} { return l.done }

// Take marks f as played to the listener and reports whether it opens a
// clip the listener was not already hearing. Gap frames never do.
func (l *Listener) Take(f Frame) bool {
	if f.Clip == 0 || f.Clip == l.clip {
		return false
	}
	l.clip = f.Clip
	if l.ID != "" {
		l.b.mu.Lock()
		l.b.heard[l.ID] = f.Clip
		l.b.mu.Unlock()
	}
	return true
}

// Clip is the clip the listener is hearing, or heard last during a gap.
func (l *Listener) Clip() int { return l.clip }

// Heard returns the last clip played to listener id, connected or not.
func (b *Broadcaster) Heard(id string) (int, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	clip, ok := b.heard[id]
	return clip, ok
}

// ListenerCount returns the number of active listeners.
func (b *Broadcaster) ListenerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// FramesSent returns how many frames have been broadcast.
func (b *Broadcaster) FramesSent() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.frames
}

// Clip returns the clip of the last frame broadcast, zero in a gap.
func (b *Broadcaster) Clip() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.clip
}

// Run reads frames from source and fans out to all listeners.
// Slow listeners get frames dropped rather than blocking the broadcast.
func (b *Broadcaster) Run(ctx context.Context, source <-chan Frame) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-source:
			if !ok {
				return
			}
			b.mu.Lock()
			b.frames++
			b.clip = frame.Clip
			for l := range b.listeners {
				select {
				case l.C <- frame:
				default:
				}
			}
			b.mu.Unlock()
		}
	}
}
