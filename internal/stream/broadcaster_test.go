package stream

import (
	"context"
	"testing"
	"time"
)

func clipFrames(clips ...int) []Frame {
	frames := make([]Frame, len(clips))
	for i, c := range clips {
		frames[i] = Frame{Clip: c, PCM: []int16{int16(i), int16(-i)}}
	}
	return frames
}

func recv(t *testing.T, l *Listener) Frame {
	t.Helper()
	select {
	case f := <-l.C:
		return f
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for frame")
		return Frame{}
	}
}

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroadcaster()
	l1 := b.Subscribe("a")
	l2 := b.Subscribe("")
	if b.ListenerCount() != 2 {
		t.Errorf("ListenerCount = %d, want 2", b.ListenerCount())
	}
	b.Unsubscribe(l1)
	b.Unsubscribe(l2)
	if b.ListenerCount() != 0 {
		t.Errorf("ListenerCount = %d, want 0", b.ListenerCount())
	}
	select {
	case <-l1.Done():
	default:
		t.Error("done channel not closed after unsubscribe")
	}
}

func TestTakeMarksClipBoundaries(t *testing.T) {
	tests := []struct {
		name  string
		clips []int
		want  []bool
		last  int
	}{
		{"single clip", []int{1, 1, 1}, []bool{true, false, false}, 1},
		{"gap keeps last clip", []int{1, 0, 0}, []bool{true, false, false}, 1},
		{"next clip after gap", []int{1, 1, 0, 2, 2}, []bool{true, false, false, true, false}, 2},
		{"skip straight into next clip", []int{3, 4}, []bool{true, true}, 4},
		{"joined mid gap", []int{0, 0, 5}, []bool{false, false, true}, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBroadcaster()
			l := b.Subscribe("anna")
			defer b.Unsubscribe(l)
			for i, f := range clipFrames(tt.clips...) {
				if got := l.Take(f); got != tt.want[i] {
					t.Errorf("frame %d (clip %d): Take = %v, want %v", i, f.Clip, got, tt.want[i])
				}
			}
			if l.Clip() != tt.last {
				t.Errorf("Clip() = %d, want %d", l.Clip(), tt.last)
			}
			if heard, _ := b.Heard("anna"); heard != tt.last {
				t.Errorf("Heard = %d, want %d", heard, tt.last)
			}
		})
	}
}

func TestHeardOutlivesListener(t *testing.T) {
	b := NewBroadcaster()
	if _, ok := b.Heard("anna"); ok {
		t.Fatal("unknown listener reported as heard")
	}

	l := b.Subscribe("anna")
	l.Take(Frame{Clip: 7})
	b.Unsubscribe(l)

	if clip, ok := b.Heard("anna"); !ok || clip != 7 {
		t.Errorf("Heard after disconnect = %d, %v; want 7, true", clip, ok)
	}

	// Reconnecting starts from scratch but keeps the record until a clip plays.
	l = b.Subscribe("anna")
	defer b.Unsubscribe(l)
	l.Take(Frame{Clip: 0})
	if clip, _ := b.Heard("anna"); clip != 7 {
		t.Errorf("gap frame overwrote heard clip: %d", clip)
	}
	if !l.Take(Frame{Clip: 7}) {
		t.Error("first frame of a reconnect should open the clip")
	}
}

func TestAnonymousListenerNotRecorded(t *testing.T) {
	b := NewBroadcaster()
	l := b.Subscribe("")
	defer b.Unsubscribe(l)
	if !l.Take(Frame{Clip: 2}) {
		t.Fatal("Take = false on first clip frame")
	}
	if _, ok := b.Heard(""); ok {
		t.Error("anonymous listener recorded")
	}
}

func TestListenersTrackClipsIndependently(t *testing.T) {
	b := NewBroadcaster()
	early := b.Subscribe("early")
	defer b.Unsubscribe(early)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	source := make(chan Frame, 10)
	go b.Run(ctx, source)

	frames := clipFrames(1, 1, 0, 2)
	for _, f := range frames[:3] {
		source <- f
	}
	for range 3 {
		early.Take(recv(t, early))
	}

	late := b.Subscribe("late")
	defer b.Unsubscribe(late)
	source <- frames[3]

	if !late.Take(recv(t, late)) || !early.Take(recv(t, early)) {
		t.Error("clip 2 should open for both listeners")
	}
	for _, id := range []string{"early", "late"} {
		if clip, _ := b.Heard(id); clip != 2 {
			t.Errorf("Heard(%s) = %d, want 2", id, clip)
		}
	}
	if b.Clip() != 2 {
		t.Errorf("Clip() = %d, want 2", b.Clip())
	}
}

func TestBroadcastFansOutFrames(t *testing.T) {
	b := NewBroadcaster()
	listeners := make([]*Listener, 5)
	for i := range listeners {
		listeners[i] = b.Subscribe("")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	source := make(chan Frame, 10)
	go b.Run(ctx, source)

	source <- Frame{Clip: 3, PCM: []int16{42, -42}}

	for i, l := range listeners {
		got := recv(t, l)
		if got.Clip != 3 || len(got.PCM) != 2 || got.PCM[0] != 42 || got.PCM[1] != -42 {
			t.Errorf("listener %d got %+v", i, got)
		}
		b.Unsubscribe(l)
	}
}

func TestBroadcastDropsSlowListener(t *testing.T) {
	b := NewBroadcaster()
	slow := b.Subscribe("slow")
	defer b.Unsubscribe(slow)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	source := make(chan Frame, 200)
	go b.Run(ctx, source)

	for i := range 200 {
		source <- Frame{Clip: 1 + i/100, PCM: []int16{int16(i)}}
	}

	deadline := time.Now().Add(2 * time.Second)
	for b.FramesSent() < 200 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if b.FramesSent() != 200 {
		t.Fatalf("FramesSent = %d, want 200", b.FramesSent())
	}
	if len(slow.C) != cap(slow.C) {
		t.Errorf("slow listener buffered %d frames, want full buffer %d", len(slow.C), cap(slow.C))
	}

	// Frames 150..199 were dropped; clip 2 still opens from the buffered 100..149.
	boundaries := 0
	for len(slow.C) > 0 {
		if slow.Take(<-slow.C) {
			boundaries++
		}
	}
	if boundaries != 2 || slow.Clip() != 2 {
		t.Errorf("boundaries = %d, clip = %d; want 2, 2", boundaries, slow.Clip())
	}
}

func TestBroadcastStops(t *testing.T) {
	tests := []struct {
		name string
		stop func(cancel context.CancelFunc, source chan Frame)
	}{
		{"context cancel", func(cancel context.CancelFunc, _ chan Frame) { cancel() }},
		{"source close", func(_ context.CancelFunc, source chan Frame) { close(source) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBroadcaster()
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			source := make(chan Frame, 10)

			done := make(chan struct{})
			go func() {
				b.Run(ctx, source)
				close(done)
			}()
			tt.stop(cancel, source)

			select {
			case <-done:
			case <-time.After(2 * time.Second):
				t.Fatal("broadcaster did not stop")
			}
		})
	}
}
