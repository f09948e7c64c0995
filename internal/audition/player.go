// Package audition plays the blind study clips to remote listeners and
// collects their ratings.
package audition

import (
	"context"
	"log"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/satindergrewal/segue/internal/audio"
	"github.com/satindergrewal/segue/internal/stream"
	"github.com/satindergrewal/segue/internal/study"
)

// Clip is one anonymized study file.
type Clip struct {
	Number int    // listener track number
	File   string // Track_NN.<ext>
	Path   string
}

// ClipsFromKey lists the study files in listener order.
func ClipsFromKey(dir string, key []study.Entry) []Clip {
	clips := make([]Clip, 0, len(key))
	for _, e := range key {
		clips = append(clips, Clip{Number: e.ListenerNumber, File: e.ListenerFile, Path: filepath.Join(dir, e.ListenerFile)})
	}
	slices.SortFunc(clips, func(a, b Clip) int { return a.Number - b.Number })
	return clips
}

// Status is a snapshot of playout.
type Status struct {
	Clip     Clip
	Playing  bool
	Position time.Duration
	Duration time.Duration
	Queued   int
}

// DecodeFunc turns a file into 48kHz interleaved stereo PCM.
type DecodeFunc func(ctx context.Context, path string) ([]int16, error)

type decodedClip struct {
	clip    Clip
	samples []int16
}

// Player decodes clips ahead of time and emits 20ms frames at real-time rate,
// with short ramps at clip edges and silence between clips.
type Player struct {
	clipCh  chan Clip
	frameCh chan stream.Frame
	skipCh  chan struct{}
	ramp    time.Duration
	gap     time.Duration
	decode  DecodeFunc

	closeOnce sync.Once

	mu       sync.RWMutex
	current  Clip
	playing  bool
	position time.Duration
	duration time.Duration
}

// NewPlayer creates a player with the given edge ramp and inter-clip gap.
func NewPlayer(ramp, gap time.Duration) *Player {
	return &Player{
		clipCh:  make(chan Clip, 8),
		frameCh: make(chan stream.Frame, 100),
		skipCh:  make(chan struct{}, 1),
		ramp:    ramp,
		gap:     gap,
		decode:  audio.DecodeFile,
	}
}

// Frames returns the channel of outgoing frames. It is closed when Run returns.
func (p *Player) Frames() <-chan stream.Frame {
	return p.frameCh
}

// Enqueue adds a clip to the playback queue.
func (p *Player) Enqueue(ctx context.Context, c Clip) error {
	select {
	case p.clipCh <- c:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close marks the end of the queue. Run returns after the last clip.
func (p *Player) Close() {
	p.closeOnce.Do(func() { close(p.clipCh) })
}

// QueueSize returns the number of clips waiting to be decoded.
func (p *Player) QueueSize() int {
	return len(p.clipCh)
}

// Skip interrupts the current clip.
func (p *Player) Skip() {
	select {
	case p.skipCh <- struct{}{}:
	default:
	}
}

// Status returns current playback info.
func (p *Player) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return Status{
		Clip:     p.current,
		Playing:  p.playing,
		Position: p.position,
		Duration: p.duration,
		Queued:   p.QueueSize(),
	}
}

// Run plays the queue. Blocks until the queue is closed and drained, or
// ctx is cancelled.
func (p *Player) Run(ctx context.Context) {
	defer close(p.frameCh)

	ticker := time.NewTicker(audio.FrameDuration)
	defer ticker.Stop()

	// Background decoder keeps the next clip ready.
	decodedCh := make(chan *decodedClip, 2)
	go func() {
		defer close(decodedCh)
		for {
			select {
			case <-ctx.Done():
				return
			case c, ok := <-p.clipCh:
				if !ok {
					return
				}
				samples, err := p.decode(ctx, c.Path)
				if err != nil {
					log.Printf("Decode failed %s: %v", c.Path, err)
					continue
				}
				select {
				case decodedCh <- &decodedClip{clip: c, samples: samples}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case dc, ok := <-decodedCh:
			if !ok {
				p.setIdle()
				log.Println("Audition queue finished")
				return
			}
			if !p.playClip(ctx, ticker, dc) && ctx.Err() != nil {
				return
			}
			if !p.playGap(ctx, ticker) {
				return
			}
		}
	}
}

// playClip returns false if the clip was cut short.
func (p *Player) playClip(ctx context.Context, ticker *time.Ticker, dc *decodedClip) bool {
	samples := dc.samples
	ApplyEdgeRamps(samples, audio.Samples(p.ramp, audio.SampleRate))

	total := (len(samples) + audio.FrameSamples - 1) / audio.FrameSamples
	p.setClip(dc.clip, total)
	log.Printf("Now playing: %s (frames: %d)", dc.clip.File, total)

	for i := range total {
		start := i * audio.FrameSamples
		var pcm []int16
		if start+audio.FrameSamples <= len(samples) {
			pcm = samples[start : start+audio.FrameSamples]
		} else {
			pcm = make([]int16, audio.FrameSamples)
			copy(pcm, samples[start:])
		}
		if !p.sendFrame(ctx, ticker, stream.Frame{Clip: dc.clip.Number, PCM: pcm}, true) {
			return false
		}
		p.updatePosition(i + 1)
	}
	return true
}

func (p *Player) playGap(ctx context.Context, ticker *time.Ticker) bool {
	p.setIdle()
	n := int(p.gap / audio.FrameDuration)
	if n == 0 {
		return true
	}
	silence := make([]int16, audio.FrameSamples)
	for range n {
		if !p.sendFrame(ctx, ticker, stream.Frame{PCM: silence}, false) {
			return ctx.Err() == nil
		}
	}
	return true
}

// sendFrame waits for the ticker then sends a frame. Returns false on skip or cancel.
func (p *Player) sendFrame(ctx context.Context, ticker *time.Ticker, frame stream.Frame, skippable bool) bool {
	skipCh := p.skipCh
	if !skippable {
		skipCh = nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-skipCh:
		log.Println("Clip skipped")
		return false
	case <-ticker.C:
	}

	select {
	case p.frameCh <- frame:
		return true
	case <-ctx.Done():
		return false
	}
}

func (p *Player) setClip(c Clip, totalFrames int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = c
	p.playing = true
	p.position = 0
	p.duration = time.Duration(totalFrames) * audio.FrameDuration
}

func (p *Player) setIdle() {
	p.mu.Lock()
	p.playing = false
	p.mu.Unlock()
}

func (p *Player) updatePosition(frames int) {
	p.mu.Lock()
	p.position = time.Duration(frames) * audio.FrameDuration
	p.mu.Unlock()
}
