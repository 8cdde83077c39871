package client

import (
	"sync"
	"time"
)

// wallClockPlayer simulates playback against the wall clock. It stands in
// for a real media engine so the client can run the sync loop headless.
type wallClockPlayer struct {
	mu       sync.Mutex
	playing  bool
	basePos  float64
	baseTime time.Time
}

func newWallClockPlayer() *wallClockPlayer {
	return &wallClockPlayer{baseTime: time.Now()}
}

// position must be called with mu held.
func (p *wallClockPlayer) position() float64 {
	if !p.playing {
		return p.basePos
	}
	return p.basePos + time.Since(p.baseTime).Seconds()
}

func (p *wallClockPlayer) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playing {
		return nil
	}
	p.playing = true
	p.baseTime = time.Now()
	return nil
}

func (p *wallClockPlayer) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.playing {
		return nil
	}
	p.basePos = p.position()
	p.playing = false
	return nil
}

func (p *wallClockPlayer) SeekTo(seconds float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.basePos = seconds
	p.baseTime = time.Now()
	return nil
}

func (p *wallClockPlayer) Position() (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position(), nil
}

func (p *wallClockPlayer) Paused() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.playing, nil
}
