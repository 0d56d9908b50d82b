package client

import (
	"sync"
	"time"
)

// SimPlayer is a drift.Player without media. Its position advances with the clock while
// playing, scaled by rate to simulate a player that runs fast or slow.
type SimPlayer struct {
	mu       sync.Mutex
	now      func() time.Time
	rate     float64
	duration float64
	position float64
	playing  bool
	since    time.Time
}

type SimPlayerOption func(*SimPlayer)

func WithPlayerClock(now func() time.Time) SimPlayerOption {
	return func(p *SimPlayer) {
		p.now = now
	}
}

func WithRate(rate float64) SimPlayerOption {
	return func(p *SimPlayer) {
		p.rate = rate
	}
}

// NewSimPlayer returns a paused player at 0. A duration of 0 means unknown.
func NewSimPlayer(duration float64, opts ...SimPlayerOption) *SimPlayer {
	p := &SimPlayer{
		now:      time.Now,
		rate:     1,
		duration: duration,
	}
	for _, opt := range opts {
		opt(p)
	}

	return p
}

func (p *SimPlayer) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.playing {
		p.playing = true
		p.since = p.now()
	}

	return nil
}

func (p *SimPlayer) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.playing {
		p.position = p.current()
		p.playing = false
	}

	return nil
}

func (p *SimPlayer) Seek(position float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.position = p.clamp(position)
	p.since = p.now()

	return nil
}

func (p *SimPlayer) CurrentTime() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.current()
}

func (p *SimPlayer) Duration() float64 {
	return p.duration
}

func (p *SimPlayer) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return !p.playing
}

func (p *SimPlayer) current() float64 {
	if !p.playing {
		return p.position
	}

	return p.clamp(p.position + p.now().Sub(p.since).Seconds()*p.rate)
}

func (p *SimPlayer) clamp(pos float64) float64 {
	if pos < 0 {
		return 0
	}
	if p.duration > 0 && pos > p.duration {
		return p.duration
	}

	return pos
}
