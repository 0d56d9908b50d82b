// Package drift reconciles a guest's local player with the authoritative playback state.
package drift

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/sharetube/syncroom/internal/playback"
)

// Player is the local seekable media player.
type Player interface {
	Play() error
	Pause() error
	Seek(position float64) error
	CurrentTime() float64
	Duration() float64
	Paused() bool
}

type Config struct {
	// CorrectionThreshold is the drift above which the local player is seeked.
	CorrectionThreshold time.Duration
	// BehindThreshold is the drift above which the guest is reported as behind live.
	BehindThreshold time.Duration
}

func DefaultConfig() Config {
	return Config{
		CorrectionThreshold: 3 * time.Second,
		BehindThreshold:     6 * time.Second,
	}
}

type Result struct {
	Projected float64
	// Drift is measured before any correction.
	Drift     float64
	Corrected bool
	Behind    bool
	// Blocked is set while the host is paused: the guest sees a blocking overlay.
	Blocked bool
}

type Option func(*Corrector)

func WithClock(now func() time.Time) Option {
	return func(c *Corrector) {
		c.now = now
	}
}

type Corrector struct {
	mu     sync.Mutex
	cfg    Config
	player Player
	now    func() time.Time
	state  playback.State
	// receivedAt is the local receipt time of the last accepted state. The server timestamp is
	// not used for projection because guest and server clocks are not synchronized.
	receivedAt time.Time
	has        bool
}

func New(player Player, cfg Config, opts ...Option) *Corrector {
	def := DefaultConfig()
	if cfg.CorrectionThreshold <= 0 {
		cfg.CorrectionThreshold = def.CorrectionThreshold
	}
	if cfg.BehindThreshold <= 0 {
		cfg.BehindThreshold = def.BehindThreshold
	}

	c := &Corrector{
		cfg:    cfg,
		player: player,
		now:    time.Now,
		state:  playback.Initial(),
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// State returns the last accepted authoritative state.
func (c *Corrector) State() playback.State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// Reset forgets the held state so the next broadcast is accepted whatever its sequence.
// Used after a rejoin, when the room may have been recreated.
func (c *Corrector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = playback.Initial()
	c.has = false
}

// Record accepts an authoritative broadcast without touching the player, for a host whose
// player is the source of the state. Stale broadcasts return playback.ErrStaleEvent.
func (c *Corrector) Record(s playback.State) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.accept(s)
	return err
}

func (c *Corrector) accept(s playback.State) (playback.State, error) {
	if c.has {
		next, err := c.state.Accept(s)
		if err != nil {
			return playback.State{}, err
		}
		s = next
	}

	c.state = s
	c.has = true
	c.receivedAt = c.now()

	return s, nil
}

// Apply records an authoritative broadcast and aligns the local player with it.
// Stale broadcasts return playback.ErrStaleEvent and leave the player untouched.
func (c *Corrector) Apply(s playback.State) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.accept(s)
	if err != nil {
		return Result{}, err
	}

	if s.Status == playback.StatusPlaying && c.player.Paused() {
		if err := c.player.Play(); err != nil {
			return Result{}, fmt.Errorf("failed to play: %w", err)
		}
	}
	if s.Status != playback.StatusPlaying && !c.player.Paused() {
		if err := c.player.Pause(); err != nil {
			return Result{}, fmt.Errorf("failed to pause: %w", err)
		}
	}

	// Non-playing states are matched exactly.
	return c.reconcile(s.Status != playback.StatusPlaying)
}

// Tick recomputes drift against the last accepted state and corrects it when needed.
// It never resumes a locally paused player.
func (c *Corrector) Tick() (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.has {
		return Result{}, nil
	}

	if err := c.guard(); err != nil {
		return Result{}, err
	}

	return c.reconcile(false)
}

// GuardPlay must be called when the local player starts playing on its own.
// It pauses the player again and returns true if the host is not playing.
func (c *Corrector) GuardPlay() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.has || c.state.Status == playback.StatusPlaying || c.player.Paused() {
		return false, nil
	}

	return true, c.guard()
}

func (c *Corrector) guard() error {
	if c.state.Status != playback.StatusPlaying && !c.player.Paused() {
		if err := c.player.Pause(); err != nil {
			return fmt.Errorf("failed to pause: %w", err)
		}
	}

	return nil
}

func (c *Corrector) projected() float64 {
	s := c.state
	pos := s.Position
	if s.Status == playback.StatusPlaying {
		pos += c.now().Sub(c.receivedAt).Seconds()
	}

	if pos < 0 {
		pos = 0
	}
	if d := c.player.Duration(); d > 0 && pos > d {
		pos = d
	}

	return pos
}

// reconcile seeks to the projected position when drift exceeds the correction threshold,
// or whenever it is non-zero if exact is set.
func (c *Corrector) reconcile(exact bool) (Result, error) {
	res := Result{
		Projected: c.projected(),
		Blocked:   c.state.Media != nil && c.state.Status == playback.StatusPaused,
	}
	res.Drift = math.Abs(c.player.CurrentTime() - res.Projected)
	res.Behind = res.Drift > c.cfg.BehindThreshold.Seconds()

	if res.Drift > c.cfg.CorrectionThreshold.Seconds() || (exact && res.Drift > 0) {
		if err := c.player.Seek(res.Projected); err != nil {
			return res, fmt.Errorf("failed to seek: %w", err)
		}
		res.Corrected = true
	}

	return res, nil
}
