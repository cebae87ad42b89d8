package video

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Action is what the video pipeline does with a decoded frame.
type Action int

const (
	ActionRender Action = iota // Convert and publish now
	ActionSleep                // Video is ahead: wait, then render
	ActionDrop                 // Video is behind: skip without converting
)

// String returns human-readable action name
func (a Action) String() string {
	switch a {
	case ActionRender:
		return "render"
	case ActionSleep:
		return "sleep"
	case ActionDrop:
		return "drop"
	default:
		return "unknown"
	}
}

// Thresholds tune the pacing table. They are empirical and configurable.
type Thresholds struct {
	SleepMin      time.Duration // Ahead by more than this: sleep
	SleepMax      time.Duration // Ahead by this much or more: render immediately
	DropBelow     time.Duration // Behind by more than this (negative): drop
	Discontinuity time.Duration // |diff| above this is a timestamp jump: render immediately
}

// DefaultThresholds returns the stock pacing table.
func DefaultThresholds() Thresholds {
	return Thresholds{
		SleepMin:      10 * time.Millisecond,
		SleepMax:      500 * time.Millisecond,
		DropBelow:     -50 * time.Millisecond,
		Discontinuity: time.Second,
	}
}

// Decision contains the pacing decision and reasoning
type Decision struct {
	Action Action
	Sleep  time.Duration // Only for ActionSleep
	Diff   time.Duration // pts - clock
	Reason string
}

// Pacer decides render/sleep/drop for each frame against the clock. It also
// tracks whether video is persistently lagging, with hysteresis so a single
// late frame does not flip the state.
type Pacer struct {
	th Thresholds

	frames          uint64
	rendered        uint64
	slept           uint64
	dropped         uint64
	discontinuities uint64

	consecutiveDrops  int
	consecutiveOnTime int
	lagging           bool

	enterLagAfter int // Consecutive drops before reporting lag
	exitLagAfter  int // Consecutive on-time frames before clearing it

	log zerolog.Logger
	mu  sync.RWMutex
}

// NewPacer creates a pacer with the given thresholds
func NewPacer(th Thresholds, log zerolog.Logger) *Pacer {
	return &Pacer{
		th:            th,
		enterLagAfter: 5,
		exitLagAfter:  25,
		log:           log,
	}
}

// Decide applies the pacing table to a frame presented at pts when the clock
// reads now.
func (p *Pacer) Decide(pts, now time.Duration) Decision {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.frames++
	d := decide(p.th, pts-now)

	switch d.Action {
	case ActionRender:
		p.rendered++
	case ActionSleep:
		p.slept++
	case ActionDrop:
		p.dropped++
	}
	if d.Reason == "discontinuity" {
		p.discontinuities++
	}
	p.trackLagLocked(d)
	return d
}

func decide(th Thresholds, diff time.Duration) Decision {
	mag := diff
	if mag < 0 {
		mag = -mag
	}

	switch {
	case mag > th.Discontinuity:
		return Decision{Action: ActionRender, Diff: diff, Reason: "discontinuity"}
	case diff > th.SleepMin && diff < th.SleepMax:
		return Decision{Action: ActionSleep, Sleep: diff, Diff: diff, Reason: "ahead"}
	case diff < th.DropBelow:
		return Decision{Action: ActionDrop, Diff: diff, Reason: "behind"}
	default:
		return Decision{Action: ActionRender, Diff: diff, Reason: "on_time"}
	}
}

// trackLagLocked must be called with p.mu held
func (p *Pacer) trackLagLocked(d Decision) {
	if d.Action == ActionDrop {
		p.consecutiveDrops++
		p.consecutiveOnTime = 0
	} else {
		p.consecutiveOnTime++
		p.consecutiveDrops = 0
	}

	if !p.lagging && p.consecutiveDrops >= p.enterLagAfter {
		p.lagging = true
		p.log.Warn().Dur("diff", d.Diff).Int("drops", p.consecutiveDrops).
			Msg("Pacer: video falling behind audio, dropping frames")
	} else if p.lagging && p.consecutiveOnTime >= p.exitLagAfter {
		p.lagging = false
		p.log.Info().Msg("Pacer: video caught up with audio")
	}
}

// Reset clears the lag state. Call this after a seek.
func (p *Pacer) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.consecutiveDrops = 0
	p.consecutiveOnTime = 0
	p.lagging = false
}

// SetThresholds allows customizing the pacing table
func (p *Pacer) SetThresholds(th Thresholds) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.th = th
	p.log.Debug().Dur("sleep_min", th.SleepMin).Dur("sleep_max", th.SleepMax).
		Dur("drop_below", th.DropBelow).Dur("discontinuity", th.Discontinuity).
		Msg("Pacer: thresholds updated")
}

// Thresholds returns the active pacing table
func (p *Pacer) Thresholds() Thresholds {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.th
}

// PacerStats contains counters since the pacer was created
type PacerStats struct {
	Frames          uint64
	Rendered        uint64
	Slept           uint64
	Dropped         uint64
	Discontinuities uint64
	Lagging         bool
}

// Stats returns current pacer statistics
func (p *Pacer) Stats() PacerStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return PacerStats{
		Frames:          p.frames,
		Rendered:        p.rendered,
		Slept:           p.slept,
		Dropped:         p.dropped,
		Discontinuities: p.discontinuities,
		Lagging:         p.lagging,
	}
}
