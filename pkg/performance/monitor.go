package performance

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// RollingAverage maintains a rolling average of durations over a fixed window
type RollingAverage struct {
	samples []time.Duration
	sum     time.Duration
	index   int
	filled  bool
	mu      sync.RWMutex
}

// NewRollingAverage creates a rolling average tracker with specified window size
func NewRollingAverage(windowSize int) *RollingAverage {
	if windowSize < 1 {
		windowSize = 1
	}
	return &RollingAverage{samples: make([]time.Duration, windowSize)}
}

// Add records a new sample, evicting the oldest once the window is full
func (r *RollingAverage) Add(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.filled {
		r.sum -= r.samples[r.index]
	}
	r.samples[r.index] = d
	r.sum += d

	r.index++
	if r.index == len(r.samples) {
		r.index = 0
		r.filled = true
	}
}

// Average returns the current rolling average, zero without samples
func (r *RollingAverage) Average() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := r.countLocked()
	if n == 0 {
		return 0
	}
	return r.sum / time.Duration(n)
}

// Count returns the number of samples currently tracked
func (r *RollingAverage) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.countLocked()
}

func (r *RollingAverage) countLocked() int {
	if r.filled {
		return len(r.samples)
	}
	return r.index
}

// Reset clears all samples
func (r *RollingAverage) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sum = 0
	r.index = 0
	r.filled = false
	for i := range r.samples {
		r.samples[i] = 0
	}
}

// Monitor tracks decode-loop timing and loss for one playback session.
type Monitor struct {
	decodeTimes  *RollingAverage
	convertTimes *RollingAverage

	framesDecoded  int
	framesRendered int
	framesLate     int // Dropped by pacing
	framesBusy     int // Dropped because the frame queue was full
	framesStale    int // Suppressed after a seek
	packetErrors   int
	audioChunks    int
	audioOverflow  int64 // Bytes the device rejected

	startTime time.Time
	now       func() time.Time
	mu        sync.RWMutex
}

// Report contains aggregated performance metrics
type Report struct {
	AvgDecodeMs    float64 // Average decode time in milliseconds
	AvgConvertMs   float64 // Average pixel conversion time in milliseconds
	FramesDecoded  int
	FramesRendered int
	FramesLate     int
	FramesBusy     int
	FramesStale    int
	DropRate       float64 // Percentage of decoded frames not rendered (late or busy)
	PacketErrors   int
	AudioChunks    int
	AudioOverflow  int64
	IsHealthy      bool
	UptimeSeconds  int64
}

// NewMonitor creates a new performance monitor
// windowSize determines how many frames to average (50 = 2 seconds at 25fps)
func NewMonitor(windowSize int) *Monitor {
	return &Monitor{
		decodeTimes:  NewRollingAverage(windowSize),
		convertTimes: NewRollingAverage(windowSize),
		startTime:    time.Now(),
		now:          time.Now,
	}
}

// RecordDecode records the time taken to decode one picture
func (p *Monitor) RecordDecode(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.decodeTimes.Add(d)
	p.framesDecoded++
}

// RecordRender records a converted and published frame
func (p *Monitor) RecordRender(convert time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.convertTimes.Add(convert)
	p.framesRendered++
}

// RecordLate counts a frame dropped by pacing
func (p *Monitor) RecordLate() {
	p.mu.Lock()
	p.framesLate++
	p.mu.Unlock()
}

// RecordBusy counts a frame dropped because the render side was behind
func (p *Monitor) RecordBusy() {
	p.mu.Lock()
	p.framesBusy++
	p.mu.Unlock()
}

// RecordStale counts a frame suppressed because it precedes a seek target
func (p *Monitor) RecordStale() {
	p.mu.Lock()
	p.framesStale++
	p.mu.Unlock()
}

// RecordPacketError counts a packet the decoder rejected
func (p *Monitor) RecordPacketError() {
	p.mu.Lock()
	p.packetErrors++
	p.mu.Unlock()
}

// RecordAudio counts a queued audio chunk and the bytes the device rejected
func (p *Monitor) RecordAudio(overflow int) {
	p.mu.Lock()
	p.audioChunks++
	p.audioOverflow += int64(overflow)
	p.mu.Unlock()
}

// GetReport generates a performance report with current metrics
func (p *Monitor) GetReport() Report {
	p.mu.RLock()
	defer p.mu.RUnlock()

	dropRate := 0.0
	if p.framesDecoded > 0 {
		dropRate = float64(p.framesLate+p.framesBusy) / float64(p.framesDecoded) * 100.0
	}
	avgDecode := p.decodeTimes.Average()

	// Healthy: under 5% loss and decode well inside a 25fps frame budget
	isHealthy := dropRate < 5.0 && avgDecode < 30*time.Millisecond

	return Report{
		AvgDecodeMs:    float64(avgDecode.Microseconds()) / 1000.0,
		AvgConvertMs:   float64(p.convertTimes.Average().Microseconds()) / 1000.0,
		FramesDecoded:  p.framesDecoded,
		FramesRendered: p.framesRendered,
		FramesLate:     p.framesLate,
		FramesBusy:     p.framesBusy,
		FramesStale:    p.framesStale,
		DropRate:       dropRate,
		PacketErrors:   p.packetErrors,
		AudioChunks:    p.audioChunks,
		AudioOverflow:  p.audioOverflow,
		IsHealthy:      isHealthy,
		UptimeSeconds:  int64(p.now().Sub(p.startTime).Seconds()),
	}
}

// IsPerformanceDegrading returns true if performance metrics indicate problems
func (p *Monitor) IsPerformanceDegrading() bool {
	r := p.GetReport()
	return r.DropRate > 10.0 || r.AvgDecodeMs > 40.0
}

// LogReport writes the current report at info level, or warn when degrading
func (p *Monitor) LogReport(log zerolog.Logger) {
	r := p.GetReport()
	ev := log.Info()
	if !r.IsHealthy {
		ev = log.Warn()
	}
	ev.Float64("avg_decode_ms", r.AvgDecodeMs).
		Float64("avg_convert_ms", r.AvgConvertMs).
		Int("decoded", r.FramesDecoded).
		Int("rendered", r.FramesRendered).
		Int("late", r.FramesLate).
		Int("busy", r.FramesBusy).
		Int("stale", r.FramesStale).
		Float64("drop_rate", r.DropRate).
		Int("packet_errors", r.PacketErrors).
		Int64("audio_overflow", r.AudioOverflow).
		Msg("Performance: session report")
}

// Reset clears all performance metrics
func (p *Monitor) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.decodeTimes.Reset()
	p.convertTimes.Reset()
	p.framesDecoded = 0
	p.framesRendered = 0
	p.framesLate = 0
	p.framesBusy = 0
	p.framesStale = 0
	p.packetErrors = 0
	p.audioChunks = 0
	p.audioOverflow = 0
	p.startTime = p.now()
}
