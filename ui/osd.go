// Package ui draws the on-screen display over the video.
package ui

import (
	"fmt"
	"time"

	"github.com/veandco/go-sdl2/sdl"
)

// Status is what the overlay shows.
type Status struct {
	Position time.Duration
	Duration time.Duration
	State    string
	Volume   float64
	Muted    bool
}

// OSD is a bottom bar with a progress indicator, shown for a while after
// any input and permanently while paused.
type OSD struct {
	fonts   *Fonts
	visible time.Duration
	until   time.Time
	sticky  bool
	now     func() time.Time
}

// NewOSD creates an overlay. fonts may be nil, in which case only the
// progress bar is drawn.
func NewOSD(fonts *Fonts, visible time.Duration) *OSD {
	return &OSD{fonts: fonts, visible: visible, now: time.Now}
}

// Poke shows the overlay for the configured time.
func (o *OSD) Poke() {
	o.until = o.now().Add(o.visible)
}

// SetSticky keeps the overlay up regardless of Poke (e.g. while paused).
func (o *OSD) SetSticky(sticky bool) {
	o.sticky = sticky
}

func (o *OSD) Visible() bool {
	return o.sticky || o.now().Before(o.until)
}

// Draw renders the overlay when visible.
func (o *OSD) Draw(renderer *sdl.Renderer, screenWidth, screenHeight int32, st Status) error {
	if !o.Visible() {
		return nil
	}

	barHeight := max(screenHeight/8, 48)
	top := screenHeight - barHeight
	DrawGradientRect(renderer, 0, top, screenWidth, barHeight, [3]uint8{0, 0, 0}, [3]uint8{20, 20, 20}, 180)

	margin := barHeight / 4
	track := sdl.Rect{X: margin, Y: top + margin/2, W: screenWidth - 2*margin, H: max(barHeight/12, 3)}
	renderer.SetDrawColor(90, 90, 90, 255)
	renderer.FillRect(&track)

	filled := track
	filled.W = int32(float64(track.W) * Progress(st.Position, st.Duration))
	renderer.SetDrawColor(230, 230, 230, 255)
	renderer.FillRect(&filled)

	if o.fonts == nil {
		return nil
	}

	white := sdl.Color{R: 255, G: 255, B: 255, A: 255}
	grey := sdl.Color{R: 180, G: 180, B: 180, A: 255}
	textY := track.Y + track.H + margin/2

	timeText := FormatTime(st.Position)
	if st.Duration > 0 {
		timeText += " / " + FormatTime(st.Duration)
	}
	w, err := RenderText(renderer, timeText, margin, textY, white, o.fonts.Medium)
	if err != nil {
		return err
	}

	_, err = RenderText(renderer, StatusLine(st), margin+w+margin, textY+4, grey, o.fonts.Small)
	return err
}

// Progress is the played fraction in [0, 1]; 0 for unknown durations.
func Progress(pos, dur time.Duration) float64 {
	if dur <= 0 || pos <= 0 {
		return 0
	}
	return min(float64(pos)/float64(dur), 1)
}

// FormatTime renders m:ss below an hour and h:mm:ss above.
func FormatTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	s := int64(d / time.Second)
	h, m, sec := s/3600, s/60%60, s%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, sec)
	}
	return fmt.Sprintf("%d:%02d", m, sec)
}

// StatusLine is the state and volume readout.
func StatusLine(st Status) string {
	vol := fmt.Sprintf("vol %d%%", int(st.Volume*100+0.5))
	if st.Muted {
		vol = "muted"
	}
	return st.State + "  " + vol
}
