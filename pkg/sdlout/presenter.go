package sdlout

import (
	"fmt"

	"github.com/veandco/go-sdl2/sdl"

	"flow-player/pkg/frames"
)

// Presenter uploads the newest decoded frame into a streaming texture and
// draws it letterboxed. All methods must run on the render thread.
type Presenter struct {
	renderer *sdl.Renderer
	src      <-chan *frames.Frame
	texture  *sdl.Texture
	width    int32
	height   int32
	minEpoch uint64
	shown    uint64
}

func NewPresenter(renderer *sdl.Renderer, src <-chan *frames.Frame) *Presenter {
	return &Presenter{renderer: renderer, src: src}
}

// SetMinEpoch discards queued frames from earlier epochs. The minimum only
// moves forward.
func (p *Presenter) SetMinEpoch(epoch uint64) {
	p.minEpoch = max(p.minEpoch, epoch)
}

// Update drains the frame channel, keeps only the newest frame and uploads
// it. It reports whether the texture changed.
func (p *Presenter) Update() (bool, error) {
	var latest *frames.Frame
	for {
		select {
		case f, ok := <-p.src:
			if !ok {
				return p.upload(latest)
			}
			if f.Epoch < p.minEpoch {
				f.Release()
				continue
			}
			latest.Release()
			latest = f
		default:
			return p.upload(latest)
		}
	}
}

func (p *Presenter) upload(f *frames.Frame) (bool, error) {
	if f == nil {
		return false, nil
	}
	defer f.Release()

	w, h := int32(f.Width), int32(f.Height)
	if p.texture == nil || w != p.width || h != p.height {
		if p.texture != nil {
			p.texture.Destroy()
			p.texture = nil
		}
		tex, err := p.renderer.CreateTexture(uint32(sdl.PIXELFORMAT_RGBA32), sdl.TEXTUREACCESS_STREAMING, w, h)
		if err != nil {
			return false, fmt.Errorf("failed to create texture: %v", err)
		}
		p.texture, p.width, p.height = tex, w, h
	}

	pixels, pitch, err := p.texture.Lock(nil)
	if err != nil {
		return false, fmt.Errorf("failed to lock texture: %v", err)
	}
	defer p.texture.Unlock()

	stride := f.Stride()
	if pitch == stride {
		copy(pixels, f.Pix)
	} else {
		for y := 0; y < f.Height; y++ {
			copy(pixels[y*pitch:y*pitch+stride], f.Pix[y*stride:(y+1)*stride])
		}
	}
	p.shown++
	return true, nil
}

// Shown counts uploaded frames.
func (p *Presenter) Shown() uint64 { return p.shown }

// Draw copies the current texture scaled to fit the screen.
func (p *Presenter) Draw(screenWidth, screenHeight int32) error {
	if p.texture == nil {
		return nil
	}
	dst := Letterbox(p.width, p.height, screenWidth, screenHeight)
	return p.renderer.Copy(p.texture, nil, &dst)
}

// Clear drops the current texture so the screen goes black after a stop.
func (p *Presenter) Clear() {
	if p.texture != nil {
		p.texture.Destroy()
		p.texture = nil
	}
	p.width, p.height = 0, 0
}

func (p *Presenter) Close() {
	p.Clear()
}

// Letterbox fits a video of vw x vh into the screen keeping its aspect ratio.
func Letterbox(vw, vh, screenWidth, screenHeight int32) sdl.Rect {
	if vw <= 0 || vh <= 0 {
		return sdl.Rect{W: screenWidth, H: screenHeight}
	}
	scaleW := float64(screenWidth) / float64(vw)
	scaleH := float64(screenHeight) / float64(vh)
	scale := scaleW
	if scaleH < scaleW {
		scale = scaleH
	}

	renderWidth := int32(float64(vw) * scale)
	renderHeight := int32(float64(vh) * scale)

	return sdl.Rect{
		X: (screenWidth - renderWidth) / 2,
		Y: (screenHeight - renderHeight) / 2,
		W: renderWidth,
		H: renderHeight,
	}
}
