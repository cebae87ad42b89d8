package ui

import (
	"fmt"

	"github.com/veandco/go-sdl2/sdl"
	"github.com/veandco/go-sdl2/ttf"
)

// RenderText renders text with its top left corner at x,y and returns the
// rendered width.
func RenderText(renderer *sdl.Renderer, text string, x, y int32, color sdl.Color, font *ttf.Font) (int32, error) {
	if font == nil {
		return 0, fmt.Errorf("font not available")
	}
	if text == "" {
		return 0, nil
	}

	surface, err := font.RenderUTF8Blended(text, color)
	if err != nil {
		return 0, err
	}
	defer surface.Free()

	texture, err := renderer.CreateTextureFromSurface(surface)
	if err != nil {
		return 0, err
	}
	defer texture.Destroy()

	_, _, w, h, err := texture.Query()
	if err != nil {
		return 0, err
	}

	dstRect := sdl.Rect{X: x, Y: y, W: w, H: h}
	return w, renderer.Copy(texture, nil, &dstRect)
}
