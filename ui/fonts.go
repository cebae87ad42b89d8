package ui

import (
	"fmt"

	"github.com/veandco/go-sdl2/ttf"
)

// Fonts manages the TrueType fonts used by the overlay
type Fonts struct {
	Medium *ttf.Font // 24px for the time readout
	Small  *ttf.Font // 18px for status text
}

// DefaultFontPaths are tried in order after any configured font.
var DefaultFontPaths = []string{
	"/usr/share/fonts/truetype/dejavu/DejaVuSans-Bold.ttf",
	"/usr/share/fonts/TTF/DejaVuSans-Bold.ttf",
	"/System/Library/Fonts/Helvetica.ttc",
	"/usr/share/fonts/truetype/liberation/LiberationSans-Bold.ttf",
}

// LoadFonts loads the first font that opens from preferred followed by the
// system fallbacks.
func LoadFonts(preferred string) (*Fonts, error) {
	if err := ttf.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize TTF: %v", err)
	}

	paths := DefaultFontPaths
	if preferred != "" {
		paths = append([]string{preferred}, paths...)
	}

	fonts := &Fonts{}
	var err error
	for _, path := range paths {
		if fonts.Medium, err = ttf.OpenFont(path, 24); err != nil {
			continue
		}
		if fonts.Small, err = ttf.OpenFont(path, 18); err != nil {
			fonts.Medium.Close()
			fonts.Medium = nil
			continue
		}
		return fonts, nil
	}
	ttf.Quit()
	return nil, fmt.Errorf("no usable font found: %v", err)
}

// Close cleans up font resources
func (f *Fonts) Close() {
	if f.Medium != nil {
		f.Medium.Close()
	}
	if f.Small != nil {
		f.Small.Close()
	}
	ttf.Quit()
}
