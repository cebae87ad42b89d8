package mpeg

// Options select how video decoders are chosen.
type Options struct {
	// VideoDecoder is tried before the built-in priority list (VIDEO_DECODER).
	VideoDecoder string
	// ForceSoftware skips hardware decoders (FORCE_SOFTWARE_DECODER=1).
	ForceSoftware bool
	// Threads passed to the decoder; 0 lets FFmpeg decide.
	Threads int
}
