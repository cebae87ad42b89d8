package video

import (
	"strings"
)

// CodecType represents the type of codec
type CodecType int

const (
	CodecTypeMPEG1 CodecType = iota
	CodecTypeMPEG2
	CodecTypeMPEG4
	CodecTypeH264
	CodecTypeHEVC
	CodecTypeVP8
	CodecTypeVP9
	CodecTypeAV1
	CodecTypeUnknown
)

// DetectCodecType determines the codec type from a codec or decoder name
func DetectCodecType(codecName string) CodecType {
	lower := strings.ToLower(codecName)

	switch {
	case strings.Contains(lower, "h264"), strings.Contains(lower, "avc"):
		return CodecTypeH264
	case strings.Contains(lower, "h265"), strings.Contains(lower, "hevc"):
		return CodecTypeHEVC
	case strings.Contains(lower, "mpeg1"):
		return CodecTypeMPEG1
	case strings.Contains(lower, "mpeg2"):
		return CodecTypeMPEG2
	case strings.Contains(lower, "mpeg4"):
		return CodecTypeMPEG4
	case strings.Contains(lower, "vp8"):
		return CodecTypeVP8
	case strings.Contains(lower, "vp9"):
		return CodecTypeVP9
	case strings.Contains(lower, "av1"):
		return CodecTypeAV1
	default:
		return CodecTypeUnknown
	}
}

// String returns human-readable codec type name
func (c CodecType) String() string {
	switch c {
	case CodecTypeMPEG1:
		return "MPEG-1"
	case CodecTypeMPEG2:
		return "MPEG-2"
	case CodecTypeMPEG4:
		return "MPEG-4"
	case CodecTypeH264:
		return "H.264/AVC"
	case CodecTypeHEVC:
		return "H.265/HEVC"
	case CodecTypeVP8:
		return "VP8"
	case CodecTypeVP9:
		return "VP9"
	case CodecTypeAV1:
		return "AV1"
	default:
		return "Unknown"
	}
}

// hardwareSuffixes are the FFmpeg decoder name suffixes of hardware backends.
var hardwareSuffixes = []string{"_v4l2m2m", "_rkmpp", "_cuvid", "_nvdec", "_qsv", "_mediacodec", "_videotoolbox", "_vaapi"}

// IsHardwareDecoder reports whether an FFmpeg decoder name refers to a
// hardware-accelerated implementation.
func IsHardwareDecoder(decoderName string) bool {
	lower := strings.ToLower(decoderName)
	for _, s := range hardwareSuffixes {
		if strings.HasSuffix(lower, s) {
			return true
		}
	}
	return false
}

// DecoderCandidates returns the decoder names to try for a codec, hardware
// first. An override (e.g. from VIDEO_DECODER) is always tried first; when
// softwareOnly is set hardware candidates are skipped.
func DecoderCandidates(codecName, override string, softwareOnly bool) []string {
	var out []string
	if override != "" {
		out = append(out, override)
	}

	var hw []string
	switch DetectCodecType(codecName) {
	case CodecTypeH264:
		hw = []string{"h264_rkmpp", "h264_vaapi", "h264_nvdec", "h264_cuvid", "h264_videotoolbox"}
	case CodecTypeHEVC:
		hw = []string{"hevc_rkmpp"}
	case CodecTypeMPEG4:
		hw = []string{"mpeg4_v4l2m2m"}
	case CodecTypeVP8:
		hw = []string{"vp8_v4l2m2m"}
	case CodecTypeVP9:
		hw = []string{"vp9_v4l2m2m"}
	case CodecTypeAV1:
		hw = []string{"av1_v4l2m2m"}
	}
	if !softwareOnly {
		out = append(out, hw...)
	}
	if codecName != "" {
		out = append(out, codecName)
	}
	return out
}
