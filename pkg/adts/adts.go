// Package adts detects AAC ADTS frame boundaries and stream parameters from
// raw audio bytes. It is used as a fallback signal when a stream carries no
// usable ICY metadata framing.
package adts

import "errors"

// HeaderLen is the fixed ADTS header size without CRC.
const HeaderLen = 7

// MinFrameLength is the smallest legal value of the 13-bit frame length
// field; the frame length includes the header itself.
const MinFrameLength = 7

// VBRSentinel in the buffer fullness field indicates variable bitrate.
const VBRSentinel = 0x7FF

// SampleRates maps the 4-bit sampling frequency index to a rate in Hz.
// Indices 12 and up are reserved.
var SampleRates = [12]int{
	96000, 88200, 64000, 48000, 44100, 32000,
	24000, 22050, 16000, 12000, 11025, 8000,
}

var (
	ErrShortBuffer   = errors.New("adts: buffer shorter than header")
	ErrNoSync        = errors.New("adts: no sync word at offset")
	ErrBadSampleRate = errors.New("adts: reserved sampling frequency index")
	ErrBadFrameLen   = errors.New("adts: frame length below minimum")
)

// FrameInfo holds the decoded fields of one ADTS header. It is recomputed
// per frame and not retained between parse calls.
type FrameInfo struct {
	MPEGVersion      int // 0 = MPEG-4, 1 = MPEG-2
	ProtectionAbsent bool
	Profile          int
	SamplingIndex    int
	SampleRate       int
	ChannelConfig    int
	FrameLength      int
	BufferFullness   int
	RawDataBlocks    int // encoded count, 0 means one block
}

// VBR reports whether the buffer fullness field carries the variable
// bitrate sentinel.
func (f FrameInfo) VBR() bool {
	return f.BufferFullness == VBRSentinel
}

// ParseFrame decodes the ADTS header at the start of b. A missing sync
// word, a reserved sampling index, or an undersized frame length are normal
// reportable outcomes, never fatal. Fields decoded before the failing check
// remain populated so callers can inspect a rejected candidate.
func ParseFrame(b []byte) (FrameInfo, error) {
	var f FrameInfo
	if len(b) < HeaderLen {
		return f, ErrShortBuffer
	}
	if b[0] != 0xFF || b[1]&0xF0 != 0xF0 {
		return f, ErrNoSync
	}

	f.MPEGVersion = int(b[1]>>3) & 0x01
	f.ProtectionAbsent = b[1]&0x01 != 0
	f.Profile = int(b[2]>>6) & 0x03
	f.SamplingIndex = int(b[2]>>2) & 0x0F

	// Channel configuration spans the byte boundary.
	f.ChannelConfig = int(b[2]&0x01)<<2 | int(b[3]>>6)&0x03

	f.FrameLength = int(b[3]&0x03)<<11 | int(b[4])<<3 | int(b[5]>>5)&0x07
	f.BufferFullness = int(b[5]&0x1F)<<6 | int(b[6]>>2)&0x3F
	f.RawDataBlocks = int(b[6]) & 0x03

	if f.SamplingIndex >= len(SampleRates) {
		return f, ErrBadSampleRate
	}
	f.SampleRate = SampleRates[f.SamplingIndex]

	if f.FrameLength < MinFrameLength {
		return f, ErrBadFrameLen
	}

	return f, nil
}

// Scan searches window for the first valid ADTS header, advancing one byte
// per rejected candidate. It returns the decoded frame, its offset, and
// whether a frame was found; absence of a frame is a normal outcome.
func Scan(window []byte) (FrameInfo, int, bool) {
	for off := 0; off+HeaderLen <= len(window); off++ {
		f, err := ParseFrame(window[off:])
		if err == nil {
			return f, off, true
		}
	}
	return FrameInfo{}, -1, false
}
