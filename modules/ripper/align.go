package ripper

import (
	"github.com/zachfi/icyrip/pkg/adts"
	"github.com/zachfi/icyrip/pkg/icy"
)

// maxAlignWindow caps how much audio the aligner holds back looking
// for a frame boundary before giving up and writing as-is.
const maxAlignWindow = 8 * 1024

// findMP3FrameSync finds the first MP3 frame sync word, 0xFF followed
// by a byte with the top three bits set. Returns -1 if absent.
func findMP3FrameSync(data []byte) int {
	for i := 0; i+1 < len(data); i++ {
		if data[i] == 0xFF && data[i+1]&0xE0 == 0xE0 {
			return i
		}
	}
	return -1
}

// findFrameStart locates the first codec frame boundary for the given
// payload type. AAC streams are sniffed for a full, valid ADTS header
// rather than just the sync pattern. Payloads we cannot frame return
// offset 0 so the bytes pass straight through.
func findFrameStart(ct icy.ContentType, data []byte) int {
	switch ct {
	case icy.ContentMP3:
		return findMP3FrameSync(data)
	case icy.ContentAAC:
		if _, off, ok := adts.Scan(data); ok {
			return off
		}
		return -1
	default:
		return 0
	}
}

// frameAligner trims the partial frame at the head of each new track
// so every file starts on a codec frame boundary. It buffers bytes
// until a sync is found, then passes everything through untouched.
type frameAligner struct {
	ct      icy.ContentType
	pending []byte
	aligned bool
}

func newFrameAligner(ct icy.ContentType) *frameAligner {
	return &frameAligner{ct: ct}
}

// Feed returns the bytes ready to be written for this chunk. While
// still searching it returns nil and holds the chunk back; once the
// window exceeds maxAlignWindow without a sync the held bytes are
// released unmodified.
func (a *frameAligner) Feed(p []byte) []byte {
	if a.aligned {
		return p
	}

	a.pending = append(a.pending, p...)
	if off := findFrameStart(a.ct, a.pending); off >= 0 {
		out := a.pending[off:]
		a.pending = nil
		a.aligned = true
		return out
	}
	if len(a.pending) > maxAlignWindow {
		out := a.pending
		a.pending = nil
		a.aligned = true
		return out
	}
	return nil
}

// Flush returns any bytes still held back, for track close.
func (a *frameAligner) Flush() []byte {
	out := a.pending
	a.pending = nil
	a.aligned = true
	return out
}
