package icy

import (
	"io"
	"strings"
)

// MaxMetadataBlock is the largest metadata block the wire format can
// carry: a length byte of 255, times 16.
const MaxMetadataBlock = 255 * 16

// MetadataFunc receives each NUL-trimmed raw metadata string as it is
// extracted. It is called from whichever goroutine feeds the
// Extractor, before the audio bytes of the following interval.
type MetadataFunc func(raw string)

type extractorState int

const (
	stateAudio extractorState = iota
	stateLen
	stateMeta
)

// Extractor strips interleaved ICY metadata out of a stream, writing
// pure audio to out. The interval is the icy-metaint the server
// negotiated; 0 means the stream carries no metadata and every byte
// passes through untouched.
//
// Feed may be called with arbitrary chunk sizes; intervals and
// metadata blocks routinely span calls.
type Extractor struct {
	out      io.Writer
	onMeta   MetadataFunc
	interval int

	state     extractorState
	remaining int    // audio bytes until the next length byte
	metaNeed  int    // metadata bytes still to accumulate
	meta      []byte // partial metadata block
}

// NewExtractor returns an Extractor writing audio to out. onMeta may
// be nil when the caller has no use for the metadata side channel.
func NewExtractor(interval int, out io.Writer, onMeta MetadataFunc) *Extractor {
	if interval < 0 {
		interval = 0
	}
	return &Extractor{
		out:       out,
		onMeta:    onMeta,
		interval:  interval,
		state:     stateAudio,
		remaining: interval,
	}
}

// Feed consumes one chunk from the wire. The returned count is the
// number of audio bytes written to out, which is less than len(p)
// whenever metadata was embedded in the chunk. A write error from out
// stops processing at the failing byte.
func (e *Extractor) Feed(p []byte) (int, error) {
	if e.interval == 0 {
		return e.out.Write(p)
	}

	audio := 0
	for len(p) > 0 {
		switch e.state {
		case stateAudio:
			n := e.remaining
			if n > len(p) {
				n = len(p)
			}
			w, err := e.out.Write(p[:n])
			audio += w
			if err != nil {
				return audio, err
			}
			e.remaining -= n
			p = p[n:]
			if e.remaining == 0 {
				e.state = stateLen
			}

		case stateLen:
			l := int(p[0])
			p = p[1:]
			if l == 0 {
				e.state = stateAudio
				e.remaining = e.interval
				continue
			}
			e.state = stateMeta
			e.metaNeed = l * 16
			e.meta = e.meta[:0]

		case stateMeta:
			n := e.metaNeed
			if n > len(p) {
				n = len(p)
			}
			e.meta = append(e.meta, p[:n]...)
			e.metaNeed -= n
			p = p[n:]
			if e.metaNeed == 0 {
				e.emit()
				e.state = stateAudio
				e.remaining = e.interval
			}
		}
	}

	return audio, nil
}

// emit trims the NUL padding a metadata block is rounded out with and
// hands the result to the callback.
func (e *Extractor) emit() {
	if e.onMeta == nil {
		return
	}
	e.onMeta(strings.TrimRight(string(e.meta), "\x00"))
}
