package ripper

import (
	"context"
	"io"
	"sync"

	"github.com/zachfi/icyrip/pkg/ringbuf"
	"github.com/zachfi/icyrip/pkg/srerror"
)

// pipeline layers blocking and shutdown on top of the ring buffer. The
// producer blocks in Write while the buffer is full; the consumer
// blocks in Read while it is empty. Every wait is interruptible by the
// context the pipeline was built with, so both sides exit promptly on
// shutdown.
type pipeline struct {
	mu       sync.Mutex
	notFull  *sync.Cond
	notEmpty *sync.Cond

	buf         *ringbuf.RingBuffer
	writeClosed bool
}

func newPipeline(ctx context.Context, chunkSize, numChunks int) (*pipeline, error) {
	buf, err := ringbuf.New(chunkSize, numChunks)
	if err != nil {
		return nil, err
	}
	p := &pipeline{buf: buf}
	p.notFull = sync.NewCond(&p.mu)
	p.notEmpty = sync.NewCond(&p.mu)

	// Wake both sides when the context dies so no goroutine stays
	// parked in a cond wait past shutdown.
	go func() {
		<-ctx.Done()
		p.mu.Lock()
		p.notFull.Broadcast()
		p.notEmpty.Broadcast()
		p.mu.Unlock()
	}()

	return p, nil
}

// Write copies all of b into the buffer, blocking while it is full.
func (p *pipeline) Write(ctx context.Context, b []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for len(b) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		if p.writeClosed {
			return io.ErrClosedPipe
		}

		n, err := p.buf.Write(b)
		if n > 0 {
			b = b[n:]
			p.notEmpty.Broadcast()
		}
		if err != nil {
			if code, ok := srerror.CodeOf(err); ok && code == srerror.ErrBufferFull {
				p.notFull.Wait()
				continue
			}
			return err
		}
	}
	return nil
}

// Read fills b with buffered audio, blocking while the buffer is
// empty. It returns boundary=true, without consuming anything, when
// the read cursor sits exactly on a pending track boundary; the caller
// acts on the split and then calls ClearBoundary. After CloseWrite it
// drains the remaining bytes and then reports io.EOF.
//
// Cancellation never discards buffered audio: reads keep succeeding
// until the buffer is empty, and only then does the context error
// surface. The shutdown path therefore flushes everything the
// producer handed over before the consumer stops.
func (p *pipeline) Read(ctx context.Context, b []byte) (n int, boundary bool, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for {
		if p.buf.AtBoundary() {
			return 0, true, nil
		}

		n, err := p.buf.Read(b)
		if n > 0 {
			p.notFull.Broadcast()
			return n, false, nil
		}
		if err == nil {
			// Zero bytes without an error means the cursor reached the
			// boundary mid-loop.
			continue
		}
		if code, ok := srerror.CodeOf(err); ok && code == srerror.ErrBufferEmpty {
			if p.writeClosed {
				return 0, false, io.EOF
			}
			if cerr := ctx.Err(); cerr != nil {
				return 0, false, cerr
			}
			p.notEmpty.Wait()
			continue
		}
		return 0, false, err
	}
}

// SetBoundaryHere marks a track split at the current write cursor,
// the stream position where the triggering metadata was extracted.
func (p *pipeline) SetBoundaryHere() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.buf.SetBoundary(0); err != nil {
		return err
	}
	// The consumer may be parked on an empty buffer and still needs to
	// observe the boundary.
	p.notEmpty.Broadcast()
	return nil
}

// ClearBoundary releases a pending boundary so reads proceed into the
// next track's bytes.
func (p *pipeline) ClearBoundary() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.buf.ClearBoundary()
	p.notEmpty.Broadcast()
}

// CloseWrite marks the producer side finished. Buffered bytes remain
// readable; Read reports io.EOF once they are drained.
func (p *pipeline) CloseWrite() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writeClosed = true
	p.notEmpty.Broadcast()
}

func (p *pipeline) HighWater() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.HighWater()
}

func (p *pipeline) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.Len()
}
