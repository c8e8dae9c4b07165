// Package ringbuf implements the bounded circular byte buffer that decouples
// the network-reading producer from the file-writing consumer. The buffer is
// single-producer single-consumer: the producer only advances the write
// cursor and the consumer only advances the read cursor. Callers needing
// blocking semantics layer them on top; the buffer itself only signals full
// and empty.
package ringbuf

import (
	"github.com/zachfi/icyrip/pkg/srerror"
)

// Capacity is subdivided into fixed-size chunks; both are set at
// construction and never change.
type RingBuffer struct {
	buf       []byte
	chunkSize int
	numChunks int

	base  int   // read cursor
	count int   // filled bytes; always (write - read) mod capacity
	total int64 // bytes ever written, for high-water accounting

	highWater int

	// boundary is the absolute stream offset (in bytes written) of the next
	// track split, or -1 when none is pending. Reads never cross it.
	boundary int64
}

// New allocates a buffer of chunkSize*numChunks bytes. Both parameters must
// be positive.
func New(chunkSize, numChunks int) (*RingBuffer, error) {
	if chunkSize <= 0 || numChunks <= 0 {
		return nil, srerror.ErrInvalidParam
	}
	return &RingBuffer{
		buf:       make([]byte, chunkSize*numChunks),
		chunkSize: chunkSize,
		numChunks: numChunks,
		boundary:  -1,
	}, nil
}

func (r *RingBuffer) Cap() int       { return len(r.buf) }
func (r *RingBuffer) ChunkSize() int { return r.chunkSize }
func (r *RingBuffer) Len() int       { return r.count }
func (r *RingBuffer) Free() int      { return len(r.buf) - r.count }

// HighWater reports the largest fill level observed since construction.
func (r *RingBuffer) HighWater() int { return r.highWater }

// TotalWritten reports the monotonically increasing count of bytes accepted
// by Write.
func (r *RingBuffer) TotalWritten() int64 { return r.total }

// writeIndex is where the next byte lands.
func (r *RingBuffer) writeIndex() int {
	return (r.base + r.count) % len(r.buf)
}

// FreeTail reports the contiguous free span from the write index to the end
// of the underlying array, bounded by total free space.
func (r *RingBuffer) FreeTail() int {
	tail := len(r.buf) - r.writeIndex()
	if free := r.Free(); tail > free {
		return free
	}
	return tail
}

// Write copies p into the buffer up to available capacity and returns how
// many bytes were accepted. When nothing fits it returns ErrBufferFull so
// the producer can apply backpressure; data is never silently dropped.
func (r *RingBuffer) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	free := r.Free()
	if free == 0 {
		return 0, srerror.ErrBufferFull
	}
	n := len(p)
	if n > free {
		n = free
	}

	w := r.writeIndex()
	first := len(r.buf) - w
	if first > n {
		first = n
	}
	copy(r.buf[w:], p[:first])
	copy(r.buf, p[first:n])

	r.count += n
	r.total += int64(n)
	if r.count > r.highWater {
		r.highWater = r.count
	}
	return n, nil
}

// readLimit is how many bytes the consumer may take without crossing a
// pending track boundary.
func (r *RingBuffer) readLimit() int {
	if r.boundary < 0 {
		return r.count
	}
	readOff := r.total - int64(r.count)
	until := r.boundary - readOff
	if until < 0 {
		until = 0
	}
	if until > int64(r.count) {
		return r.count
	}
	return int(until)
}

// Read copies up to len(p) bytes in FIFO order and advances the read
// cursor. An empty buffer reports ErrBufferEmpty rather than a silent short
// read, so the caller can tell starvation from a legitimate partial read. A
// pending boundary stops the read exactly at the split point.
func (r *RingBuffer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	limit := r.readLimit()
	if limit == 0 {
		if r.count == 0 {
			return 0, srerror.ErrBufferEmpty
		}
		// Sitting on the boundary; the consumer must clear it first.
		return 0, nil
	}
	n := len(p)
	if n > limit {
		n = limit
	}

	first := len(r.buf) - r.base
	if first > n {
		first = n
	}
	copy(p[:first], r.buf[r.base:r.base+first])
	copy(p[first:n], r.buf[:n-first])

	r.base = (r.base + n) % len(r.buf)
	r.count -= n
	return n, nil
}

// Peek copies up to len(p) bytes without advancing the read cursor.
func (r *RingBuffer) Peek(p []byte) (int, error) {
	if r.count == 0 {
		return 0, srerror.ErrBufferEmpty
	}
	n := len(p)
	if n > r.count {
		n = r.count
	}
	first := len(r.buf) - r.base
	if first > n {
		first = n
	}
	copy(p[:first], r.buf[r.base:r.base+first])
	copy(p[first:n], r.buf[:n-first])
	return n, nil
}

// Skip discards n bytes from the read side. It reports ErrBufferEmpty when
// fewer than n bytes are buffered, leaving the cursors untouched.
func (r *RingBuffer) Skip(n int) error {
	if n < 0 {
		return srerror.ErrInvalidParam
	}
	if n > r.count {
		return srerror.ErrBufferEmpty
	}
	r.base = (r.base + n) % len(r.buf)
	r.count -= n
	return nil
}

// DropOldest discards up to n of the oldest unread bytes, for overflow
// policies that favor recency over completeness. It returns how many bytes
// were dropped and keeps the cursor invariant intact.
func (r *RingBuffer) DropOldest(n int) int {
	if n <= 0 {
		return 0
	}
	if n > r.count {
		n = r.count
	}
	r.base = (r.base + n) % len(r.buf)
	r.count -= n
	return n
}

// SetBoundary records a track split n bytes before the current write
// cursor, i.e. at the point in the stream where the triggering metadata
// block was extracted. n must not exceed the buffered byte count.
func (r *RingBuffer) SetBoundary(bytesBeforeWrite int) error {
	if bytesBeforeWrite < 0 || bytesBeforeWrite > r.count {
		return srerror.ErrInvalidParam
	}
	r.boundary = r.total - int64(bytesBeforeWrite)
	return nil
}

// AtBoundary reports whether the read cursor sits exactly on a pending
// track boundary.
func (r *RingBuffer) AtBoundary() bool {
	if r.boundary < 0 {
		return false
	}
	return r.total-int64(r.count) >= r.boundary
}

// ClearBoundary discards the pending boundary, allowing reads to proceed.
func (r *RingBuffer) ClearBoundary() {
	r.boundary = -1
}
