package ripper

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"runtime"
	"testing"
	"time"

	"github.com/zachfi/icyrip/pkg/icy"
)

// serveStream answers every connection with an ICY preamble and a
// short burst of audio, then closes, simulating a flappy relay.
func serveStream(t *testing.T, audio []byte) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				br := bufio.NewReader(c)
				for {
					line, err := br.ReadString('\n')
					if err != nil || line == "\r\n" {
						break
					}
				}
				io.WriteString(c, "ICY 200 OK\r\nicy-name:flappy\r\ncontent-type:audio/mpeg\r\nicy-metaint:0\r\n\r\n")
				c.Write(audio)
			}(conn)
		}
	}()
	return ln.Addr().String()
}

func newTestRipper(t *testing.T, addr string) *Ripper {
	t.Helper()
	r, err := New(Config{URL: "http://" + addr, Dir: t.TempDir()}, *testLogger(), nil)
	if err != nil {
		t.Fatal(err)
	}
	u, err := icy.ParseURL(addr)
	if err != nil {
		t.Fatal(err)
	}
	r.url = u
	return r
}

func TestRipReleasesWatcherPerAttempt(t *testing.T) {
	addr := serveStream(t, []byte("0123456789abcdef"))
	r := newTestRipper(t, addr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pipe, err := newPipeline(ctx, 1024, 8)
	if err != nil {
		t.Fatal(err)
	}

	before := runtime.NumGoroutine()
	lastRaw, lastCT := "", icy.ContentUnknown
	for i := 0; i < 5; i++ {
		// Every attempt ends with the server closing the stream.
		if _, err := r.rip(ctx, pipe, &lastRaw, &lastCT, i > 0); err == nil {
			t.Fatal("expected a disconnect error")
		}
	}

	// The per-connection watcher must exit with its attempt, not hang
	// around until service shutdown.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if runtime.NumGoroutine() <= before+1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("connection watchers leaked: %d goroutines before, %d after", before, runtime.NumGoroutine())
}

func TestBoundaryAlwaysCarriesItsEvent(t *testing.T) {
	ctx := context.Background()
	pipe, err := newPipeline(ctx, 64, 8)
	if err != nil {
		t.Fatal(err)
	}
	r := &Ripper{logger: testLogger(), metaCh: make(chan metaEvent, 16)}

	// A consumer racing the producer must find the metadata event
	// queued whenever it observes the boundary; an event landing after
	// its boundary would be applied at the wrong split.
	const rounds = 200
	roundErr := make(chan error)
	go func() {
		buf := make([]byte, 16)
		for i := 0; i < rounds; i++ {
			for {
				_, boundary, err := pipe.Read(ctx, buf)
				if err != nil {
					roundErr <- err
					return
				}
				if boundary {
					break
				}
			}
			events := r.drainMeta()
			pipe.ClearBoundary()
			if len(events) == 0 {
				roundErr <- errors.New("boundary observed with no queued metadata event")
				return
			}
			roundErr <- nil
		}
	}()

	for i := 0; i < rounds; i++ {
		if err := pipe.Write(ctx, []byte("aaaa")); err != nil {
			t.Fatal(err)
		}
		r.emitBoundary(pipe, metaEvent{raw: "Artist - Song", ct: icy.ContentMP3})
		if err := <-roundErr; err != nil {
			t.Fatal(err)
		}
	}
}
