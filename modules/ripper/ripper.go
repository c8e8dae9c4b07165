package ripper

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path"
	"sync"

	"github.com/google/uuid"
	"github.com/grafana/dskit/backoff"
	"github.com/grafana/dskit/services"
	pkgerrors "github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/zachfi/icyrip/pkg/charset"
	"github.com/zachfi/icyrip/pkg/icy"
	"github.com/zachfi/icyrip/pkg/metaparse"
	"github.com/zachfi/icyrip/pkg/srerror"
)

var module = "ripper"

// metaEvent travels from the producer to the consumer alongside a
// pipeline boundary. reset marks a content-type change across a
// reconnect, which forces the current track closed.
type metaEvent struct {
	raw   string
	ct    icy.ContentType
	reset bool
}

// Ripper records a stream to track files. The producer goroutine
// reads the connection, strips metadata inline, and feeds pure audio
// into the pipeline; the consumer drains the pipeline and drives the
// splitter and file writer. The pipeline is the only thing the two
// sides share.
type Ripper struct {
	services.Service
	cfg     *Config
	logger  *slog.Logger
	metrics *metrics

	url    icy.UrlInfo
	engine *metaparse.Engine
	writer *FileWriter
	policy OverwritePolicy

	pipe   *pipeline
	metaCh chan metaEvent

	stationMu sync.Mutex
	station   string

	produceErr error
	produceWg  sync.WaitGroup
}

// New creates and returns a new Ripper service.
func New(cfg Config, logger slog.Logger, reg prometheus.Registerer) (*Ripper, error) {
	cfg.applyDefaults()

	policy, err := ParseOverwritePolicy(cfg.Overwrite)
	if err != nil {
		return nil, err
	}

	session := uuid.New().String()
	l := logger.With("module", module, "session", session)

	r := &Ripper{
		cfg:     &cfg,
		logger:  l,
		metrics: newMetrics(reg),
		policy:  policy,
		metaCh:  make(chan metaEvent, 16),
	}
	r.writer = NewFileWriter(cfg.Dir, policy, l)

	r.Service = services.NewBasicService(r.starting, r.running, r.stopping)

	return r, nil
}

func (r *Ripper) starting(ctx context.Context) error {
	if r.cfg.URL == "" {
		return pkgerrors.Wrap(srerror.ErrInvalidParam, "no stream URL configured")
	}

	streamURL, err := icy.ResolveStreamURL(r.cfg.URL, r.cfg.UserAgent)
	if err != nil {
		// Resolution failures are usually transient; the dial loop
		// retries against the configured URL.
		r.logger.Warn("playlist resolution failed, using URL as-is", "url", r.cfg.URL, "err", err)
		streamURL = r.cfg.URL
	} else if streamURL != r.cfg.URL {
		r.logger.Info("resolved playlist", "url", streamURL)
	}

	r.url, err = icy.ParseURL(streamURL)
	if err != nil {
		return err
	}

	rules := metaparse.LoadRulesFile(r.cfg.RulesFile, r.logger)
	r.engine = metaparse.NewEngine(rules, r.logger)

	return nil
}

func (r *Ripper) running(ctx context.Context) error {
	pipe, err := newPipeline(ctx, r.cfg.ChunkSize, r.cfg.NumChunks)
	if err != nil {
		return err
	}
	r.pipe = pipe

	r.produceWg.Add(1)
	go func() {
		defer r.produceWg.Done()
		defer pipe.CloseWrite()
		r.produceErr = r.produce(ctx, pipe)
	}()

	r.consume(ctx, pipe)
	r.produceWg.Wait()

	if r.produceErr != nil && ctx.Err() == nil {
		return r.produceErr
	}

	<-ctx.Done()
	return nil
}

func (r *Ripper) stopping(_ error) error {
	r.logger.Info("stopping")
	return nil
}

// produce owns the connection: dial, extract, feed the pipeline,
// reconnect with backoff on transport errors. Each attempt parses a
// fresh header.
func (r *Ripper) produce(ctx context.Context, pipe *pipeline) error {
	boff := backoff.New(ctx, r.cfg.backoffConfig())

	lastRaw := ""
	lastCT := icy.ContentUnknown
	connected := false

	for boff.Ongoing() {
		if connected {
			r.metrics.reconnects.Inc()
			r.logger.Info("reconnecting", "attempt", boff.NumRetries())
		}

		ripped, err := r.rip(ctx, pipe, &lastRaw, &lastCT, connected)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			if isFatalStreamError(err) {
				return err
			}
			r.logger.Warn("stream disconnected", "err", err, "ripped", ripped)
		}
		if ripped > 0 {
			connected = true
			boff.Reset()
		}
		boff.Wait()
	}

	return boff.Err()
}

// rip runs one connection until it drops, returning how many audio
// bytes it pushed into the pipeline.
func (r *Ripper) rip(ctx context.Context, pipe *pipeline, lastRaw *string, lastCT *icy.ContentType, reconnect bool) (int64, error) {
	conn, err := icy.Dial(ctx, r.url, &icy.DialConfig{
		ConnectTimeout: r.cfg.ConnectTimeout,
		ReadTimeout:    r.cfg.ReadTimeout,
		UserAgent:      r.cfg.UserAgent,
	})
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	// Unblock a read stuck in the kernel when the service stops. The
	// done channel releases the watcher when this attempt returns, so
	// reconnects do not pile up goroutines.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	header := conn.Header
	r.logger.Info("stream connected",
		"name", header.Name,
		"genre", header.Genre,
		"content_type", header.ContentType.String(),
		"metaint", header.MetaInt,
		"bitrate", header.Bitrate)

	if header.MetaInt == 0 {
		r.logger.Warn("stream sends no metadata, recording one continuous file")
	}

	ct := header.ContentType
	if reconnect && ct != *lastCT {
		// The relay switched formats while we were away; the current
		// track cannot continue across that.
		r.logger.Info("content type changed across reconnect",
			"from", lastCT.String(), "to", ct.String())
		r.emitBoundary(pipe, metaEvent{reset: true, ct: ct})
		*lastRaw = ""
	}
	*lastCT = ct
	r.setStation(header.Name)

	onMeta := func(raw string) {
		if raw == *lastRaw {
			return
		}
		*lastRaw = raw
		r.metrics.metadataUpdates.Inc()
		r.emitBoundary(pipe, metaEvent{raw: raw, ct: ct})
	}

	ex := icy.NewExtractor(header.MetaInt, &pipeWriter{ctx: ctx, pipe: pipe}, onMeta)

	var ripped int64
	buf := make([]byte, r.cfg.ChunkSize)
	for {
		if ctx.Err() != nil {
			return ripped, nil
		}
		n, err := conn.Read(buf)
		if n > 0 {
			audio, ferr := ex.Feed(buf[:n])
			ripped += int64(audio)
			if ferr != nil {
				return ripped, ferr
			}
		}
		if err != nil {
			if err == io.EOF {
				return ripped, pkgerrors.Wrap(srerror.ErrSocketClosed, "server closed the stream")
			}
			return ripped, err
		}
	}
}

// setStation stashes the advertised station name for the consumer's
// continuous-file fallback. It is the only header detail that crosses
// from the producer to the consumer outside the pipeline.
func (r *Ripper) setStation(name string) {
	if name == "" {
		return
	}
	r.stationMu.Lock()
	r.station = name
	r.stationMu.Unlock()
}

func (r *Ripper) stationName() string {
	r.stationMu.Lock()
	defer r.stationMu.Unlock()
	return r.station
}

// stationDir returns the per-station subdirectory tracks are filed
// under, or "" before any header arrived.
func (r *Ripper) stationDir() string {
	return charset.SanitizeFilename(charset.Normalize(r.stationName()))
}

func (r *Ripper) emitBoundary(pipe *pipeline, ev metaEvent) {
	// Queue the event before the boundary becomes visible, so the
	// consumer can never observe a boundary whose event is still in
	// flight and misapply it to a later split.
	select {
	case r.metaCh <- ev:
	default:
		// The consumer is far behind; the newer boundary position
		// supersedes the older one anyway.
		r.logger.Warn("metadata event dropped, consumer lagging", "metadata", ev.raw)
	}
	if err := pipe.SetBoundaryHere(); err != nil {
		r.logger.Error("failed to set track boundary", "err", err)
	}
}

// pipeWriter adapts the pipeline's blocking write to io.Writer for
// the extractor.
type pipeWriter struct {
	ctx  context.Context
	pipe *pipeline
}

func (w *pipeWriter) Write(b []byte) (int, error) {
	if err := w.pipe.Write(w.ctx, b); err != nil {
		return 0, err
	}
	return len(b), nil
}

// consume drains the pipeline into track files, rotating on the
// boundaries the producer marked. It returns when the pipeline is
// drained after CloseWrite or the context dies; the current file is
// flushed and closed either way.
func (r *Ripper) consume(ctx context.Context, pipe *pipeline) {
	var (
		prev       *metaparse.TrackInfo
		track      *TrackFile
		aligner    *frameAligner
		discarding bool
	)

	ct := icy.ContentUnknown

	closeTrack := func() {
		if track == nil {
			return
		}
		if tail := aligner.Flush(); len(tail) > 0 {
			if _, err := track.Write(tail); err != nil {
				r.logger.Error("error flushing track", "err", err)
			}
		}
		saved := track.save && track.Written() > 0
		if err := r.writer.Close(track); err != nil {
			r.logger.Error("error closing track", "err", err, "name", track.Name())
		}
		if saved {
			r.metrics.tracksCompleted.Inc()
		} else {
			r.metrics.tracksDiscarded.Inc()
		}
		track = nil
		aligner = nil
	}

	openTrack := func(name string, save bool) {
		f, err := r.writer.Open(name, save)
		if err != nil {
			// Fatal to this track only; audio is dropped until the
			// next boundary gives us another chance.
			r.logger.Error("cannot open track, discarding until next boundary", "err", err, "name", name)
			discarding = true
			return
		}
		track = f
		aligner = newFrameAligner(ct)
		discarding = false
	}

	handleEvent := func(ev metaEvent) {
		if ev.reset {
			closeTrack()
			prev = nil
			discarding = false
			ct = ev.ct
			return
		}
		ct = ev.ct

		ti := r.engine.Parse(ev.raw, prev)
		switch Decide(prev, ti) {
		case SameTrack:
			// Encoders re-send the same string; never split on it.
		case NoMetadata:
			// Unparseable metadata; the current file keeps going.
		case NewTrack:
			closeTrack()
			name := path.Join(r.stationDir(), CandidateName(ti, ct))
			r.logger.Info("track boundary",
				"artist", ti.Artist, "title", ti.Title, "name", name, "save", ti.SaveTrack)
			openTrack(name, ti.SaveTrack)
		}
		prev = ti
	}

	// Once the service context dies, keep reading against a background
	// context until the producer's CloseWrite yields io.EOF. Audio the
	// producer already handed over still belongs to the current track.
	readCtx := ctx

	buf := make([]byte, r.cfg.ChunkSize)
	for {
		n, boundary, err := pipe.Read(readCtx, buf)
		if boundary {
			events := r.drainMeta()
			pipe.ClearBoundary()
			for _, ev := range events {
				handleEvent(ev)
			}
			continue
		}
		if err != nil {
			if errors.Is(err, context.Canceled) && readCtx == ctx {
				readCtx = context.Background()
				continue
			}
			if err != io.EOF {
				r.logger.Error("pipeline read failed", "err", err)
			}
			break
		}
		if n == 0 {
			continue
		}

		if track == nil && !discarding {
			// No boundary seen yet, or the stream has no metadata at
			// all: one continuous file named after the station.
			openTrack(path.Join(r.stationDir(), ContinuousName(r.stationName(), ct)), true)
		}
		if track == nil {
			continue
		}

		if out := aligner.Feed(buf[:n]); len(out) > 0 {
			if _, err := track.Write(out); err != nil {
				r.logger.Error("error writing track, discarding until next boundary", "err", err)
				closeTrack()
				discarding = true
				continue
			}
			r.metrics.bytesRipped.Add(float64(len(out)))
		}
		r.metrics.bufferHighWater.Set(float64(pipe.HighWater()))
	}

	closeTrack()
}

// drainMeta empties the metadata channel, returning the queued events
// in arrival order.
func (r *Ripper) drainMeta() []metaEvent {
	var events []metaEvent
	for {
		select {
		case ev := <-r.metaCh:
			events = append(events, ev)
		default:
			return events
		}
	}
}

func isFatalStreamError(err error) bool {
	code, ok := srerror.CodeOf(err)
	if !ok {
		return false
	}
	switch code {
	case srerror.ErrInvalidURL, srerror.ErrInvalidParam,
		srerror.ErrHTTP401, srerror.ErrHTTP403, srerror.ErrHTTP407:
		// Retrying cannot fix a bad URL or rejected credentials.
		return true
	default:
		return false
	}
}
