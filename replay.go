package tsreplay

import (
	"context"
	"os"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Replay drives one PCR-paced file_input session: a producer goroutine
// reads and paces a TS or M2TS file into an SPSC ring, and the caller's
// consumer loop drains the ring through Next, which forwards packets to the
// configured sink.
type Replay struct {
	opts      Options
	sessionID uuid.UUID

	file      *os.File
	fileSize  int64
	tsSize    int
	startTime int64
	length    int64

	input *inputBuffer
	ring  *packetRing

	// pcrLast is owned exclusively by the producer goroutine once pacing
	// starts; open() sets its initial value before that goroutine exists.
	pcrLast int64

	pause          atomic.Int32
	reposition     atomic.Bool
	seekTarget     atomic.Int64
	closed         atomic.Bool
	lastPositionMS atomic.Int64

	eg     *errgroup.Group
	egCtx  context.Context
	cancel context.CancelFunc

	metrics *Metrics
}

// NewReplay opens filename, probes its container format, and — unless
// WithCheckLength is set — starts the producer goroutine, plus the
// resume-offset persistence goroutine when an offset store is configured.
// The returned Replay must be closed with Close to release its file
// handle and stop its goroutines.
func NewReplay(ctx context.Context, opts ...Option) (*Replay, error) {
	o := Options{bufferSize: defaultBufferSize}
	for _, opt := range opts {
		opt(&o)
	}
	if o.filename == "" {
		return nil, ErrMissingFilename
	}
	if o.offsetStore == nil && o.lock != "" {
		o.offsetStore = NewLockFileStore(o.lock)
	}

	r := &Replay{opts: o, sessionID: uuid.New()}
	r.pause.Store(o.pause)
	r.metrics = NewMetrics(o.registry, r.sessionID.String())

	if err := r.open(ctx); err != nil {
		return nil, err
	}

	if o.checkLength {
		r.file.Close()
		r.file = nil
		return r, nil
	}

	egCtx, cancel := context.WithCancel(ctx)
	eg, egCtx := errgroup.WithContext(egCtx)
	r.eg = eg
	r.egCtx = egCtx
	r.cancel = cancel

	eg.Go(func() error {
		r.pace(egCtx)
		return nil
	})

	if o.offsetStore != nil {
		eg.Go(func() error {
			r.persistOffsetPeriodically(egCtx)
			return nil
		})
	}

	return r, nil
}

// open opens the file, probes its format, and seeds the input buffer at
// any persisted resume offset.
func (r *Replay) open(ctx context.Context) error {
	f, err := os.Open(r.opts.filename)
	if err != nil {
		return err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}
	fileSize := info.Size()

	probeWindow := make([]byte, r.opts.bufferSize)
	n, err := f.ReadAt(probeWindow, 0)
	if err != nil && n == 0 {
		f.Close()
		return err
	}
	probeWindow = probeWindow[:n]

	res, err := probe(probeWindow, fileSize, f)
	if err != nil {
		f.Close()
		return err
	}

	r.file = f
	r.fileSize = fileSize
	r.tsSize = res.tsSize
	r.startTime = res.startTime
	r.length = res.length

	headerOffset := 0
	if res.tsSize == m2tsCellSize {
		headerOffset = 4
	}

	r.input = newInputBuffer(f, fileSize, res.tsSize, r.opts.bufferSize)
	r.ring = newPacketRing(r.opts.bufferSize / tsPacketSize)

	resumeOffset := loadResumeOffset(ctx, r.opts.offsetStore, r.opts.filename, fileSize)
	if resumeOffset > 0 {
		r.input.rewind(resumeOffset)
		if _, err := r.input.refill(); err != nil {
			f.Close()
			return err
		}
		if off, found := scanForPCR(r.input.it, r.input.buf[:r.input.end], res.tsSize, headerOffset, 0); found {
			r.input.cursor = off
			r.pcrLast = r.input.pcrAt(off)
			return nil
		}
		logger.Printf("tsreplay: resume offset %d has no reachable PCR, restarting from 0", resumeOffset)
	}

	r.input.rewind(0)
	copy(r.input.buf, probeWindow)
	r.input.end = len(probeWindow)
	r.input.cursor = res.cursor
	r.pcrLast = r.input.pcrAt(res.cursor)
	return nil
}

// Length returns the known stream length in milliseconds, or 0 for TS
// files (or M2TS files whose tail couldn't be parsed).
func (r *Replay) Length() int64 {
	return r.length
}

// Pause sets the pause flag: nonzero suspends the pacing loop, 0 resumes
// it. The producer polls this at 500ns resolution.
func (r *Replay) Pause(n int32) {
	r.pause.Store(n)
}

// Position requests a reposition to ms milliseconds into the stream.
// Supported only for M2TS files with a known length; returns
// ErrPositionUnsupported otherwise. It returns the pre-seek playback
// position in ms, computed from the most recently observed M2TS
// timestamp.
func (r *Replay) Position(ms int64) (int64, error) {
	if r.tsSize != m2tsCellSize || r.length <= 0 {
		return 0, ErrPositionUnsupported
	}
	if ms < 0 || ms >= r.length {
		return 0, ErrPositionUnsupported
	}

	tsCount := r.fileSize / m2tsCellSize
	tsSkip := (ms * tsCount) / r.length
	fileSkip := tsSkip * m2tsCellSize

	r.seekTarget.Store(fileSkip)
	r.reposition.Store(true)

	return r.currentPositionMS(), nil
}

// currentPositionMS reports the playback position implied by the M2TS
// timestamp of the last packet the producer pushed, relative to startTime.
func (r *Replay) currentPositionMS() int64 {
	return r.lastPositionMS.Load()
}

// Close stops the producer and persistence goroutines, waits for them to
// return, and releases the file handle. Safe to call once; a second call
// returns ErrClosed.
func (r *Replay) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	if r.cancel != nil {
		r.cancel()
	}
	if r.eg != nil {
		r.eg.Wait()
	}
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}

// persistOffsetPeriodically saves the producer's current fileSkip every
// two seconds for the lifetime of the replay.
func (r *Replay) persistOffsetPeriodically(ctx context.Context) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			offset := r.input.fileSkipAtomic.Load()
			if err := r.opts.offsetStore.Save(ctx, r.opts.filename, offset); err != nil {
				logger.Printf("tsreplay: failed to persist resume offset: %v", err)
			}
		}
	}
}

// Next blocks until a packet or EOF is ready on the ring, forwarding it
// to the configured sink. It is the Consumer Bridge's main routine and is
// meant to be called in a loop by the embedding event loop; NewReplay
// does not spawn it automatically since packet delivery ordering is the
// caller's responsibility. The slice passed to HandlePacket is reused
// after the call returns — sinks that need to retain a packet must copy
// it.
func (r *Replay) Next() (ok bool) {
	item := packetPool.get()
	defer packetPool.put(item)

	popped, eof := r.ring.pop(item.s)
	if r.metrics != nil {
		r.metrics.RingFill.Set(float64(r.ring.depth()))
	}
	if eof {
		if r.opts.callback != nil {
			r.opts.callback()
		}
		return false
	}
	if !popped {
		return true
	}
	if r.opts.sink != nil {
		r.opts.sink.HandlePacket(item.s)
	}
	return true
}
