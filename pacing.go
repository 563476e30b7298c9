package tsreplay

import (
	"context"
	"os"
	"time"
)

// pausePollInterval is how often the producer checks the pause flag while
// suspended.
const pausePollInterval = 500 * time.Nanosecond

// blockTimeOutOfRangeMaxMS is the guard threshold past which a block's
// nominal duration is treated as a parsing anomaly rather than real drift.
const blockTimeOutOfRangeMaxMS = 250.0

// syncDriftThresholdMS is the stream-level drift beyond which macro-sync
// gives up correcting gradually and resets instead.
const syncDriftThresholdMS = 100.0

// syncAccumulators holds the drift-correction state that resets together
// whenever pacing loses its reference point: on resume from pause, on
// reposition, or on a block-time anomaly, or once drift exceeds the
// macro-sync threshold. A monotonic clock regression doesn't reset the
// whole struct — it forces totalSyncDiff to -1000 so the next block's
// sleep catches up hard, without losing blockTimeTotal/pauseTotalMS.
type syncAccumulators struct {
	totalSyncDiff  float64 // ms, carried into the next block's per-packet sleep
	blockTimeTotal float64 // ms, accumulated since timeSyncBStart
	pauseTotalMS   float64 // ms paused since timeSyncBStart
	timeSyncBStart time.Time
}

func (a *syncAccumulators) reset(now time.Time) {
	a.totalSyncDiff = 0
	a.blockTimeTotal = 0
	a.pauseTotalMS = 0
	a.timeSyncBStart = now
}

// pace is the producer goroutine's entry point: the pacing loop described
// in the component design, run until ctx is cancelled or the stream ends
// without looping.
func (r *Replay) pace(ctx context.Context) {
	var sync syncAccumulators
	sync.reset(time.Now())
	lastNow := time.Now()

	for {
		if ctx.Err() != nil {
			return
		}

		if resumed := r.waitWhilePaused(ctx); resumed {
			sync.reset(time.Now())
		}
		if ctx.Err() != nil {
			return
		}

		if r.reposition.Load() {
			if err := r.handleReposition(); err != nil {
				logger.Printf("tsreplay: reposition failed: %v", err)
				return
			}
			sync.reset(time.Now())
			lastNow = time.Now()
			continue
		}

		blockEnd, found := r.input.findBlockEnd(r.input.cursor)
		if !found {
			r.input.advance()
			eof, err := r.input.refill()
			if err != nil {
				logger.Printf("tsreplay: read error: %v", err)
				return
			}
			if eof {
				if r.advanceOnEOF() {
					sync.reset(time.Now())
					lastNow = time.Now()
				} else {
					r.ring.pushEOF()
					return
				}
			}
			continue
		}

		blockSize := (blockEnd - r.input.cursor) / r.tsSize
		pcrNow := r.input.pcrAt(blockEnd)
		deltaPCR := pcrNow - r.pcrLast
		blockTimeMS := deltaToMS(deltaPCR)

		if blockTimeMS < 0 || blockTimeMS > blockTimeOutOfRangeMaxMS {
			logger.Printf("tsreplay: block time out of range: %.3fms", blockTimeMS)
			r.input.cursor = blockEnd
			r.pcrLast = pcrNow
			sync.reset(time.Now())
			continue
		}

		tsSyncNS := perPacketSleepNS(blockTimeMS, sync.totalSyncDiff, blockSize)

		repositioned := r.runBlock(ctx, blockEnd, tsSyncNS, &sync, &lastNow)
		if ctx.Err() != nil {
			return
		}
		if repositioned {
			continue
		}

		r.pcrLast = pcrNow
		sync.blockTimeTotal += blockTimeMS

		now := time.Now()
		timeSyncDiffMS := float64(now.Sub(sync.timeSyncBStart)) / float64(time.Millisecond)
		sync.totalSyncDiff = sync.blockTimeTotal - timeSyncDiffMS - sync.pauseTotalMS
		if r.metrics != nil {
			r.metrics.PacingErrorMS.Observe(absF(sync.totalSyncDiff))
		}

		if now.Before(sync.timeSyncBStart) {
			logger.Printf("tsreplay: timetravel detected")
			sync.totalSyncDiff = -1000
		} else if absF(sync.totalSyncDiff) > syncDriftThresholdMS {
			logger.Printf("tsreplay: wrong syncing time: %.3fms", sync.totalSyncDiff)
			sync.reset(now)
		}
	}
}

// waitWhilePaused blocks while the pause flag is set, polling at
// pausePollInterval, and reports whether it actually paused (so callers
// know to reset drift accumulators on resume).
func (r *Replay) waitWhilePaused(ctx context.Context) (resumed bool) {
	if r.pause.Load() == 0 {
		return false
	}
	for r.pause.Load() != 0 {
		select {
		case <-ctx.Done():
			return false
		default:
		}
		time.Sleep(pausePollInterval)
	}
	return true
}

// perPacketSleepNS computes the nanosecond sleep to spread blockTimeMS
// (plus any carried drift) evenly across blockSize packets.
func perPacketSleepNS(blockTimeMS, totalSyncDiff float64, blockSize int) int64 {
	if blockSize <= 0 {
		return 0
	}
	ns := (blockTimeMS + totalSyncDiff) * 1e6 / float64(blockSize)
	if ns < 0 {
		return 0
	}
	return int64(ns)
}

// runBlock pushes every packet from the current cursor up to (but not
// including) blockEnd, sleeping tsSyncNS between each and correcting for
// drift within the block (micro-sync). It returns early if a reposition
// is requested or a monotonic clock regression is observed; on a clock
// regression it also logs and forces the next block's catch-up itself,
// since the caller treats an early return as "skip this block's normal
// drift bookkeeping" either way.
func (r *Replay) runBlock(ctx context.Context, blockEnd int, tsSyncNS int64, sync *syncAccumulators, lastNow *time.Time) (repositioned bool) {
	blockStart := time.Now()
	var pauseBlockNS int64
	var calcBlockTimeNS int64
	nominalTsSyncNS := tsSyncNS
	current := tsSyncNS

	for r.input.cursor != blockEnd {
		if ctx.Err() != nil {
			return false
		}
		for r.pause.Load() != 0 {
			pauseStart := time.Now()
			time.Sleep(pausePollInterval)
			pauseBlockNS += time.Since(pauseStart).Nanoseconds()
			if ctx.Err() != nil {
				return false
			}
		}
		if r.reposition.Load() {
			return true
		}

		payload := r.input.payload(r.input.cursor)
		if payload == nil {
			return false
		}
		if r.ring.push(payload) && r.metrics != nil {
			r.metrics.Overflows.Inc()
		}
		if r.input.headerOffset != 0 {
			r.lastPositionMS.Store(r.input.timestampMS(r.input.cursor) - r.startTime)
		}
		r.input.cursor += r.tsSize

		time.Sleep(time.Duration(current))
		calcBlockTimeNS += current

		now := time.Now()
		if now.Before(*lastNow) {
			logger.Printf("tsreplay: timetravel detected")
			sync.totalSyncDiff = -1000
			*lastNow = now
			return true
		}
		*lastNow = now

		elapsedNS := now.Sub(blockStart).Nanoseconds() - pauseBlockNS
		if elapsedNS > calcBlockTimeNS {
			current = 0
		} else {
			current = nominalTsSyncNS
		}
	}

	sync.pauseTotalMS += float64(pauseBlockNS) / float64(time.Millisecond)
	return false
}

// advanceOnEOF handles a short read from the input buffer: if looping is
// enabled it rewinds to the start of the file and requests a reposition,
// returning true; otherwise it returns false so the caller pushes the EOF
// sentinel and the producer exits.
func (r *Replay) advanceOnEOF() bool {
	if !r.opts.loop {
		return false
	}
	r.seekTarget.Store(0)
	r.reposition.Store(true)
	return true
}

// handleReposition reopens the file at the most recently requested seek
// target and relocates the next reachable PCR, clearing the reposition
// flag when done.
func (r *Replay) handleReposition() error {
	target := r.seekTarget.Load()
	r.reposition.Store(false)

	f, err := os.Open(r.opts.filename)
	if err != nil {
		return err
	}
	if r.file != nil {
		r.file.Close()
	}
	r.file = f
	r.input.file = f

	r.input.rewind(target)
	if _, err := r.input.refill(); err != nil {
		return err
	}

	if off, found := scanForPCR(r.input.it, r.input.buf[:r.input.end], r.tsSize, r.input.headerOffset, 0); found {
		r.input.cursor = off
		r.pcrLast = r.input.pcrAt(off)
		return nil
	}

	// No PCR reachable from the requested target; fall back to the start
	// of the file rather than stalling pacing indefinitely.
	r.input.rewind(0)
	if _, err := r.input.refill(); err != nil {
		return err
	}
	off, found := scanForPCR(r.input.it, r.input.buf[:r.input.end], r.tsSize, r.input.headerOffset, 0)
	if !found {
		return ErrFirstPCRNotFound
	}
	r.input.cursor = off
	r.pcrLast = r.input.pcrAt(off)
	return nil
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
