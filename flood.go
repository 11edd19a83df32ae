package erc

import (
	"io"
	"sync"
	"time"
)

const (
	defaultFloodPenalty = 3 * time.Second
	defaultFloodMargin  = 10 * time.Second

	// drainRetryGrace is added to the penalty when scheduling a queue
	// retry, so the retry lands just after capacity has freed up.
	drainRetryGrace = 200 * time.Millisecond
)

// floodScheduler paces outbound lines to approximate the server-side flood
// control of RFC 2813 §5.8. It keeps a virtual clock, lastMessageTime, that
// advances by penalty for every line written; lines may be written while the
// clock is less than margin ahead of real time, which allows a short burst
// and then a sustained rate of one line per penalty.
//
// Forced sends skip the queue and the capacity check entirely. They exist
// for latency-critical replies (PONG); the possible burst violation is
// accepted.
type floodScheduler struct {
	mu sync.Mutex

	w       io.Writer
	penalty time.Duration
	margin  time.Duration

	last  time.Time // lastMessageTime; non-decreasing, >= now once primed
	queue [][]byte
	timer *time.Timer

	// onWrite observes every successful or attempted write, for the
	// connection's last-sent bookkeeping.
	onWrite func(t time.Time)
	logf    func(err error)

	now func() time.Time // test hook
}

func newFloodScheduler(w io.Writer, penalty, margin time.Duration, onWrite func(time.Time), logf func(error)) *floodScheduler {
	if penalty <= 0 {
		penalty = defaultFloodPenalty
	}
	if margin <= 0 {
		margin = defaultFloodMargin
	}
	return &floodScheduler{
		w:       w,
		penalty: penalty,
		margin:  margin,
		onWrite: onWrite,
		logf:    logf,
		now:     time.Now,
	}
}

// send writes or queues one complete wire line (terminator included).
// With force set the line is written immediately, ahead of anything queued.
func (s *floodScheduler) send(line []byte, force bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if force {
		now := s.now()
		if s.last.Before(now) {
			s.last = now
		}
		s.write(line)
		s.last = s.last.Add(s.penalty)
		return
	}

	s.queue = append(s.queue, line)
	s.drain()
}

// drain writes queued lines while capacity remains, then arms a single
// retry timer if anything is left. Caller must hold mu.
func (s *floodScheduler) drain() {
	now := s.now()
	if s.last.Before(now) {
		s.last = now
	}
	for len(s.queue) > 0 && s.last.Before(now.Add(s.margin)) {
		line := s.queue[0]
		s.queue = s.queue[1:]
		s.write(line)
		s.last = s.last.Add(s.penalty)
	}
	if len(s.queue) > 0 && s.timer == nil {
		s.timer = time.AfterFunc(s.penalty+drainRetryGrace, func() {
			s.mu.Lock()
			s.timer = nil
			s.drain()
			s.mu.Unlock()
		})
	}
}

// write performs one socket write. Errors are logged and swallowed: IRC
// gives no delivery guarantees, and a broken pipe will surface through the
// reader as a connection closure anyway.
func (s *floodScheduler) write(line []byte) {
	if _, err := s.w.Write(line); err != nil && s.logf != nil {
		s.logf(err)
	}
	if s.onWrite != nil {
		s.onWrite(s.now())
	}
}

// stop cancels any pending retry and discards the queue. Called when the
// connection goes down; queued lines for a dead socket have nowhere to go.
func (s *floodScheduler) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.queue = nil
}
