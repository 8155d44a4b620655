package gwatchdog

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/goban-engine/goban/internal/gchan"
	"github.com/goban-engine/goban/internal/glog"
)

// DefaultAckTimeout is how long a broadcast move may go unacknowledged
// before the watchdog reports it.
const DefaultAckTimeout = 3 * time.Second

// Timeout reports one armed move whose acknowledgment never arrived.
type Timeout struct {
	Sequence uint32

	// BlobHash is the hash the move was armed with,
	// so the consumer can correlate the timeout
	// with the blob it broadcast.
	BlobHash []byte
}

// AckWatchdog tracks locally broadcast moves that are awaiting
// acknowledgment from the network.
//
// Arm starts a single-shot timer for one move.
// A matching Ack stops the timer with no visible effect.
// If the timer elapses first, the watchdog emits exactly one [Timeout]
// for that move on the Timeouts channel.
// Acknowledging one move never disturbs the timer of another.
type AckWatchdog struct {
	log *slog.Logger

	timeout time.Duration

	armRequests chan armRequest
	ackRequests chan ackRequest

	expirations chan Timeout
	timeouts    chan Timeout

	// Tracks the kernel and every pending move's timer goroutine.
	wg sync.WaitGroup
}

// NewAckWatchdog returns an AckWatchdog emitting timeouts after
// the given duration. Pass [DefaultAckTimeout] outside of tests.
//
// Cancel the context to release the watchdog's resources;
// cancellation stops all pending timers without emitting timeouts.
func NewAckWatchdog(ctx context.Context, log *slog.Logger, timeout time.Duration) *AckWatchdog {
	w := &AckWatchdog{
		log: log,

		timeout: timeout,

		armRequests: make(chan armRequest), // Unbuffered since requests are synchronous.
		ackRequests: make(chan ackRequest),

		expirations: make(chan Timeout),
		timeouts:    make(chan Timeout),
	}
	w.wg.Add(1)
	go w.kernel(ctx)
	return w
}

// Wait blocks until w's background goroutines complete.
// The goroutines are tied to the lifecycle of the context
// passed to [NewAckWatchdog].
func (w *AckWatchdog) Wait() {
	w.wg.Wait()
}

// Timeouts returns the channel on which unacknowledged moves are reported.
// The consumer must receive from this channel in its main loop.
func (w *AckWatchdog) Timeouts() <-chan Timeout {
	return w.timeouts
}

// Arm starts the acknowledgment timer for one broadcast move.
// Arming a sequence that is already pending replaces its timer,
// which is the resend path taking another shot at delivery.
//
// Reports false only if the context was canceled before
// the watchdog registered the move.
func (w *AckWatchdog) Arm(ctx context.Context, seq uint32, blobHash []byte) bool {
	req := armRequest{
		Seq:   seq,
		Hash:  blobHash,
		Ready: make(chan struct{}),
	}
	_, ok := gchan.ReqResp(
		ctx, w.log,
		w.armRequests, req,
		req.Ready,
		"arming ack watchdog",
	)
	return ok
}

// Ack cancels the pending timer for the move matching seq and blobHash.
// Acks for unknown sequences or mismatched hashes are ignored,
// so duplicate and stale acknowledgments are harmless.
func (w *AckWatchdog) Ack(ctx context.Context, seq uint32, blobHash []byte) {
	req := ackRequest{
		Seq:   seq,
		Hash:  blobHash,
		Ready: make(chan struct{}),
	}
	_, _ = gchan.ReqResp(
		ctx, w.log,
		w.ackRequests, req,
		req.Ready,
		"acking watched move",
	)
}

type armRequest struct {
	Seq  uint32
	Hash []byte

	Ready chan struct{}
}

type ackRequest struct {
	Seq  uint32
	Hash []byte

	Ready chan struct{}
}

// pendingMove is the kernel's record of one armed move.
type pendingMove struct {
	Hash []byte

	// Closed by the kernel to stop the timer goroutine.
	Cancel chan struct{}
}

func (w *AckWatchdog) kernel(ctx context.Context) {
	defer w.wg.Done()

	pending := make(map[uint32]pendingMove)

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Stopping due to context cancellation", "cause", context.Cause(ctx))
			for _, p := range pending {
				close(p.Cancel)
			}
			return
		case req := <-w.armRequests:
			w.handleArm(ctx, pending, req)
			close(req.Ready)
		case req := <-w.ackRequests:
			w.handleAck(pending, req)
			close(req.Ready)
		case exp := <-w.expirations:
			if !w.handleExpiration(ctx, pending, exp) {
				return
			}
		}
	}
}

func (w *AckWatchdog) handleArm(ctx context.Context, pending map[uint32]pendingMove, req armRequest) {
	if prev, ok := pending[req.Seq]; ok {
		// Re-arm: the old timer must not fire for the replaced hash.
		close(prev.Cancel)
	}

	p := pendingMove{
		Hash:   req.Hash,
		Cancel: make(chan struct{}),
	}
	pending[req.Seq] = p

	w.wg.Add(1)
	go w.awaitAck(ctx, req.Seq, req.Hash, p.Cancel)
}

func (w *AckWatchdog) handleAck(pending map[uint32]pendingMove, req ackRequest) {
	p, ok := pending[req.Seq]
	if !ok {
		// Unknown or already resolved; nothing to do.
		return
	}
	if !bytes.Equal(p.Hash, req.Hash) {
		w.log.Debug(
			"Ignoring ack whose hash does not match the armed move",
			"seq", req.Seq,
			"armed_hash", glog.Hex(p.Hash),
			"acked_hash", glog.Hex(req.Hash),
		)
		return
	}

	close(p.Cancel)
	delete(pending, req.Seq)
}

// handleExpiration forwards one elapsed timer to the timeouts channel,
// while continuing to serve arm and ack requests so that
// a busy consumer cannot deadlock the kernel.
func (w *AckWatchdog) handleExpiration(ctx context.Context, pending map[uint32]pendingMove, exp Timeout) bool {
	p, ok := pending[exp.Sequence]
	if !ok || !bytes.Equal(p.Hash, exp.BlobHash) {
		// Resolved or re-armed while the expiration was in flight.
		return true
	}
	delete(pending, exp.Sequence)

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Stopping due to context cancellation", "cause", context.Cause(ctx))
			for _, p := range pending {
				close(p.Cancel)
			}
			return false
		case w.timeouts <- exp:
			return true
		case req := <-w.armRequests:
			w.handleArm(ctx, pending, req)
			close(req.Ready)
		case req := <-w.ackRequests:
			w.handleAck(pending, req)
			close(req.Ready)
		}
	}
}

// awaitAck runs in its own goroutine, one per armed move.
func (w *AckWatchdog) awaitAck(ctx context.Context, seq uint32, hash []byte, cancel <-chan struct{}) {
	defer w.wg.Done()

	timer := time.NewTimer(w.timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return
	case <-cancel:
		return
	case <-timer.C:
		// Hand the expiration back to the kernel,
		// which decides whether it is still relevant.
		select {
		case w.expirations <- Timeout{Sequence: seq, BlobHash: hash}:
		case <-ctx.Done():
		case <-cancel:
		}
	}
}
