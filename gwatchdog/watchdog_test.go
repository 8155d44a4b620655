package gwatchdog_test

import (
	"context"
	"testing"
	"time"

	"github.com/goban-engine/goban/gwatchdog"
	"github.com/goban-engine/goban/internal/gtest"
	"github.com/stretchr/testify/require"
)

func TestAckWatchdog_timeoutFiresForUnackedMove(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := gwatchdog.NewAckWatchdog(ctx, gtest.NewLogger(t), 10*time.Millisecond)
	defer w.Wait()
	defer cancel()

	hash := []byte("blob-hash-0")
	require.True(t, w.Arm(ctx, 0, hash))

	to := gtest.ReceiveOrTimeout(t, w.Timeouts(), gtest.ScaleMs(500))
	require.Equal(t, uint32(0), to.Sequence)
	require.Equal(t, hash, to.BlobHash)

	// Exactly once.
	gtest.NotSendingSoon(t, w.Timeouts())
}

func TestAckWatchdog_ackCancelsTimer(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := gwatchdog.NewAckWatchdog(ctx, gtest.NewLogger(t), 25*time.Millisecond)
	defer w.Wait()
	defer cancel()

	hash := []byte("blob-hash-0")
	require.True(t, w.Arm(ctx, 0, hash))
	w.Ack(ctx, 0, hash)

	// Wait out the timer; nothing may arrive.
	time.Sleep(75 * time.Millisecond)
	gtest.NotSending(t, w.Timeouts())
}

func TestAckWatchdog_secondAckedMoveDoesNotRetriggerFirst(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := gwatchdog.NewAckWatchdog(ctx, gtest.NewLogger(t), 25*time.Millisecond)
	defer w.Wait()
	defer cancel()

	hash0 := []byte("blob-hash-0")
	hash1 := []byte("blob-hash-1")

	require.True(t, w.Arm(ctx, 0, hash0))
	w.Ack(ctx, 0, hash0)

	require.True(t, w.Arm(ctx, 1, hash1))
	w.Ack(ctx, 1, hash1)

	time.Sleep(75 * time.Millisecond)
	gtest.NotSending(t, w.Timeouts())
}

func TestAckWatchdog_mismatchedHashDoesNotCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := gwatchdog.NewAckWatchdog(ctx, gtest.NewLogger(t), 10*time.Millisecond)
	defer w.Wait()
	defer cancel()

	require.True(t, w.Arm(ctx, 0, []byte("real-hash")))
	w.Ack(ctx, 0, []byte("forged-hash"))

	to := gtest.ReceiveOrTimeout(t, w.Timeouts(), gtest.ScaleMs(500))
	require.Equal(t, uint32(0), to.Sequence)
}

func TestAckWatchdog_ackForUnknownSequenceIsHarmless(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := gwatchdog.NewAckWatchdog(ctx, gtest.NewLogger(t), 25*time.Millisecond)
	defer w.Wait()
	defer cancel()

	// No arm at all; the ack must be a no-op.
	w.Ack(ctx, 42, []byte("whatever"))
	gtest.NotSending(t, w.Timeouts())
}

func TestAckWatchdog_rearmReplacesTimer(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := gwatchdog.NewAckWatchdog(ctx, gtest.NewLogger(t), 10*time.Millisecond)
	defer w.Wait()
	defer cancel()

	require.True(t, w.Arm(ctx, 0, []byte("first-broadcast")))
	require.True(t, w.Arm(ctx, 0, []byte("second-broadcast")))

	// Only the replacement hash may be reported.
	to := gtest.ReceiveOrTimeout(t, w.Timeouts(), gtest.ScaleMs(500))
	require.Equal(t, []byte("second-broadcast"), to.BlobHash)
	gtest.NotSendingSoon(t, w.Timeouts())
}

func TestAckWatchdog_cancellationStopsPendingTimers(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := gwatchdog.NewAckWatchdog(ctx, gtest.NewLogger(t), time.Minute)

	require.True(t, w.Arm(ctx, 0, []byte("blob-hash-0")))
	require.True(t, w.Arm(ctx, 1, []byte("blob-hash-1")))

	cancel()
	w.Wait()
}
