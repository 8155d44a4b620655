package gchannel

import (
	"fmt"
	"testing"

	"github.com/goban-engine/goban/gp2p"
	"github.com/stretchr/testify/require"
)

func TestDedupWindow_evictsOldestAtCapacity(t *testing.T) {
	t.Parallel()

	w := newDedupWindow(4)

	for i := uint32(0); i < 4; i++ {
		w.Record(dedupKey{Peer: "p", Seq: i})
	}
	for i := uint32(0); i < 4; i++ {
		require.True(t, w.Seen(dedupKey{Peer: "p", Seq: i}))
	}

	// One past capacity evicts only the oldest.
	w.Record(dedupKey{Peer: "p", Seq: 4})
	require.False(t, w.Seen(dedupKey{Peer: "p", Seq: 0}))
	for i := uint32(1); i <= 4; i++ {
		require.True(t, w.Seen(dedupKey{Peer: "p", Seq: i}))
	}
}

func TestDedupWindow_rerecordDoesNotEvict(t *testing.T) {
	t.Parallel()

	w := newDedupWindow(3)
	for i := uint32(0); i < 3; i++ {
		w.Record(dedupKey{Peer: "p", Seq: i})
	}

	// Re-recording a present key is a no-op,
	// not a fresh entry that would push out seq 0.
	w.Record(dedupKey{Peer: "p", Seq: 1})
	w.Record(dedupKey{Peer: "p", Seq: 2})
	require.True(t, w.Seen(dedupKey{Peer: "p", Seq: 0}))
}

func TestDedupWindow_distinguishesPeers(t *testing.T) {
	t.Parallel()

	w := newDedupWindow(DedupWindowSize)
	w.Record(dedupKey{Peer: "alice", Seq: 7})
	require.True(t, w.Seen(dedupKey{Peer: "alice", Seq: 7}))
	require.False(t, w.Seen(dedupKey{Peer: "bob", Seq: 7}))
}

func TestDedupWindow_sustainedFloodStaysBounded(t *testing.T) {
	t.Parallel()

	w := newDedupWindow(DedupWindowSize)
	for i := 0; i < 3*DedupWindowSize; i++ {
		w.Record(dedupKey{
			Peer: peerIDForFlood(i),
			Seq:  uint32(i),
		})
	}

	require.Len(t, w.fifo, DedupWindowSize)
	require.Len(t, w.set, DedupWindowSize)

	// Only the newest window remains.
	i := 3*DedupWindowSize - 1
	require.True(t, w.Seen(dedupKey{Peer: peerIDForFlood(i), Seq: uint32(i)}))
	require.False(t, w.Seen(dedupKey{Peer: peerIDForFlood(0), Seq: 0}))
}

func peerIDForFlood(i int) gp2p.PeerID {
	return gp2p.PeerID(fmt.Sprintf("peer-%d", i%5))
}
