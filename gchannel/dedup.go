package gchannel

import "github.com/goban-engine/goban/gp2p"

// DedupWindowSize is how many delivery keys the channel remembers
// before forgetting the oldest.
const DedupWindowSize = 8192

// dedupKey identifies one delivery of one move:
// gossip redelivers under the same sender and sequence.
type dedupKey struct {
	Peer gp2p.PeerID
	Seq  uint32
}

// dedupWindow is a FIFO set with a fixed capacity.
// Only the channel kernel touches it.
type dedupWindow struct {
	max  int
	fifo []dedupKey
	set  map[dedupKey]struct{}
}

func newDedupWindow(max int) *dedupWindow {
	return &dedupWindow{
		max: max,
		set: make(map[dedupKey]struct{}),
	}
}

func (w *dedupWindow) Seen(k dedupKey) bool {
	_, ok := w.set[k]
	return ok
}

func (w *dedupWindow) Record(k dedupKey) {
	if _, ok := w.set[k]; ok {
		return
	}

	if len(w.fifo) >= w.max {
		oldest := w.fifo[0]
		w.fifo = w.fifo[1:]
		delete(w.set, oldest)
	}

	w.fifo = append(w.fifo, k)
	w.set[k] = struct{}{}
}
