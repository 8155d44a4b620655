package gchannel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/goban-engine/goban/gchain"
	"github.com/goban-engine/goban/gcrypto"
	"github.com/goban-engine/goban/gcstore"
	"github.com/goban-engine/goban/gexchange"
	"github.com/goban-engine/goban/ggame"
	"github.com/goban-engine/goban/gp2p"
	"github.com/goban-engine/goban/gscore"
	"github.com/goban-engine/goban/gwatchdog"
	"github.com/goban-engine/goban/gwire"
	"github.com/goban-engine/goban/internal/gchan"
	"github.com/goban-engine/goban/internal/glog"
)

// maxResends bounds how many times an unacknowledged move is
// rebroadcast before the channel gives up and leaves recovery
// to the sync protocol.
const maxResends = 3

// subscriberBuffer is the event buffer per subscriber.
// A subscriber that falls this far behind starts losing events.
const subscriberBuffer = 64

// ChannelConfig is the set of dependencies for one game channel.
type ChannelConfig struct {
	GameID gchain.GameID

	BoardSize int

	// Komi applied when the game ends by territory scoring.
	Komi float64

	// Broadcaster publishes to the game's topic.
	// The owner of the channel is responsible for having joined
	// the game on the underlying connection.
	Broadcaster gp2p.GameBroadcaster

	// Watchdog tracks acknowledgment of locally broadcast moves.
	Watchdog *gwatchdog.AckWatchdog

	// Signer, if set, signs every locally originated blob.
	// Registry is required when Signer is set, and when set it is
	// also used to check signatures on remote blobs.
	Signer   gcrypto.Signer
	Registry *gcrypto.Registry

	// Archive, if set, receives the finished game's final blob,
	// marshaled with Marshaler and keyed by the chain tip hash.
	Archive   gcstore.ArchiveStore
	Marshaler gwire.Marshaler

	// PlayerName labels outgoing chat messages.
	PlayerName string
}

func (c ChannelConfig) validate() error {
	var err error
	if c.GameID == "" {
		err = errors.Join(err, errors.New("ChannelConfig.GameID must not be empty"))
	}
	if c.BoardSize < 1 || c.BoardSize > 25 {
		err = errors.Join(err, fmt.Errorf("ChannelConfig.BoardSize must be in [1, 25] (got %d)", c.BoardSize))
	}
	if c.Broadcaster == nil {
		err = errors.Join(err, errors.New("ChannelConfig.Broadcaster must not be nil"))
	}
	if c.Watchdog == nil {
		err = errors.Join(err, errors.New("ChannelConfig.Watchdog must not be nil"))
	}
	if c.Signer != nil && c.Registry == nil {
		err = errors.Join(err, errors.New("ChannelConfig.Registry is required when Signer is set"))
	}
	if c.Archive != nil && c.Marshaler == nil {
		err = errors.Join(err, errors.New("ChannelConfig.Marshaler is required when Archive is set"))
	}
	return err
}

// Channel is the live replication unit for one game.
//
// All chain and state mutation happens on the channel's kernel
// goroutine, so remote deliveries, local submissions, and watchdog
// timeouts are serialized without locks.
type Channel struct {
	log *slog.Logger

	cfg ChannelConfig

	submitRequests    chan submitRequest
	remoteRequests    chan remoteRequest
	stateRequests     chan chan *ggame.State
	movesRequests     chan chan []ggame.Move
	subscribeRequests chan chan (<-chan Event)

	wg sync.WaitGroup
}

var _ gp2p.GameMessageHandler = (*Channel)(nil)

type submitRequest struct {
	Move ggame.Move

	// The test hook sets this to skip arming the watchdog.
	WithoutAck bool

	Resp chan error
}

type remoteRequest struct {
	From gp2p.PeerID
	Msg  gwire.GameMessage

	Resp chan gexchange.Feedback
}

// NewChannel returns a running Channel.
// Cancel the context to shut it down; see [*Channel.Wait].
func NewChannel(ctx context.Context, log *slog.Logger, cfg ChannelConfig) (*Channel, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid channel config: %w", err)
	}

	c := &Channel{
		log: log,

		cfg: cfg,

		submitRequests:    make(chan submitRequest), // Unbuffered since requests are synchronous.
		remoteRequests:    make(chan remoteRequest),
		stateRequests:     make(chan chan *ggame.State),
		movesRequests:     make(chan chan []ggame.Move),
		subscribeRequests: make(chan chan (<-chan Event)),
	}
	c.wg.Add(1)
	go c.kernel(ctx)
	return c, nil
}

// Wait blocks until the channel's background work completes.
// The kernel is tied to the context passed to [NewChannel].
func (c *Channel) Wait() {
	c.wg.Wait()
}

// GameID returns the game this channel replicates.
func (c *Channel) GameID() gchain.GameID {
	return c.cfg.GameID
}

// SubmitMove validates and applies a locally originated move,
// then broadcasts it to the game's peers.
// Rule violations surface as grules errors;
// moves after the game ended surface as [ggame.ErrGameOver].
func (c *Channel) SubmitMove(ctx context.Context, mv ggame.Move) error {
	req := submitRequest{
		Move: mv,
		Resp: make(chan error, 1),
	}
	resp, ok := gchan.ReqResp(
		ctx, c.log,
		c.submitRequests, req,
		req.Resp,
		"submitting local move",
	)
	if !ok {
		return fmt.Errorf("context finished while submitting move: %w", context.Cause(ctx))
	}
	return resp
}

// SendChat broadcasts a chat line to the game's peers.
// Chat does not touch the move chain,
// so it goes straight to the broadcaster.
func (c *Channel) SendChat(ctx context.Context, message string) error {
	from := c.cfg.PlayerName
	if from == "" {
		from = "anonymous"
	}
	ok := gchan.SendC(
		ctx, c.log,
		c.cfg.Broadcaster.OutgoingGameMessages(),
		gwire.GameMessage{Chat: &gwire.ChatMessage{
			GameID:    c.cfg.GameID,
			From:      from,
			Message:   message,
			Timestamp: uint64(time.Now().Unix()),
		}},
		"sending chat message",
	)
	if !ok {
		return fmt.Errorf("context finished while sending chat: %w", context.Cause(ctx))
	}
	return nil
}

// HandleGameMessage implements [gp2p.GameMessageHandler] for
// messages addressed to this channel's game.
func (c *Channel) HandleGameMessage(ctx context.Context, from gp2p.PeerID, msg gwire.GameMessage) gexchange.Feedback {
	req := remoteRequest{
		From: from,
		Msg:  msg,
		Resp: make(chan gexchange.Feedback, 1),
	}
	resp, ok := gchan.ReqResp(
		ctx, c.log,
		c.remoteRequests, req,
		req.Resp,
		"handling remote game message",
	)
	if !ok {
		return gexchange.FeedbackIgnored
	}
	return resp
}

// LatestState returns a copy of the channel's current game state.
// Reports false if the context finished first.
func (c *Channel) LatestState(ctx context.Context) (*ggame.State, bool) {
	resp := make(chan *ggame.State, 1)
	return gchan.ReqResp(
		ctx, c.log,
		c.stateRequests, resp,
		resp,
		"fetching latest state",
	)
}

// AllMoves returns every move applied so far, in order.
func (c *Channel) AllMoves(ctx context.Context) ([]ggame.Move, bool) {
	resp := make(chan []ggame.Move, 1)
	return gchan.ReqResp(
		ctx, c.log,
		c.movesRequests, resp,
		resp,
		"fetching all moves",
	)
}

// Subscribe registers a new event subscriber and returns its
// channel. A subscriber that stops receiving eventually loses
// events rather than stalling the game.
// The returned channel is closed when the channel shuts down.
func (c *Channel) Subscribe(ctx context.Context) (<-chan Event, bool) {
	resp := make(chan (<-chan Event), 1)
	return gchan.ReqResp(
		ctx, c.log,
		c.subscribeRequests, resp,
		resp,
		"subscribing to game events",
	)
}

// kState is the kernel-owned mutable state.
// Nothing outside the kernel goroutine may touch it.
type kState struct {
	chain *gchain.MoveChain

	dedup *dedupWindow

	subs []chan Event

	// Resend attempts per locally broadcast sequence.
	resendCounts map[uint32]int

	// Rate caps on outbound sync traffic, so a flood of timeouts
	// or requests cannot amplify into a message storm.
	syncReqLimiter  *rate.Limiter
	syncRespLimiter *rate.Limiter

	finished bool
}

func (c *Channel) kernel(ctx context.Context) {
	defer c.wg.Done()

	k := &kState{
		chain: gchain.NewMoveChain(c.cfg.GameID),

		dedup: newDedupWindow(DedupWindowSize),

		resendCounts: make(map[uint32]int),

		syncReqLimiter:  rate.NewLimiter(rate.Every(2*time.Second), 2),
		syncRespLimiter: rate.NewLimiter(rate.Every(time.Second), 3),
	}

	defer func() {
		for _, sub := range k.subs {
			close(sub)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			c.log.Info("Stopping due to context cancellation", "cause", context.Cause(ctx))
			return
		case req := <-c.submitRequests:
			req.Resp <- c.handleSubmit(ctx, k, req)
		case req := <-c.remoteRequests:
			req.Resp <- c.handleRemote(ctx, k, req)
		case resp := <-c.stateRequests:
			resp <- c.currentState(k)
		case resp := <-c.movesRequests:
			resp <- c.allMoves(k)
		case resp := <-c.subscribeRequests:
			sub := make(chan Event, subscriberBuffer)
			k.subs = append(k.subs, sub)
			resp <- sub
		case to := <-c.cfg.Watchdog.Timeouts():
			c.handleAckTimeout(ctx, k, to)
		}
	}
}

// currentState returns a mutable copy of the tip state.
func (c *Channel) currentState(k *kState) *ggame.State {
	if tip, ok := k.chain.TipState(); ok {
		return tip
	}
	return ggame.NewState(c.cfg.BoardSize)
}

func (c *Channel) allMoves(k *kState) []ggame.Move {
	st, ok := k.chain.TipState()
	if !ok {
		return nil
	}
	recs := st.Moves()
	mvs := make([]ggame.Move, len(recs))
	for i, r := range recs {
		mvs[i] = r.Move
	}
	return mvs
}

func (c *Channel) handleSubmit(ctx context.Context, k *kState, req submitRequest) error {
	var seq uint32
	if cur, ok := k.chain.CurrentSequence(); ok {
		seq = cur + 1
	}

	rec := ggame.MoveRecord{
		Move:      req.Move,
		Timestamp: uint64(time.Now().Unix()),
		Sequence:  seq,
	}

	// Validate locally before anything leaves this process:
	// an illegal move is never broadcast.
	next := c.currentState(k)
	if err := next.ApplyMove(rec); err != nil {
		return err
	}

	blob := gchain.NewMoveBlob(c.cfg.GameID, rec, k.chain.TipHash(), next.Snapshot(), seq)
	if c.cfg.Signer != nil {
		if err := blob.Sign(ctx, c.cfg.Signer, c.cfg.Registry); err != nil {
			return fmt.Errorf("failed to sign move blob: %w", err)
		}
	}

	if err := k.chain.AddBlob(blob); err != nil {
		return fmt.Errorf("failed to append own move to chain: %w", err)
	}

	hash, err := blob.Hash()
	if err != nil {
		return fmt.Errorf("failed to hash move blob: %w", err)
	}

	c.broadcast(ctx, gwire.GameMessage{MoveBlob: &blob})

	if !req.WithoutAck {
		c.cfg.Watchdog.Arm(ctx, seq, hash)
	}

	c.emit(k, MoveMadeEvent{Record: rec, By: moverFor(seq)})
	c.maybeFinish(ctx, k)
	return nil
}

func (c *Channel) handleRemote(ctx context.Context, k *kState, req remoteRequest) gexchange.Feedback {
	msg := req.Msg
	switch {
	case msg.MoveBlob != nil:
		return c.handleRemoteBlob(ctx, k, req.From, *msg.MoveBlob)
	case msg.Ack != nil:
		ack := *msg.Ack
		c.cfg.Watchdog.Ack(ctx, ack.Sequence, ack.BlobHash)
		delete(k.resendCounts, ack.Sequence)
		return gexchange.FeedbackAccepted
	case msg.SyncRequest != nil:
		c.handleSyncRequest(ctx, k, *msg.SyncRequest)
		return gexchange.FeedbackAccepted
	case msg.SyncResponse != nil:
		c.handleSyncResponse(ctx, k, *msg.SyncResponse)
		return gexchange.FeedbackAccepted
	case msg.Chat != nil:
		c.emit(k, ChatEvent{From: msg.Chat.From, Message: msg.Chat.Message})
		return gexchange.FeedbackAccepted
	}
	c.log.Debug("Dropping game message with no set field", "from", req.From)
	return gexchange.FeedbackIgnored
}

func (c *Channel) handleRemoteBlob(ctx context.Context, k *kState, from gp2p.PeerID, blob gchain.MoveBlob) gexchange.Feedback {
	key := dedupKey{Peer: from, Seq: blob.Sequence}
	if k.dedup.Seen(key) {
		return gexchange.FeedbackIgnored
	}

	if c.cfg.Registry != nil {
		if err := blob.VerifySignatureLenient(c.cfg.Registry); err != nil {
			glog.GSE(c.log, string(c.cfg.GameID), blob.Sequence, err).
				Warn("Rejecting remote blob with bad signature")
			k.dedup.Record(key)
			return gexchange.FeedbackRejected
		}
	}

	err := k.chain.AddBlob(blob)
	if err == nil {
		k.dedup.Record(key)
		c.emit(k, MoveMadeEvent{Record: blob.Record, By: moverFor(blob.Sequence)})
		c.sendAck(ctx, blob)
		c.maybeFinish(ctx, k)
		return gexchange.FeedbackAccepted
	}

	var gap gchain.SequenceGapError
	if errors.As(err, &gap) {
		if gap.Got > gap.Want {
			// The peer is ahead of us; ask for what we are missing.
			// Do not poison the dedup window: the same delivery may
			// succeed after we catch up.
			c.requestSync(ctx, k, gap.Want)
		}
		return gexchange.FeedbackIgnored
	}

	var wrong gchain.WrongGameError
	if errors.As(err, &wrong) {
		c.log.Debug("Ignoring blob addressed to another game",
			"want", wrong.Want, "got", wrong.Got)
		return gexchange.FeedbackIgnored
	}

	// Broken link, replay mismatch, or a rule violation:
	// the blob is permanently invalid.
	glog.GSE(c.log, string(c.cfg.GameID), blob.Sequence, err).
		Warn("Rejecting invalid remote blob")
	k.dedup.Record(key)
	return gexchange.FeedbackRejected
}

func (c *Channel) handleSyncRequest(ctx context.Context, k *kState, req gwire.SyncRequest) {
	if !k.syncRespLimiter.Allow() {
		glog.GS(c.log, string(c.cfg.GameID), req.FromSequence).
			Debug("Suppressing sync response under rate cap")
		return
	}

	blobs := k.chain.Blobs(req.FromSequence)
	if len(blobs) == 0 {
		return
	}

	c.broadcast(ctx, gwire.GameMessage{SyncResponse: &gwire.SyncResponse{
		GameID:    c.cfg.GameID,
		Blobs:     blobs,
		Timestamp: uint64(time.Now().Unix()),
	}})
}

func (c *Channel) handleSyncResponse(ctx context.Context, k *kState, resp gwire.SyncResponse) {
	for _, blob := range resp.Blobs {
		hash, err := blob.Hash()
		if err != nil {
			continue
		}

		// If this blob is one of ours still awaiting an ack,
		// its presence in a peer's tail is the acknowledgment.
		c.cfg.Watchdog.Ack(ctx, blob.Sequence, hash)
		delete(k.resendCounts, blob.Sequence)

		if err := k.chain.AddBlob(blob); err != nil {
			var gap gchain.SequenceGapError
			if errors.As(err, &gap) && gap.Got < gap.Want {
				// Already have it.
				continue
			}
			glog.GSE(c.log, string(c.cfg.GameID), blob.Sequence, err).
				Warn("Stopping sync response application")
			return
		}
		c.emit(k, MoveMadeEvent{Record: blob.Record, By: moverFor(blob.Sequence)})
	}
	c.maybeFinish(ctx, k)
}

// handleAckTimeout runs when a broadcast move went unacknowledged.
// It rebroadcasts the move a bounded number of times and raises
// SyncRequested so the application can surface connectivity trouble.
func (c *Channel) handleAckTimeout(ctx context.Context, k *kState, to gwatchdog.Timeout) {
	k.resendCounts[to.Sequence]++
	attempts := k.resendCounts[to.Sequence]

	c.emit(k, SyncRequestedEvent{FromSequence: to.Sequence})
	c.requestSync(ctx, k, to.Sequence)

	if attempts > maxResends {
		glog.GS(c.log, string(c.cfg.GameID), to.Sequence).
			Warn("Giving up on rebroadcasting unacknowledged move")
		delete(k.resendCounts, to.Sequence)
		return
	}

	blob, ok := k.chain.GetBlob(to.BlobHash)
	if !ok {
		return
	}

	glog.GS(c.log, string(c.cfg.GameID), to.Sequence).
		Info("Rebroadcasting unacknowledged move", "attempt", attempts)
	c.broadcast(ctx, gwire.GameMessage{MoveBlob: &blob})
	c.cfg.Watchdog.Arm(ctx, to.Sequence, to.BlobHash)
}

func (c *Channel) requestSync(ctx context.Context, k *kState, fromSeq uint32) {
	if !k.syncReqLimiter.Allow() {
		return
	}
	c.broadcast(ctx, gwire.GameMessage{SyncRequest: &gwire.SyncRequest{
		GameID:       c.cfg.GameID,
		FromSequence: fromSeq,
		Timestamp:    uint64(time.Now().Unix()),
	}})
}

func (c *Channel) sendAck(ctx context.Context, blob gchain.MoveBlob) {
	hash, err := blob.Hash()
	if err != nil {
		return
	}
	c.broadcast(ctx, gwire.GameMessage{Ack: &gwire.MoveAck{
		GameID:    c.cfg.GameID,
		Sequence:  blob.Sequence,
		BlobHash:  hash,
		Timestamp: uint64(time.Now().Unix()),
	}})
}

func (c *Channel) broadcast(ctx context.Context, msg gwire.GameMessage) {
	gchan.SendC(
		ctx, c.log,
		c.cfg.Broadcaster.OutgoingGameMessages(), msg,
		"broadcasting game message",
	)
}

// maybeFinish checks for game end after any chain growth,
// emitting the score exactly once and archiving the final blob.
func (c *Channel) maybeFinish(ctx context.Context, k *kState) {
	if k.finished {
		return
	}
	st, ok := k.chain.TipState()
	if !ok || !st.IsGameOver() {
		return
	}
	k.finished = true

	method := gscore.Territory()
	if res, ok := st.Result(); ok && res.Resignation {
		method = gscore.Resignation(res.Winner)
	}
	proof := gscore.CalculateFinalScore(st, c.cfg.Komi, method, nil)

	c.emit(k, GameFinishedEvent{Proof: proof})

	if c.cfg.Archive == nil {
		return
	}
	final, ok := k.chain.CurrentBlob()
	if !ok {
		return
	}
	data, err := c.cfg.Marshaler.MarshalMoveBlob(final)
	if err != nil {
		glog.GSE(c.log, string(c.cfg.GameID), final.Sequence, err).
			Warn("Failed to marshal final blob for archival")
		return
	}
	tipHash := k.chain.TipHash()

	// Filesystem stores may be slow; keep the kernel responsive.
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.cfg.Archive.SaveBlob(ctx, tipHash, data); err != nil {
			glog.GSE(c.log, string(c.cfg.GameID), final.Sequence, err).
				Warn("Failed to archive finished game")
		}
	}()
}

// emit delivers ev to every subscriber without blocking the kernel.
func (c *Channel) emit(k *kState, ev Event) {
	for _, sub := range k.subs {
		select {
		case sub <- ev:
		default:
			c.log.Warn("Dropping event for slow subscriber", "event", fmt.Sprintf("%T", ev))
		}
	}
}
