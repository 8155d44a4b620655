// Command goban runs a peer-to-peer two-player go board.
//
// Every move is hash-chained and replicated over libp2p gossip,
// so both players replay and verify the full game independently.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/libp2p/go-libp2p"
	dht "github.com/libp2p/go-libp2p-kad-dht"
	libp2pevent "github.com/libp2p/go-libp2p/core/event"
	libp2ppeer "github.com/libp2p/go-libp2p/core/peer"
	"github.com/spf13/cobra"

	"github.com/goban-engine/goban/cmd/internal/gcmd"
	"github.com/goban-engine/goban/gchain"
	"github.com/goban-engine/goban/gchannel"
	"github.com/goban-engine/goban/gcrypto"
	"github.com/goban-engine/goban/gcstore/gcdirstore"
	"github.com/goban-engine/goban/gp2p/gp2plibp2p"
	"github.com/goban-engine/goban/gwatchdog"
	"github.com/goban-engine/goban/gwire/gwirecbor"
)

func main() {
	if err := mainE(); err != nil {
		os.Exit(1)
	}
}

func mainE() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	root := NewRootCmd(logger)
	if err := root.ExecuteContext(ctx); err != nil {
		logger.Info("Failure", "err", err)
		os.Stderr.Sync()
		return err
	}

	return nil
}

func NewRootCmd(log *slog.Logger) *cobra.Command {
	rootCmd := &cobra.Command{
		Use: "goban SUBCOMMAND",

		CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},

		Long: `goban plays two-player go over a peer-to-peer network.

Initial setup involves:

1. Pick your insecure passphrase. These are insecure because they are
   typed on the command line, so choose a simple one that won't bother
   you if it leaks.
2. Share your player public key with your opponent:
     $ goban player-pubkey 'my-passphrase'
3. One player creates a game ID:
     $ goban new-game
4. Both players write a config file like:
     {"GameID": "...", "BoardSize": 9, "Komi": 6.5, "RemoteAddrs": ["/ip4/a.b.c.d/tcp/8888/p2p/$LIBP2P_ID"]}
   where the libp2p ID comes from the libp2p-id subcommand.
5. Play:
     $ goban play 'my-passphrase' path/to/config.json
`,
	}

	rootCmd.AddCommand(
		NewPlayerPubKeyCmd(log),
		NewLibp2pIDCmd(log),
		NewGameIDCmd(log),

		NewPlayCmd(log),

		NewRunRelayerCmd(log),
	)

	return rootCmd
}

func NewPlayerPubKeyCmd(log *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use: "player-pubkey INSECURE_PASSPHRASE",

		Short: "Print the player public key derived from the given insecure passphrase",

		Args: cobra.ExactArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			signer, err := gcmd.SignerFromInsecurePassphrase("goban|", args[0])
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%x\n", signer.PubKey().PubKeyBytes())

			return nil
		},
	}
}

func NewLibp2pIDCmd(log *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use: "libp2p-id INSECURE_PASSPHRASE",

		Short: "Print the libp2p ID derived from the given insecure passphrase",

		Args: cobra.ExactArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			privKey, err := gcmd.Libp2pKeyFromInsecurePassphrase("goban:network|", args[0])
			if err != nil {
				return fmt.Errorf("failed to generate libp2p network key: %w", err)
			}

			id, err := libp2ppeer.IDFromPrivateKey(privKey)
			if err != nil {
				return fmt.Errorf("failed to generate ID from libp2p private key: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), id)

			return nil
		},
	}
}

func NewGameIDCmd(log *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use: "new-game",

		Short: "Print a fresh game ID for both players to put in their config files",

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), gchain.NewGameID())
			return nil
		},
	}
}

// gameConfig is the JSON config file both players share,
// apart from RemoteAddrs which each player sets to reach the other.
type gameConfig struct {
	GameID string

	BoardSize int
	Komi      float64

	// PlayerName labels this player's chat messages.
	PlayerName string

	RemoteAddrs []string
}

func NewRunRelayerCmd(log *slog.Logger) *cobra.Command {
	listenAddrs := []string{"/ip4/0.0.0.0/tcp/9999"}

	cmd := &cobra.Command{
		Use: "run-relayer INSECURE_PASSPHRASE",

		Short: "Run a relayer with a fixed ID on a fixed address, to connect firewalled players",

		Args: cobra.ExactArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			netPrivKey, err := gcmd.Libp2pKeyFromInsecurePassphrase("goban:network|", args[0])
			if err != nil {
				return fmt.Errorf("failed to generate libp2p network key: %w", err)
			}

			h, err := gp2plibp2p.NewHost(
				ctx,
				gp2plibp2p.HostOptions{
					Options: []libp2p.Option{
						libp2p.Identity(netPrivKey),
						libp2p.ListenAddrStrings(listenAddrs...),

						libp2p.ForceReachabilityPublic(),
					},
				},
			)
			if err != nil {
				return fmt.Errorf("failed to create libp2p host: %w", err)
			}

			defer func() {
				if err := h.Close(); err != nil {
					log.Warn("Error closing libp2p host", "err", err)
				}
			}()

			host := h.Libp2pHost()

			// The relayer joins the DHT so players
			// can discover each other through it.
			if _, err := dht.New(ctx, host,
				dht.ProtocolPrefix("/goban"), // Must match the prefix in gp2plibp2p.Connection.
			); err != nil {
				return fmt.Errorf("failed to create DHT peer for relayer: %w", err)
			}

			sub, err := host.EventBus().Subscribe(new(libp2pevent.EvtPeerConnectednessChanged))
			if err != nil {
				return err
			}
			defer sub.Close()

			loggingDone := make(chan struct{})
			go logPeerChanges(ctx, log, sub, loggingDone)

			log.Info("Listening for p2p connections", "id", host.ID(), "addrs", host.Addrs())
			log.Info("Press ^c to stop")

			<-ctx.Done()
			<-loggingDone

			return nil
		},
	}

	cmd.PersistentFlags().StringArrayVarP(&listenAddrs, "listen-multiaddr", "l", listenAddrs, "multiaddr to listen on")

	return cmd
}

func NewPlayCmd(log *slog.Logger) *cobra.Command {
	listenAddrs := []string{"/ip4/0.0.0.0/tcp/8888"}
	var archiveDir string

	cmd := &cobra.Command{
		Use: "play INSECURE_PASSPHRASE PATH_TO_CONFIG_FILE",

		Short: "Join the configured game and play it interactively",

		Args: cobra.ExactArgs(2),

		RunE: func(cmd *cobra.Command, args []string) error {
			// A cancelable context in case we fail partway through
			// setup. Defer cancel() after other deferred close and
			// cleanup calls, for types dependent on a parent
			// context cancellation.
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			signer, err := gcmd.SignerFromInsecurePassphrase("goban|", args[0])
			if err != nil {
				return err
			}

			jConfig, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}

			var cfg gameConfig
			if err := json.Unmarshal(jConfig, &cfg); err != nil {
				return fmt.Errorf("failed to parse config file: %w", err)
			}
			if cfg.GameID == "" {
				return fmt.Errorf("config file must set GameID; generate one with the new-game subcommand")
			}
			if cfg.BoardSize == 0 {
				cfg.BoardSize = 19
			}
			if len(cfg.RemoteAddrs) == 0 {
				log.Warn("Config had no remote addresses set; relying on incoming connections to discover peers")
			}

			netPrivKey, err := gcmd.Libp2pKeyFromInsecurePassphrase("goban:network|", args[0])
			if err != nil {
				return fmt.Errorf("failed to generate libp2p network key: %w", err)
			}

			h, err := gp2plibp2p.NewHost(
				ctx,
				gp2plibp2p.HostOptions{
					Options: []libp2p.Option{
						libp2p.Identity(netPrivKey),
						libp2p.ListenAddrStrings(listenAddrs...),

						libp2p.ForceReachabilityPublic(),
					},
				},
			)
			if err != nil {
				return fmt.Errorf("failed to create libp2p host: %w", err)
			}

			defer func() {
				if err := h.Close(); err != nil {
					log.Warn("Error closing libp2p host", "err", err)
				}
			}()
			defer cancel()

			host := h.Libp2pHost()

			sub, err := host.EventBus().Subscribe(new(libp2pevent.EvtPeerConnectednessChanged))
			if err != nil {
				return err
			}
			defer sub.Close()

			loggingDone := make(chan struct{})
			go logPeerChanges(ctx, log, sub, loggingDone)
			defer func() {
				cancel()
				<-loggingDone
			}()

			log.Info("Listening", "id", host.ID(), "addrs", host.Addrs())

			for _, ra := range cfg.RemoteAddrs {
				ai, err := libp2ppeer.AddrInfoFromString(ra)
				if err != nil {
					return fmt.Errorf("failed to parse %q: %w", ra, err)
				}

				log.Info("Attempting connection", "remote_addr", ra)
				if err := host.Connect(ctx, *ai); err != nil {
					return fmt.Errorf("failed to connect to %v: %w", ai, err)
				}
			}

			codec, err := gwirecbor.NewMarshalCodec()
			if err != nil {
				return fmt.Errorf("failed to build wire codec: %w", err)
			}

			conn, err := gp2plibp2p.NewConnection(
				ctx,
				log.With("sys", "libp2pconn"),
				h,
				codec,
			)
			if err != nil {
				return fmt.Errorf("failed to build libp2p connection: %w", err)
			}
			defer conn.Disconnect()
			defer cancel()

			reg := new(gcrypto.Registry)
			gcrypto.RegisterEd25519(reg)

			archive, err := gcdirstore.NewStore(
				log.With("sys", "archive"),
				archiveDir,
				gcdirstore.DefaultMaxFiles,
			)
			if err != nil {
				return fmt.Errorf("failed to open archive directory: %w", err)
			}

			wd := gwatchdog.NewAckWatchdog(
				ctx,
				log.With("sys", "watchdog"),
				gwatchdog.DefaultAckTimeout,
			)
			defer wd.Wait()
			defer cancel()

			ch, err := gchannel.NewChannel(
				ctx,
				log.With("sys", "channel"),
				gchannel.ChannelConfig{
					GameID:    gchain.GameID(cfg.GameID),
					BoardSize: cfg.BoardSize,
					Komi:      cfg.Komi,

					Broadcaster: conn.GameBroadcaster(),
					Watchdog:    wd,

					Signer:   signer,
					Registry: reg,

					Archive:   archive,
					Marshaler: codec,

					PlayerName: cfg.PlayerName,
				},
			)
			if err != nil {
				return fmt.Errorf("failed to build game channel: %w", err)
			}
			defer ch.Wait()
			defer cancel()

			lobby := gchannel.NewRegistry(log.With("sys", "lobby"))
			lobby.Add(ch)
			conn.SetGameHandler(ctx, lobby)

			if err := conn.JoinGame(ctx, gchain.GameID(cfg.GameID)); err != nil {
				return fmt.Errorf("failed to join game topic: %w", err)
			}

			return runSession(ctx, log, ch, os.Stdin, cmd.OutOrStdout())
		},
	}

	cmd.PersistentFlags().StringArrayVarP(&listenAddrs, "listen-multiaddr", "l", listenAddrs, "multiaddr to listen on")
	cmd.PersistentFlags().StringVar(&archiveDir, "archive-dir", "goban-archive", "directory for finished game archives")

	return cmd
}

func logPeerChanges(
	ctx context.Context,
	log *slog.Logger,
	sub libp2pevent.Subscription,
	done chan<- struct{},
) {
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			return

		case e := <-sub.Out():
			switch e := e.(type) {
			case libp2pevent.EvtPeerConnectednessChanged:
				log.Info(
					"Peer connectedness changed",
					"id", e.Peer,
					"connectedness", e.Connectedness,
				)
			default:
				log.Warn("Unknown event type", "type", fmt.Sprintf("%T", e))
			}
		}
	}
}
