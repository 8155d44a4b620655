package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/goban-engine/goban/cmd/internal/gcmd"
	"github.com/goban-engine/goban/gchannel"
	"github.com/goban-engine/goban/ggame"
	"github.com/goban-engine/goban/gscore"
)

// runSession drives one interactive game on ch:
// board and move events go to out, commands come from in.
// It returns when the game finishes or ctx is canceled.
func runSession(
	ctx context.Context,
	log *slog.Logger,
	ch *gchannel.Channel,
	in io.Reader,
	out io.Writer,
) error {
	events, ok := ch.Subscribe(ctx)
	if !ok {
		return fmt.Errorf("failed to subscribe to game events")
	}

	lines := make(chan string)
	go readLines(ctx, in, lines)

	if st, ok := ch.LatestState(ctx); ok {
		fmt.Fprint(out, gcmd.RenderBoard(st))
	}
	fmt.Fprintln(out, `commands: a coordinate like C4, "pass", "resign", "chat MESSAGE", "board", "quit"`)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev := <-events:
			if done := printEvent(ctx, ch, out, ev); done {
				return nil
			}

		case line, ok := <-lines:
			if !ok {
				// Input closed; keep following the game.
				lines = nil
				continue
			}
			if quit := handleCommand(ctx, log, ch, out, line); quit {
				return nil
			}
		}
	}
}

func readLines(ctx context.Context, in io.Reader, lines chan<- string) {
	defer close(lines)

	sc := bufio.NewScanner(in)
	for sc.Scan() {
		select {
		case <-ctx.Done():
			return
		case lines <- sc.Text():
		}
	}
}

// printEvent writes one game event to out,
// reporting whether the game is over.
func printEvent(ctx context.Context, ch *gchannel.Channel, out io.Writer, ev gchannel.Event) bool {
	switch ev := ev.(type) {
	case gchannel.MoveMadeEvent:
		st, ok := ch.LatestState(ctx)
		if !ok {
			return false
		}
		size := st.BoardSize()

		switch ev.Record.Move.Type {
		case ggame.MoveTypePass:
			fmt.Fprintf(out, "%s passes\n", ev.By)
		case ggame.MoveTypeResign:
			fmt.Fprintf(out, "%s resigns\n", ev.By)
		default:
			fmt.Fprintf(out, "%s plays %s\n", ev.By, gcmd.FormatCoord(ev.Record.Move.Coord, size))
		}
		fmt.Fprint(out, gcmd.RenderBoard(st))

	case gchannel.ChatEvent:
		fmt.Fprintf(out, "[%s] %s\n", ev.From, ev.Message)

	case gchannel.SyncRequestedEvent:
		fmt.Fprintf(out, "(waiting for opponent to acknowledge move %d...)\n", ev.FromSequence)

	case gchannel.GameFinishedEvent:
		printScore(out, ev.Proof)
		return true
	}
	return false
}

func printScore(out io.Writer, proof gscore.ScoreProof) {
	switch proof.Method.Kind {
	case gscore.MethodResignation:
		fmt.Fprintf(out, "game over: %s wins by resignation\n", proof.Method.Winner)
	case gscore.MethodTimeOut:
		fmt.Fprintf(out, "game over: %s wins on time\n", proof.Method.Winner)
	default:
		winner := "black"
		margin := float64(proof.FinalScore)
		if margin < 0 {
			winner = "white"
			margin = -margin
		}
		if proof.FinalScore == 0 {
			fmt.Fprintln(out, "game over: draw")
		} else {
			fmt.Fprintf(out, "game over: %s wins by %g\n", winner, margin)
		}
		fmt.Fprintf(out, "territory: black %d, white %d; captures: black %d, white %d; komi %g\n",
			proof.TerritoryBlack, proof.TerritoryWhite,
			proof.CapturesBlack, proof.CapturesWhite,
			proof.Komi,
		)
	}
}

// handleCommand applies one line of input,
// reporting whether the session should end.
func handleCommand(
	ctx context.Context,
	log *slog.Logger,
	ch *gchannel.Channel,
	out io.Writer,
	line string,
) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}

	word, rest, _ := strings.Cut(line, " ")

	var mv ggame.Move
	switch strings.ToLower(word) {
	case "quit", "exit":
		return true

	case "board":
		if st, ok := ch.LatestState(ctx); ok {
			fmt.Fprint(out, gcmd.RenderBoard(st))
		}
		return false

	case "chat":
		if rest == "" {
			fmt.Fprintln(out, "usage: chat MESSAGE")
			return false
		}
		if err := ch.SendChat(ctx, rest); err != nil {
			fmt.Fprintf(out, "chat failed: %v\n", err)
		}
		return false

	case "pass":
		mv = ggame.Pass()

	case "resign":
		mv = ggame.Resign()

	default:
		st, ok := ch.LatestState(ctx)
		if !ok {
			return false
		}
		c, err := gcmd.ParseCoord(word, st.BoardSize())
		if err != nil {
			fmt.Fprintf(out, "%v\n", err)
			return false
		}
		mv = ggame.Place(c)
	}

	if err := ch.SubmitMove(ctx, mv); err != nil {
		fmt.Fprintf(out, "move rejected: %v\n", err)
	}
	return false
}
