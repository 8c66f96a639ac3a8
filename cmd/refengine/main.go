// Command refengine is a minimal UCI engine used as a reference opponent and test
// fixture for tournament runs: it plays a uniformly random legal move every turn. It
// exists so cmd/bout has a real UCI process to drive end to end without depending on a
// full search/evaluation stack.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/boutlab/bout/pkg/board"
	"github.com/boutlab/bout/pkg/board/fen"
)

var seed = flag.Int64("seed", 0, "move RNG seed (defaults to the current time)")

func init() {
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, `usage: refengine [options]

refengine is a minimal UCI engine that plays uniformly random legal moves, used as a
tournament opponent/fixture.
Options:
`)
		flag.PrintDefaults()
	}
}

// gameState is the position refengine is currently asked to move in, rebuilt from
// scratch on every "position" command per the UCI contract.
type gameState struct {
	pos  *board.Position
	turn board.Color
}

func main() {
	flag.Parse()

	rngSeed := *seed
	if rngSeed == 0 {
		rngSeed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(rngSeed))

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	var state gameState

	in := bufio.NewScanner(os.Stdin)
	in.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for in.Scan() {
		line := strings.TrimSpace(in.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		cmd, args := fields[0], fields[1:]

		switch cmd {
		case "uci":
			fmt.Fprintln(out, "id name refengine")
			fmt.Fprintln(out, "id author boutlab")
			fmt.Fprintln(out, "uciok")

		case "isready":
			fmt.Fprintln(out, "readyok")

		case "ucinewgame":
			state = gameState{}

		case "position":
			state = parsePosition(args)

		case "go":
			fmt.Fprintln(out, "bestmove", pickMove(state, rng))

		case "quit":
			out.Flush()
			return

		default:
			// Unrecognized commands (setoption, ponderhit, stop, ...) are accepted and
			// ignored: refengine has no tunable options and never ponders.
		}
		out.Flush()
	}
}

// parsePosition handles "position startpos [moves ...]" and "position fen <fen> [moves
// ...]", replaying the move list against the decoded starting position.
func parsePosition(args []string) gameState {
	if len(args) == 0 {
		return gameState{}
	}

	var rest []string
	var pos *board.Position
	var turn board.Color

	switch args[0] {
	case "startpos":
		p, c, _, _, err := fen.Decode(fen.Initial)
		if err != nil {
			return gameState{}
		}
		pos, turn = p, c
		rest = args[1:]

	case "fen":
		end := 1
		for end < len(args) && args[end] != "moves" {
			end++
		}
		p, c, _, _, err := fen.Decode(strings.Join(args[1:end], " "))
		if err != nil {
			return gameState{}
		}
		pos, turn = p, c
		rest = args[end:]

	default:
		return gameState{}
	}

	if len(rest) > 0 && rest[0] == "moves" {
		for _, uci := range rest[1:] {
			m, err := board.ParseMove(uci)
			if err != nil {
				break
			}
			_, next, ok := pos.Move(m)
			if !ok {
				break
			}
			pos = next
			turn = turn.Opponent()
		}
	}

	return gameState{pos: pos, turn: turn}
}

// pickMove returns a uniformly random legal move in state, or the null move "0000" if
// none exists (checkmate, stalemate, or a position command was never sent).
func pickMove(state gameState, rng *rand.Rand) string {
	if state.pos == nil {
		return "0000"
	}
	moves := state.pos.LegalMoves(state.turn)
	if len(moves) == 0 {
		return "0000"
	}
	return moves[rng.Intn(len(moves))].String()
}
