package match

import (
	"context"
	"fmt"
	"time"

	"github.com/boutlab/bout/pkg/board"
	"github.com/boutlab/bout/pkg/chess"
	"github.com/boutlab/bout/pkg/engineclient"
	"github.com/boutlab/bout/pkg/pgn"
	"github.com/google/uuid"
	"github.com/seekerror/logw"
	"go.uber.org/atomic"
)

// Runner drives one game between two participants to completion, producing a MatchData
// with exactly one Termination recorded. All errors are caught and translated to a
// termination; Run never returns an error.
type Runner struct {
	id           uuid.UUID
	white, black *Participant
	openingFEN   string
	openingMoves []string

	draw    DrawConfig
	resign  ResignConfig
	recover bool
	stop    *atomic.Bool

	pgn *pgn.Builder
}

// NewRunner returns a Runner for one game from openingFEN (plus any forced
// openingMoves, already known-legal), between white and black. stop is the process-wide
// interrupt flag, polled at the top of each ply and after every BestMove call.
func NewRunner(white, black *Participant, openingFEN string, openingMoves []string, draw DrawConfig, resign ResignConfig, recover bool, stop *atomic.Bool) *Runner {
	return &Runner{
		id:           uuid.New(),
		white:        white,
		black:        black,
		openingFEN:   openingFEN,
		openingMoves: openingMoves,
		draw:         draw,
		resign:       resign,
		recover:      recover,
		stop:         stop,
	}
}

// Run plays the match to completion (or to interruption/disconnect/failure) and returns
// the resulting MatchData.
func (r *Runner) Run(ctx context.Context, whiteName, blackName string) *MatchData {
	data := &MatchData{
		ID:         r.id,
		OpeningFEN: r.openingFEN,
		Start:      time.Now(),
		Players: [2]PlayerInfo{
			{Name: whiteName, Color: board.White},
			{Name: blackName, Color: board.Black},
		},
	}

	pos, err := chess.FromFEN(r.openingFEN)
	if err != nil {
		data.Termination = Disconnect
		data.Reason = fmt.Sprintf("invalid opening fen: %v", err)
		data.End = time.Now()
		return data
	}

	builder := pgn.NewBuilder("bout tournament", whiteName, blackName, r.openingFEN, pos.SideToMove() == board.White, data.Start)
	r.pgn = builder

	if !r.white.Handle.NewGame(ctx) {
		r.finishLoss(data, pos, r.white, Disconnect, fmt.Sprintf("%v failed ucinewgame handshake", whiteName))
		return data
	}
	if !r.black.Handle.NewGame(ctx) {
		r.finishLoss(data, pos, r.black, Disconnect, fmt.Sprintf("%v failed ucinewgame handshake", blackName))
		return data
	}

	var played []string
	for _, uci := range r.openingMoves {
		m, err := pos.UCIToMove(uci)
		if err != nil {
			data.Termination = Disconnect
			data.Reason = fmt.Sprintf("invalid opening move %q: %v", uci, err)
			data.End = time.Now()
			return data
		}
		before, _ := chess.FromFEN(pos.FEN())
		builder.AddMove(before, m)
		if err := pos.MakeMove(m); err != nil {
			data.Termination = Disconnect
			data.Reason = fmt.Sprintf("illegal opening move %q: %v", uci, err)
			data.End = time.Now()
			return data
		}
		played = append(played, uci)
		data.Moves = append(data.Moves, MoveData{UCI: uci, Book: true})
	}

	var drawTracker, resignTracker tracker

	for {
		if r.stop.Load() {
			r.finish(data, pos, Interrupt, "interrupted")
			return data
		}

		// (1) Natural game-over check takes priority over everything else.
		if reason, result := pos.IsGameOver(); reason != chess.ReasonNone {
			r.finishNatural(data, pos, reason, result)
			return data
		}

		toMove, other := r.sideToMove(pos)

		// (2) Responsiveness probe.
		if !toMove.Handle.IsResponsive(ctx) {
			r.finishLoss(data, pos, toMove, Disconnect, fmt.Sprintf("%v is unresponsive", r.name(data, toMove)))
			return data
		}

		// (3) Position + go.
		if err := toMove.Handle.SetPosition(false, r.openingFEN, played); err != nil {
			r.unexpected(data, pos, err)
			return data
		}
		if err := toMove.Handle.Go(toMove.GoParams(other)); err != nil {
			r.unexpected(data, pos, err)
			return data
		}

		// (4) Measure elapsed time around best_move.
		deadline := toMove.TimeoutThreshold()
		t0 := time.Now()
		uci, info, status := toMove.Handle.BestMove(ctx, deadline)
		elapsedMs := int(time.Since(t0).Milliseconds())

		// (5) Stop flag re-checked immediately after best_move returns.
		if r.stop.Load() {
			r.finish(data, pos, Interrupt, "interrupted")
			return data
		}

		if status == engineclient.Timeout {
			r.finishLoss(data, pos, toMove, Timeout, fmt.Sprintf("%v forfeits on time", r.name(data, toMove)))
			return data
		}
		if status != engineclient.OK {
			r.finishLoss(data, pos, toMove, Disconnect, fmt.Sprintf("%v protocol error", r.name(data, toMove)))
			return data
		}

		// (6) Clock/limit update.
		if !toMove.UpdateTime(elapsedMs) {
			r.finishLoss(data, pos, toMove, Timeout, fmt.Sprintf("%v forfeits on time", r.name(data, toMove)))
			return data
		}

		// (7)+(8) Draw/resign trackers, based on the reported score for this ply.
		plyNumber := len(data.Moves) + 1
		drawTracker.update(r.draw.Enabled && plyNumber >= r.draw.MoveNumber && info.ScoreType == engineclient.Centipawn && abs(info.Score) <= r.draw.Score)
		resignTracker.update(r.resign.Enabled && info.ScoreType == engineclient.Centipawn && abs(info.Score) >= r.resign.Score)

		// (10) Parse and validate the move before appending anything for it.
		m, err := pos.UCIToMove(uci)
		if err != nil || !isLegal(pos, m) {
			r.finishLoss(data, pos, toMove, IllegalMove, fmt.Sprintf("%v played illegal move %q", r.name(data, toMove), uci))
			return data
		}

		// (9) Append MoveData and verify the PV (log only).
		data.Moves = append(data.Moves, MoveData{
			UCI: uci, ScoreType: info.ScoreType, Score: info.Score, ElapsedMs: elapsedMs,
			Depth: info.Depth, SelDepth: info.SelDepth, Nodes: info.Nodes, Nps: info.Nps,
		})
		r.verifyPV(ctx, pos, info.PV, toMove)

		before, _ := chess.FromFEN(pos.FEN())
		r.pgn.AddMove(before, m)

		// (11) Apply the move.
		if err := pos.MakeMove(m); err != nil {
			// Already validated legal above; should not happen, but fail safe.
			r.finishLoss(data, pos, toMove, IllegalMove, fmt.Sprintf("%v played illegal move %q", r.name(data, toMove), uci))
			return data
		}
		played = append(played, uci)

		// (12) Adjudication.
		if r.draw.Enabled && drawTracker.streak >= r.draw.MoveCount {
			r.finish(data, pos, Adjudication, "draw by adjudication")
			return data
		}
		if r.resign.Enabled && resignTracker.streak >= r.resign.MoveCount {
			// The losing side is whoever's last reported score was <= -resign.score.
			loser := other
			if info.Score <= -r.resign.Score {
				loser = toMove
			}
			r.finishLoss(data, pos, loser, Adjudication, fmt.Sprintf("%v resigns", r.name(data, loser)))
			return data
		}

		// (13) Swap side to move happens implicitly: sideToMove() re-derives it from pos.
	}
}

func (r *Runner) sideToMove(pos *chess.Position) (toMove, other *Participant) {
	if pos.SideToMove() == r.white.Color {
		return r.white, r.black
	}
	return r.black, r.white
}

func (r *Runner) name(data *MatchData, p *Participant) string {
	for _, info := range data.Players {
		if info.Color == p.Color {
			return info.Name
		}
	}
	return "?"
}

// finishLoss records p as the loser (and the other participant as the winner, or both
// drawn if result is a draw) and stamps Termination/Reason/End.
func (r *Runner) finishLoss(data *MatchData, pos *chess.Position, loser *Participant, term Termination, reason string) {
	for i := range data.Players {
		if data.Players[i].Color == loser.Color {
			data.Players[i].Result = Lose
		} else {
			data.Players[i].Result = Win
		}
	}
	r.stampPGN(data, pos)
	data.Termination = term
	data.Reason = reason
	data.End = time.Now()
}

// finish records a draw for both sides and stamps Termination/Reason/End.
func (r *Runner) finish(data *MatchData, pos *chess.Position, term Termination, reason string) {
	for i := range data.Players {
		data.Players[i].Result = Drawn
	}
	r.stampPGN(data, pos)
	data.Termination = term
	data.Reason = reason
	data.End = time.Now()
}

func (r *Runner) finishNatural(data *MatchData, pos *chess.Position, reason chess.GameOverReason, result chess.GameResult) {
	switch result {
	case chess.ResultDraw:
		r.finish(data, pos, Natural, reason.String())
	case chess.ResultLoseForSideToMove:
		toMove, _ := r.sideToMove(pos)
		r.finishLoss(data, pos, toMove, Natural, reason.String())
	default:
		r.finish(data, pos, Natural, reason.String())
	}
}

// unexpected handles a transport-layer error outside the classified paths above: per the
// recovery contract, it becomes a DISCONNECT termination, with NeedsRestart set only if
// recovery is configured for this tournament.
func (r *Runner) unexpected(data *MatchData, pos *chess.Position, err error) {
	for i := range data.Players {
		data.Players[i].Result = Drawn
	}
	r.stampPGN(data, pos)
	data.Termination = Disconnect
	data.Reason = err.Error()
	data.NeedsRestart = r.recover
	data.End = time.Now()
}

func (r *Runner) stampPGN(data *MatchData, pos *chess.Position) {
	result := "*"
	switch {
	case data.Players[0].Result == Win:
		result = "1-0"
	case data.Players[1].Result == Win:
		result = "0-1"
	case data.Players[0].Result == Drawn && data.Players[1].Result == Drawn:
		result = "1/2-1/2"
	}
	r.pgn.SetResult(result)
	data.PGN = r.pgn.String()
}

func (r *Runner) verifyPV(ctx context.Context, pos *chess.Position, pv []string, toMove *Participant) {
	if len(pv) == 0 {
		return
	}
	scratch, err := chess.FromFEN(pos.FEN())
	if err != nil {
		return
	}
	for _, uci := range pv {
		m, err := scratch.UCIToMove(uci)
		if err != nil || !isLegal(scratch, m) {
			logw.Warningf(ctx, "%v reported illegal move %q in pv %v", toMove.Color, uci, pv)
			return
		}
		if err := scratch.MakeMove(m); err != nil {
			return
		}
	}
}

func isLegal(pos *chess.Position, m chess.Move) bool {
	for _, legal := range pos.LegalMoves() {
		if legal.Equals(m) {
			return true
		}
	}
	return false
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
