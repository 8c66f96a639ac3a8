// Package match drives one game between two engines: Participant holds each side's
// time-control state, and Runner is the per-ply state machine that classifies how the
// game ended.
package match

import (
	"time"

	"github.com/boutlab/bout/pkg/board"
	"github.com/boutlab/bout/pkg/engineclient"
)

// TimeControlMode discriminates how a Participant's search budget is computed.
type TimeControlMode int

const (
	Classical TimeControlMode = iota
	MoveTime
	FixedDepth
	FixedNodes
	Infinite
)

// TimeControl is immutable per-engine configuration, materialized into a Participant at
// match start.
type TimeControl struct {
	Mode TimeControlMode

	BaseMs    int // classical: starting clock
	IncMs     int // classical: increment applied after each move
	MovesToGo int // classical: 0 means the whole game; >0 means a period resets every N moves

	MoveTimeMs int // movetime (also doubles as the deadline for FixedDepth/FixedNodes)
	Depth      int // fixed-depth
	Nodes      int // fixed-nodes

	ToleranceMs int // configured allowance before a clock is considered flagged
}

// Participant is one engine's per-match mutable state.
type Participant struct {
	Handle *engineclient.Handle
	Color  board.Color

	tc          TimeControl
	remainingMs int
	movesToGo   int
}

// NewParticipant returns a Participant for handle, playing color under tc.
func NewParticipant(handle *engineclient.Handle, color board.Color, tc TimeControl) *Participant {
	return &Participant{
		Handle:      handle,
		Color:       color,
		tc:          tc,
		remainingMs: tc.BaseMs,
		movesToGo:   tc.MovesToGo,
	}
}

// RemainingMs returns the participant's clock, meaningful only in Classical mode.
func (p *Participant) RemainingMs() int {
	return p.remainingMs
}

// UpdateTime applies the result of a move that took elapsedMs to play. It returns false
// if the participant's clock fell (classical) or exceeded its configured limit (fixed
// modes); false should cause the match to terminate TIMEOUT for this participant.
func (p *Participant) UpdateTime(elapsedMs int) bool {
	switch p.tc.Mode {
	case Infinite:
		return true

	case MoveTime, FixedDepth, FixedNodes:
		if p.tc.MoveTimeMs <= 0 {
			return true
		}
		return elapsedMs <= p.tc.MoveTimeMs+p.tc.ToleranceMs

	default: // Classical
		p.remainingMs -= elapsedMs
		if p.remainingMs < -p.tc.ToleranceMs {
			return false
		}
		p.remainingMs += p.tc.IncMs
		if p.tc.MovesToGo > 0 {
			p.movesToGo--
			if p.movesToGo == 0 {
				p.remainingMs += p.tc.BaseMs
				p.movesToGo = p.tc.MovesToGo
			}
		}
		return true
	}
}

// TimeoutThreshold returns the deadline to pass to BestMove: in clock modes,
// remaining+tolerance; in fixed modes, configured_limit+tolerance; zero (no timeout)
// when explicitly configured Infinite or when no limit was configured at all.
func (p *Participant) TimeoutThreshold() time.Duration {
	switch p.tc.Mode {
	case Infinite:
		return 0
	case MoveTime, FixedDepth, FixedNodes:
		if p.tc.MoveTimeMs <= 0 {
			return 0
		}
		return time.Duration(p.tc.MoveTimeMs+p.tc.ToleranceMs) * time.Millisecond
	default:
		return time.Duration(p.remainingMs+p.tc.ToleranceMs) * time.Millisecond
	}
}

// GoParams materializes the "go" command to send for this participant's turn, given the
// opponent's clock state (classical mode reports both clocks to the engine on the move).
func (p *Participant) GoParams(opponent *Participant) engineclient.GoParams {
	switch p.tc.Mode {
	case MoveTime:
		return engineclient.GoParams{MoveTimeMs: p.tc.MoveTimeMs}
	case FixedDepth:
		return engineclient.GoParams{Depth: p.tc.Depth}
	case FixedNodes:
		return engineclient.GoParams{Nodes: p.tc.Nodes}
	case Infinite:
		return engineclient.GoParams{Infinite: true}
	default:
		white, black := p, opponent
		if p.Color != board.White {
			white, black = opponent, p
		}
		return engineclient.GoParams{
			WTimeMs:   white.remainingMs,
			WIncMs:    white.tc.IncMs,
			BTimeMs:   black.remainingMs,
			BIncMs:    black.tc.IncMs,
			MovesToGo: p.movesToGo,
		}
	}
}
