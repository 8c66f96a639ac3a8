package match

import (
	"time"

	"github.com/boutlab/bout/pkg/board"
	"github.com/boutlab/bout/pkg/engineclient"
	"github.com/google/uuid"
)

// Termination enumerates how a match ended.
type Termination int

const (
	None Termination = iota
	Natural
	Adjudication
	Timeout
	Disconnect
	IllegalMove
	Interrupt
)

func (t Termination) String() string {
	switch t {
	case None:
		return "none"
	case Natural:
		return "natural"
	case Adjudication:
		return "adjudication"
	case Timeout:
		return "timeout"
	case Disconnect:
		return "disconnect"
	case IllegalMove:
		return "illegal_move"
	case Interrupt:
		return "interrupt"
	default:
		return "?"
	}
}

// PlayerResult is one player's outcome of a finished match.
type PlayerResult int

const (
	Win PlayerResult = iota
	Lose
	Drawn
)

// Opposite returns the mirror result (Win<->Lose, Draw<->Draw), per the result-symmetry
// invariant between the two PlayerInfo values of a MatchData.
func (r PlayerResult) Opposite() PlayerResult {
	switch r {
	case Win:
		return Lose
	case Lose:
		return Win
	default:
		return Drawn
	}
}

// PlayerInfo is one side's identity and outcome for a finished match.
type PlayerInfo struct {
	Name   string
	Color  board.Color
	Result PlayerResult
}

// MoveData is one ply of a played game.
type MoveData struct {
	UCI       string
	ScoreType engineclient.ScoreType
	Score     int
	ElapsedMs int
	Depth     int
	SelDepth  int
	Nodes     int
	Nps       int
	Book      bool // true if this ply came from the forced opening line, not engine search
}

// MatchData is the full record of one played (or aborted) match.
type MatchData struct {
	ID         uuid.UUID
	OpeningFEN string
	Moves      []MoveData
	Players    [2]PlayerInfo

	Start, End time.Time

	Termination  Termination
	Reason       string
	NeedsRestart bool

	PGN string
}

// Duration is End-Start.
func (d *MatchData) Duration() time.Duration {
	return d.End.Sub(d.Start)
}

// DrawConfig configures draw adjudication by persistent near-zero score.
type DrawConfig struct {
	Enabled    bool
	MoveNumber int // adjudication does not start before this ply
	Score      int // |score| must be <= this, in centipawns
	MoveCount  int // consecutive qualifying plies required
}

// ResignConfig configures resignation adjudication by a persistent lopsided score.
type ResignConfig struct {
	Enabled   bool
	Score     int // |score| must be >= this, in centipawns
	MoveCount int // consecutive qualifying plies required
}

// tracker is a streak counter reset whenever a ply fails to qualify.
type tracker struct {
	streak int
}

func (t *tracker) update(qualifies bool) {
	if qualifies {
		t.streak++
	} else {
		t.streak = 0
	}
}
