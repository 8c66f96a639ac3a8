// Package chess is the rules-engine collaborator consumed by the match runner. It wraps
// the board package (move generation, legality, draw detection) behind the narrow
// interface the tournament core actually needs: set/get FEN, make a move, ask whether
// the game is over, list legal moves, and translate to/from UCI wire notation.
package chess

import (
	"fmt"

	"github.com/boutlab/bout/pkg/board"
	"github.com/boutlab/bout/pkg/board/fen"
)

// Move is a move in the current position. UCIToMove/MoveToUCI convert to and from the
// engine wire protocol's pure algebraic coordinate notation (e.g. "e2e4", "a7a8q").
type Move = board.Move

// zobristTable is shared read-only state (a pseudo-random lookup table seeded once at
// process start); every Position hashes into it, never mutates it.
var zobristTable = board.NewZobristTable(0xC0FFEE)

// GameOverReason mirrors the rules-engine contract's reason enumeration.
type GameOverReason uint8

const (
	ReasonNone GameOverReason = iota
	ReasonCheckmate
	ReasonStalemate
	ReasonInsufficientMaterial
	ReasonThreefoldRepetition
	ReasonFiftyMoveRule
)

func (r GameOverReason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonCheckmate:
		return "checkmate"
	case ReasonStalemate:
		return "stalemate"
	case ReasonInsufficientMaterial:
		return "insufficient material"
	case ReasonThreefoldRepetition:
		return "threefold repetition"
	case ReasonFiftyMoveRule:
		return "fifty-move rule"
	default:
		return "?"
	}
}

// GameResult mirrors the rules-engine contract's result enumeration, always taken from
// the perspective of the side to move.
type GameResult uint8

const (
	ResultOngoing GameResult = iota
	ResultDraw
	ResultLoseForSideToMove
)

// Position is one game in progress: current board plus enough history to resolve
// repetition and the fifty-move rule.
type Position struct {
	b        *board.Board
	chess960 bool
}

// NewPosition returns a position at the standard starting array.
func NewPosition() *Position {
	pos, err := FromFEN(fen.Initial)
	if err != nil {
		panic(fmt.Sprintf("invalid built-in starting FEN: %v", err)) // unreachable
	}
	return pos
}

// FromFEN parses a FEN record into a new position.
func FromFEN(record string) (*Position, error) {
	pos, turn, noprogress, fullmoves, err := fen.Decode(record)
	if err != nil {
		return nil, fmt.Errorf("decode fen %q: %w", record, err)
	}
	return &Position{b: board.NewBoard(zobristTable, pos, turn, noprogress, fullmoves)}, nil
}

// SetFEN replaces the position in place, preserving the chess960 flag.
func (p *Position) SetFEN(record string) error {
	next, err := FromFEN(record)
	if err != nil {
		return err
	}
	next.chess960 = p.chess960
	*p = *next
	return nil
}

// FEN returns the current position in FEN notation.
func (p *Position) FEN() string {
	return fen.Encode(p.b.Position(), p.b.Turn(), p.b.NoProgress(), p.b.FullMoves())
}

// SideToMove returns the color to move.
func (p *Position) SideToMove() board.Color {
	return p.b.Turn()
}

// SetChess960 toggles Chess960 (Fischer Random) rules. The bundled move generator only
// recognizes standard e1/e8 home-square castling, so engines paired under chess960=true
// will see castling moves rejected as illegal; see DESIGN.md.
func (p *Position) SetChess960(enabled bool) {
	p.chess960 = enabled
}

// LegalMoves returns every legal move for the side to move.
func (p *Position) LegalMoves() []Move {
	return p.b.Position().LegalMoves(p.b.Turn())
}

// MakeMove applies m, which must be a legal move returned by LegalMoves (or otherwise
// known-legal); it reports an error if it is not.
func (p *Position) MakeMove(m Move) error {
	legal := false
	for _, l := range p.LegalMoves() {
		if l.Equals(m) {
			legal = true
			break
		}
	}
	if !legal || !p.b.PushMove(m) {
		return fmt.Errorf("illegal move: %v", p.MoveToUCI(m))
	}
	return nil
}

// UCIToMove parses a move in pure algebraic coordinate notation.
func (p *Position) UCIToMove(s string) (Move, error) {
	return board.ParseMove(s)
}

// MoveToUCI renders m in pure algebraic coordinate notation.
func (p *Position) MoveToUCI(m Move) string {
	return m.String()
}

// PieceAt returns the piece occupying sq, if any. Exposed for SAN rendering (pkg/pgn),
// which needs to know what moved without re-deriving it from the move list.
func (p *Position) PieceAt(sq board.Square) (board.Color, board.Piece, bool) {
	return p.b.Position().Square(sq)
}

// IsChecked reports whether c's king is attacked in the current position.
func (p *Position) IsChecked(c board.Color) bool {
	return p.b.Position().IsChecked(c)
}

// IsGameOver reports whether the rules consider the game over and why.
func (p *Position) IsGameOver() (GameOverReason, GameResult) {
	result := p.b.IsGameOver()
	switch result.Reason {
	case board.NoReason:
		return ReasonNone, ResultOngoing
	case board.Checkmate:
		return ReasonCheckmate, ResultLoseForSideToMove
	case board.Stalemate:
		return ReasonStalemate, ResultDraw
	case board.Repetition3, board.Repetition5:
		return ReasonThreefoldRepetition, ResultDraw
	case board.NoProgress:
		return ReasonFiftyMoveRule, ResultDraw
	case board.InsufficientMaterial:
		return ReasonInsufficientMaterial, ResultDraw
	default:
		return ReasonNone, ResultOngoing
	}
}
