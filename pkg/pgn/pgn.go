// Package pgn renders a played game as PGN (Portable Game Notation) text, the
// PgnBuilder collaborator referenced by the persisted-state contract. It is driven
// incrementally, one ply at a time, by the match runner.
package pgn

import (
	"fmt"
	"strings"
	"time"

	"github.com/boutlab/bout/pkg/board"
	"github.com/boutlab/bout/pkg/board/fen"
	"github.com/boutlab/bout/pkg/chess"
)

// Builder accumulates PGN tag pairs and movetext for one game.
type Builder struct {
	tags     []tag
	movetext strings.Builder
	moveNo   int
	whiteToMove bool
}

type tag struct {
	key, value string
}

// NewBuilder starts a game record. startFEN is included as a SetUp/FEN tag pair when it
// is not the standard starting position.
func NewBuilder(event, white, black, startFEN string, whiteToMove bool, date time.Time) *Builder {
	b := &Builder{moveNo: 1, whiteToMove: whiteToMove}
	b.tag("Event", event)
	b.tag("Date", date.UTC().Format("2006.01.02"))
	b.tag("White", white)
	b.tag("Black", black)
	if startFEN != "" && startFEN != fen.Initial {
		b.tag("SetUp", "1")
		b.tag("FEN", startFEN)
	}
	return b
}

func (b *Builder) tag(key, value string) {
	b.tags = append(b.tags, tag{key, value})
}

// AddMove renders one ply in SAN and appends it to the movetext. before is the position
// immediately prior to the move; m is the move about to be (or just) applied. Disambiguation
// between identical pieces able to reach the same square is not attempted: an acceptable
// simplification for a tournament log, not a publication-quality SAN writer.
func (b *Builder) AddMove(before *chess.Position, m chess.Move) {
	san := b.san(before, m)

	if b.whiteToMove {
		fmt.Fprintf(&b.movetext, "%v. %v ", b.moveNo, san)
	} else {
		fmt.Fprintf(&b.movetext, "%v ", san)
		b.moveNo++
	}
	b.whiteToMove = !b.whiteToMove
}

func (b *Builder) san(before *chess.Position, m chess.Move) string {
	_, piece, _ := before.PieceAt(m.From)
	_, _, occupied := before.PieceAt(m.To)
	isCastle := piece == board.King && (m.From.File()-m.To.File() == 2 || m.To.File()-m.From.File() == 2)

	var sb strings.Builder
	switch {
	case isCastle && m.To.File() == board.FileG:
		sb.WriteString("O-O")
	case isCastle:
		sb.WriteString("O-O-O")
	default:
		isCapture := occupied || (piece == board.Pawn && m.From.File() != m.To.File())
		if piece == board.Pawn {
			if isCapture {
				fmt.Fprintf(&sb, "%vx%v", strings.ToLower(m.From.File().String()), strings.ToLower(m.To.String()))
			} else {
				sb.WriteString(strings.ToLower(m.To.String()))
			}
			if m.Promotion.IsValid() {
				fmt.Fprintf(&sb, "=%v", strings.ToUpper(m.Promotion.String()))
			}
		} else {
			sb.WriteString(strings.ToUpper(piece.String()))
			if isCapture {
				sb.WriteString("x")
			}
			sb.WriteString(strings.ToLower(m.To.String()))
		}
	}

	// Determine check/mate suffix against the position after the move.
	after, err := chess.FromFEN(before.FEN())
	if err == nil {
		if err := after.MakeMove(m); err == nil {
			if after.IsChecked(after.SideToMove()) {
				if reason, _ := after.IsGameOver(); reason == chess.ReasonCheckmate {
					sb.WriteString("#")
				} else {
					sb.WriteString("+")
				}
			}
		}
	}

	return sb.String()
}

// SetResult appends the PGN result tag and terminal result token (e.g. "1-0").
func (b *Builder) SetResult(result string) {
	b.tag("Result", result)
}

// String renders the full PGN document: tag pairs, a blank line, then movetext.
func (b *Builder) String() string {
	var sb strings.Builder
	result := "*"
	for _, t := range b.tags {
		fmt.Fprintf(&sb, "[%v \"%v\"]\n", t.key, t.value)
		if t.key == "Result" {
			result = t.value
		}
	}
	sb.WriteString("\n")
	sb.WriteString(strings.TrimSpace(b.movetext.String()))
	sb.WriteString(" ")
	sb.WriteString(result)
	sb.WriteString("\n")
	return sb.String()
}
