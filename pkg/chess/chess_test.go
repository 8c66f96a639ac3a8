package chess_test

import (
	"testing"

	"github.com/boutlab/bout/pkg/chess"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartingPosition(t *testing.T) {
	pos := chess.NewPosition()
	assert.Len(t, pos.LegalMoves(), 20)

	reason, result := pos.IsGameOver()
	assert.Equal(t, chess.ReasonNone, reason)
	assert.Equal(t, chess.ResultOngoing, result)
}

func TestFoolsMateCheckmate(t *testing.T) {
	pos := chess.NewPosition()

	for _, uci := range []string{"f2f3", "e7e5", "g2g4", "d8h4"} {
		m, err := pos.UCIToMove(uci)
		require.NoError(t, err)
		require.NoError(t, pos.MakeMove(m))
	}

	reason, result := pos.IsGameOver()
	assert.Equal(t, chess.ReasonCheckmate, reason)
	assert.Equal(t, chess.ResultLoseForSideToMove, result)
}

func TestIllegalMoveRejected(t *testing.T) {
	pos := chess.NewPosition()

	m, err := pos.UCIToMove("e2e5")
	require.NoError(t, err)
	assert.Error(t, pos.MakeMove(m))
}

func TestSetFENRoundTrip(t *testing.T) {
	const record = "r1b1k2r/pppp1ppp/2n2n2/4p3/2B1P3/5Q2/PPPP1PPP/RNB1K2R w KQkq - 0 1"

	pos := chess.NewPosition()
	require.NoError(t, pos.SetFEN(record))
	assert.Equal(t, record, pos.FEN())
}
