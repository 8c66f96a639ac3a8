package book_test

import (
	"testing"

	"github.com/boutlab/bout/pkg/board/fen"
	"github.com/boutlab/bout/pkg/book"
	"github.com/stretchr/testify/assert"
)

func TestNextRoundRobinsAndWraps(t *testing.T) {
	b := book.New([]book.Opening{
		{FEN: fen.Initial},
		{FEN: "r1b1k2r/pppp1ppp/2n2n2/4p3/2B1P3/5Q2/PPPP1PPP/RNB1K2R w KQkq - 0 1"},
	})

	_, i0 := b.Next()
	_, i1 := b.Next()
	o2, i2 := b.Next()

	assert.Equal(t, 0, i0)
	assert.Equal(t, 1, i1)
	assert.Equal(t, 0, i2)
	assert.Equal(t, fen.Initial, o2.FEN)
}

func TestNewPanicsOnEmpty(t *testing.T) {
	assert.Panics(t, func() { book.New(nil) })
}
