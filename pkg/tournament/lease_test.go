package tournament

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLeaseReleaseIsIdempotent(t *testing.T) {
	released := 0
	l := NewLease(7, func(int) { released++ })

	l.Release()
	l.Release()
	l.Release()

	assert.Equal(t, 1, released)
}

func TestLeaseValue(t *testing.T) {
	l := NewLease("cpu-set", func(string) {})
	assert.Equal(t, "cpu-set", l.V())
}
