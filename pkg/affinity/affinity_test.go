package affinity_test

import (
	"testing"

	"github.com/boutlab/bout/pkg/affinity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquirePrefersContiguousGroup(t *testing.T) {
	a := affinity.New([][]int{{0, 1}, {2, 3}})

	cpus, ok := a.Acquire(2)
	require.True(t, ok)
	assert.Equal(t, []int{0, 1}, cpus)
}

func TestAcquireTakesNextFreeGroupThenExhausts(t *testing.T) {
	a := affinity.New([][]int{{0, 1}, {2, 3}})

	_, ok := a.Acquire(2) // takes {0,1}
	require.True(t, ok)

	cpus, ok := a.Acquire(2) // only {2,3} left as one contiguous group
	require.True(t, ok)
	assert.Equal(t, []int{2, 3}, cpus)

	_, ok = a.Acquire(1)
	assert.False(t, ok)
}

func TestReleaseReturnsCpusToPool(t *testing.T) {
	a := affinity.NewFlat(4)

	cpus, ok := a.Acquire(4)
	require.True(t, ok)

	_, ok = a.Acquire(1)
	assert.False(t, ok)

	a.Release(cpus)

	_, ok = a.Acquire(4)
	assert.True(t, ok)
}
