package mapper

import (
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapSlice(t *testing.T) {
	t.Run("nil input", func(t *testing.T) {
		assert.Nil(t, MapSlice[int, string](nil, strconv.Itoa))
	})

	t.Run("maps in order", func(t *testing.T) {
		assert.Equal(t, []string{"1", "2", "3"}, MapSlice([]int{1, 2, 3}, strconv.Itoa))
	})

	t.Run("empty input stays empty", func(t *testing.T) {
		got := MapSlice([]int{}, strconv.Itoa)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})
}

func TestMapSliceWithIndex(t *testing.T) {
	type row struct{ n int }

	t.Run("maps every element", func(t *testing.T) {
		got, err := MapSliceWithIndex([]row{{1}, {2}}, func(r *row) (int, error) {
			return r.n * 10, nil
		})
		require.NoError(t, err)
		assert.Equal(t, []int{10, 20}, got)
	})

	t.Run("stops on first error", func(t *testing.T) {
		boom := errors.New("boom")
		calls := 0
		_, err := MapSliceWithIndex([]row{{1}, {2}, {3}}, func(r *row) (int, error) {
			calls++
			if r.n == 2 {
				return 0, boom
			}
			return r.n, nil
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), "item 1")
		assert.Equal(t, 2, calls)
	})

	t.Run("nil input gives empty result", func(t *testing.T) {
		got, err := MapSliceWithIndex[row, int](nil, func(r *row) (int, error) { return r.n, nil })
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}
