package position

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRing(t *testing.T) {
	r := NewRing[int](3)
	assert.Nil(t, r.Values())
	_, ok := r.Last()
	assert.False(t, ok)

	r.Push(1)
	r.Push(2)
	assert.Equal(t, []int{1, 2}, r.Values())

	for i := 3; i <= 7; i++ {
		r.Push(i)
	}
	assert.Equal(t, []int{5, 6, 7}, r.Values())
	assert.Equal(t, 3, r.Len())
	assert.Equal(t, 3, r.Cap())

	last, ok := r.Last()
	assert.True(t, ok)
	assert.Equal(t, 7, last)

	var seen []int
	r.Each(func(v int) { seen = append(seen, v) })
	assert.Equal(t, []int{5, 6, 7}, seen)
}

func TestRingMinimumCapacity(t *testing.T) {
	r := NewRing[string](0)
	r.Push("a")
	r.Push("b")
	assert.Equal(t, []string{"b"}, r.Values())
}
