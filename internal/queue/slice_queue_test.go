package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type msgItem struct {
	data string
}

func TestSliceQueue(t *testing.T) {
	assert := assert.New(t)
	t.Run("Empty Queue", func(t *testing.T) {
		q := NewSliceQueue[*msgItem](1)

		assert.True(q.IsEmpty())
		assert.Equal(0, q.Length())

		item, ok := q.Dequeue()
		assert.False(ok)
		assert.Nil(item)

		item, ok = q.Peek()
		assert.False(ok)
		assert.Nil(item)
	})

	t.Run("Enqueue and Dequeue", func(t *testing.T) {
		q := NewSliceQueue[*msgItem](1)

		item1 := &msgItem{"data1"}
		q.Enqueue(item1)
		assert.False(q.IsEmpty())
		assert.Equal(1, q.Length())

		item2 := &msgItem{"data2"}
		q.Enqueue(item2)
		assert.Equal(2, q.Length())

		dequeued1, ok := q.Dequeue()
		assert.True(ok)
		assert.Equal(item1, dequeued1)
		assert.Equal(1, q.Length())

		dequeued2, ok := q.Dequeue()
		assert.True(ok)
		assert.Equal(item2, dequeued2)
		assert.True(q.IsEmpty())

		dequeued3, ok := q.Dequeue()
		assert.False(ok)
		assert.Nil(dequeued3)
		assert.True(q.IsEmpty())
	})

	t.Run("Peek", func(t *testing.T) {
		q := NewSliceQueue[*msgItem](1)

		item := &msgItem{"data"}
		q.Enqueue(item)

		peeked, ok := q.Peek()
		assert.True(ok)
		assert.Equal(item, peeked)
		assert.Equal(1, q.Length())
	})

	t.Run("Reset", func(t *testing.T) {
		q := NewSliceQueue[*msgItem](1)

		q.Enqueue(&msgItem{"data1"})
		q.Enqueue(&msgItem{"data2"})
		q.Reset()

		assert.True(q.IsEmpty())
		assert.Equal(0, q.Length())
	})
}
