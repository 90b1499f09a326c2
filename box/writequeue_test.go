package box

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteQueue_DoneRemovesAppliedValue(t *testing.T) {
	q := newWriteQueue()
	q.put("a", writeOp{value: 1})
	q.put("b", writeOp{value: 2})

	name, op, ok := q.front()
	require.True(t, ok)
	assert.Equal(t, "a", name)
	assert.Equal(t, 2, q.len())

	q.done(name, op)
	assert.Equal(t, []string{"b"}, q.pending())
}

func TestWriteQueue_DoneKeepsNewerValue(t *testing.T) {
	q := newWriteQueue()
	q.put("a", writeOp{value: 1})

	name, op, ok := q.front()
	require.True(t, ok)

	// a newer value arrives while the old one is being applied
	q.put("a", writeOp{value: 7})
	q.done(name, op)

	name, op, ok = q.front()
	require.True(t, ok)
	assert.Equal(t, "a", name)
	assert.Equal(t, 7, op.value)
}

func TestWriteQueue_FrontOnEmpty(t *testing.T) {
	q := newWriteQueue()

	_, _, ok := q.front()
	assert.False(t, ok)

	q.done("missing", writeOp{})
	assert.Zero(t, q.len())
}
