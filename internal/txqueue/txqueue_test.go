package txqueue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestControlActionsOvertakeQueuedPayloads(t *testing.T) {
	q := New(8)
	require.NoError(t, q.Enqueue(Action{Kind: TXPayload, Frame: []byte("p1")}))
	require.NoError(t, q.Enqueue(Action{Kind: TXPayload, Frame: []byte("p2")}))
	require.NoError(t, q.Enqueue(Action{Kind: TXControl, Frame: []byte("ack")}))

	first, ok := q.Dequeue()
	require.True(t, ok)
	assert.Equal(t, TXControl, first.Kind)

	second, ok := q.Dequeue()
	require.True(t, ok)
	assert.Equal(t, TXPayload, second.Kind)
	assert.Equal(t, []byte("p1"), second.Frame)
}

func TestDequeueEmptyReturnsFalse(t *testing.T) {
	q := New(4)
	_, ok := q.Dequeue()
	assert.False(t, ok)
}

func TestEnqueueRejectsOverCapacity(t *testing.T) {
	q := New(1)
	require.NoError(t, q.Enqueue(Action{Kind: TXPayload}))
	err := q.Enqueue(Action{Kind: TXPayload})
	assert.Error(t, err)
}

func TestModeSwitchIsAlsoPriority(t *testing.T) {
	q := New(4)
	require.NoError(t, q.Enqueue(Action{Kind: TXPayload}))
	require.NoError(t, q.Enqueue(Action{Kind: ModeSwitch}))
	first, _ := q.Dequeue()
	assert.Equal(t, ModeSwitch, first.Kind)
}
