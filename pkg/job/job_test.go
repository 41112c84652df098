package job

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyPriorityTransformation(t *testing.T) {
	low := KeyPriority(10)
	high := KeyPriority(200)
	assert.Less(t, high, low, "higher user priority must produce a smaller (better) sort key")
}

func TestPendingKeyOrdering(t *testing.T) {
	a := PendingKey{Priority: 1, TSubmit: 5, Sequence: 0}
	b := PendingKey{Priority: 1, TSubmit: 5, Sequence: 1}
	c := PendingKey{Priority: 2, TSubmit: 1, Sequence: 0}

	assert.True(t, a.Less(b))
	assert.False(t, b.Less(a))
	assert.True(t, a.Less(c))
}

func TestNewJobStartsInInitWithDerivedKey(t *testing.T) {
	j := New(1, 42, 3.5, KeyPriority(100), "{}", 7)
	assert.Equal(t, Init, j.State)
	assert.Equal(t, KeyPriority(100), j.Key.Priority)
	assert.Equal(t, uint64(7), j.Key.Sequence)
}

func TestRekeyUpdatesOrderingOnly(t *testing.T) {
	j := New(1, 42, 3.5, KeyPriority(100), "{}", 7)
	oldSeq := j.Key.Sequence
	j.Rekey(KeyPriority(200))
	assert.Equal(t, KeyPriority(200), j.Priority)
	assert.Equal(t, KeyPriority(200), j.Key.Priority)
	assert.Equal(t, oldSeq, j.Key.Sequence)
}
