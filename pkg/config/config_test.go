package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quartzsched/qcore/pkg/matcher"
	"github.com/quartzsched/qcore/pkg/queue"
)

func TestCanonicalizeEmptyQueuesYieldsDefault(t *testing.T) {
	cfg, err := Canonicalize(&File{})
	require.NoError(t, err)
	require.Len(t, cfg.Queues, 1)
	assert.Equal(t, DefaultQueueName, cfg.Queues[0].Name)
	assert.Equal(t, queue.FCFS, cfg.Queues[0].Policy)
}

func TestCanonicalizePerQueueOverridesInherit(t *testing.T) {
	f := &File{
		Queues:              "batch debug",
		DefaultQueuePolicy:  "hybrid",
		QueueParams:         "queue-depth=64,max-queue-depth=1000",
		QueuePolicyPerQueue: "debug:fcfs",
		QueueParamsPerQueue: "debug:queue-depth=8",
	}
	cfg, err := Canonicalize(f)
	require.NoError(t, err)
	require.Len(t, cfg.Queues, 2)

	byName := map[string]QueueConfig{}
	for _, qc := range cfg.Queues {
		byName[qc.Name] = qc
	}

	assert.Equal(t, queue.Hybrid, byName["batch"].Policy)
	assert.Equal(t, "queue-depth=64,max-queue-depth=1000", byName["batch"].QueueParams)

	assert.Equal(t, queue.FCFS, byName["debug"].Policy)
	assert.Equal(t, "queue-depth=8", byName["debug"].QueueParams)
}

func TestCanonicalizeUnknownOverrideQueueFails(t *testing.T) {
	f := &File{
		Queues:              "batch",
		QueuePolicyPerQueue: "nope:fcfs",
	}
	_, err := Canonicalize(f)
	assert.Error(t, err)
}

func TestBuildSetAppliesParams(t *testing.T) {
	cfg, err := Canonicalize(&File{
		Queues:             "batch",
		DefaultQueuePolicy: "conservative",
		PolicyParams:       "reservation-depth=8",
		QueueParams:        "queue-depth=4",
	})
	require.NoError(t, err)

	m, err := matcher.NewMock(4, 100)
	require.NoError(t, err)
	set, err := cfg.BuildSet(func(string) matcher.Matcher { return m })
	require.NoError(t, err)

	q, ok := set.Get("batch")
	require.True(t, ok)
	params := q.GetParams()
	assert.Equal(t, uint32(4), params.QueueDepth)
	// CONSERVATIVE caps reservation-depth=8 at queue-depth=4.
	assert.Equal(t, uint64(4), params.ReservationDepth)
}
