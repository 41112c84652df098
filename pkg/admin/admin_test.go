package admin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quartzsched/qcore/pkg/matcher"
	"github.com/quartzsched/qcore/pkg/queue"
)

func TestResourceStatusReportsMockPlanner(t *testing.T) {
	m, err := matcher.NewMock(8, 1000)
	require.NoError(t, err)
	set := queue.NewSet()
	set.Add(queue.New("default", queue.FCFS, m))

	a := New(set, map[string]matcher.Matcher{"default": m})
	snaps, err := a.ResourceStatus("default")
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, int64(8), snaps[0].Total)
	assert.Equal(t, int64(8), snaps[0].FreeNow)
}

func TestFeasibilityChecksWithoutPlacing(t *testing.T) {
	m, err := matcher.NewMock(4, 1000)
	require.NoError(t, err)
	set := queue.NewSet()
	set.Add(queue.New("default", queue.FCFS, m))
	a := New(set, map[string]matcher.Matcher{"default": m})

	ok, err := a.Feasibility("default", "cores=4,duration=10")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = a.Feasibility("default", "cores=100,duration=10")
	require.NoError(t, err)
	assert.False(t, ok)

	snaps, err := a.ResourceStatus("default")
	require.NoError(t, err)
	assert.Equal(t, 0, snaps[0].SpanCount, "feasibility probe must not place a span")
}

func TestStatsAndParamsRoundtrip(t *testing.T) {
	m, err := matcher.NewMock(4, 1000)
	require.NoError(t, err)
	set := queue.NewSet()
	q := queue.New("default", queue.FCFS, m)
	require.NoError(t, q.SetQueueParams("queue-depth=8"))
	set.Add(q)

	a := New(set, map[string]matcher.Matcher{"default": m})

	params, err := a.Params("default")
	require.NoError(t, err)
	assert.Equal(t, uint32(8), params.QueueDepth)

	stats, err := a.StatsGet("default")
	require.NoError(t, err)
	assert.Equal(t, uint32(8), stats.QueueDepth)

	require.NoError(t, a.StatsClear("default"))
}

func TestUnknownQueueReturnsNotFound(t *testing.T) {
	set := queue.NewSet()
	a := New(set, map[string]matcher.Matcher{})
	_, err := a.Params("nope")
	assert.Error(t, err)
}
