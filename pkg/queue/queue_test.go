package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quartzsched/qcore/pkg/job"
	"github.com/quartzsched/qcore/pkg/matcher"
)

func mustInsert(t *testing.T, q *Queue, id int64, priority uint32, tSubmit float64, jobspec string) *job.Job {
	t.Helper()
	j := job.New(id, 1, tSubmit, job.KeyPriority(priority), jobspec, 0)
	require.NoError(t, q.Insert(j))
	return j
}

func TestInsertRunningBypassesPendingTrees(t *testing.T) {
	m, err := matcher.NewMock(4, 1000)
	require.NoError(t, err)
	q := New("default", FCFS, m)

	j := job.New(1, 1, 0, job.KeyPriority(100), "cores=2,duration=10", 0)
	require.NoError(t, q.InsertRunning(j, "cores=2,duration=10"))

	assert.Equal(t, job.Running, j.State)
	stats := q.StatsGet()
	assert.Equal(t, 0, stats.PendingSize)
	assert.Equal(t, 0, stats.PendingProvisionalSize)
	assert.Equal(t, 1, stats.RunningSize)
	assert.Equal(t, []int64{1}, q.running)
}

func TestFCFSOrderingScenario(t *testing.T) {
	m, err := matcher.NewMock(4, 1000)
	require.NoError(t, err)
	q := New("default", FCFS, m)
	q.queueDepth = 4

	a := mustInsert(t, q, 1, 100, 1, "cores=2,duration=10")
	b := mustInsert(t, q, 2, 100, 2, "cores=2,duration=10")
	c := mustInsert(t, q, 3, 100, 3, "cores=2,duration=10")
	d := mustInsert(t, q, 4, 100, 4, "cores=2,duration=10")

	require.NoError(t, q.RunSchedLoop())

	assert.Equal(t, job.Running, a.State)
	assert.Equal(t, job.Running, b.State)
	assert.Equal(t, job.Pending, c.State)
	assert.Equal(t, job.Pending, d.State)

	require.NoError(t, q.Remove(a.ID, true, ""))
	require.NoError(t, q.RunSchedLoop())

	assert.Equal(t, job.Running, c.State)
	assert.Equal(t, job.Pending, d.State)
}

// TestFCFSQueueDepthTruncatesBatchAndStaysSchedulable uses ample
// resource capacity (so no job is ever ResourceBusy) and a queue_depth
// smaller than the pending count, isolating the depth cap itself: only
// the first queue_depth jobs in key order may run per pass, and the
// policy must latch fcfsQueueDepthLimit and re-arm schedulable so the
// remainder get picked up without any external event.
func TestFCFSQueueDepthTruncatesBatchAndStaysSchedulable(t *testing.T) {
	m, err := matcher.NewMock(100, 1000)
	require.NoError(t, err)
	q := New("default", FCFS, m)
	q.queueDepth = 2

	a := mustInsert(t, q, 1, 100, 1, "cores=2,duration=10")
	b := mustInsert(t, q, 2, 100, 2, "cores=2,duration=10")
	c := mustInsert(t, q, 3, 100, 3, "cores=2,duration=10")
	d := mustInsert(t, q, 4, 100, 4, "cores=2,duration=10")

	require.NoError(t, q.RunSchedLoop())

	assert.Equal(t, job.Running, a.State)
	assert.Equal(t, job.Running, b.State)
	assert.Equal(t, job.Pending, c.State)
	assert.Equal(t, job.Pending, d.State)
	assert.True(t, q.fcfsQueueDepthLimit, "batch cutoff by queue_depth must be latched")
	assert.True(t, q.IsSchedulable(), "truncation must re-arm the loop for the next pass")

	require.NoError(t, q.RunSchedLoop())
	assert.Equal(t, job.Running, c.State)
	assert.Equal(t, job.Running, d.State)
}

func TestEasyBackfillScenario(t *testing.T) {
	m, err := matcher.NewMock(6, 1000)
	require.NoError(t, err)
	q := New("default", Easy, m)
	q.queueDepth = 4

	resX := m.MatchAllocateMulti(true, []matcher.MatchRequest{{ID: 100, Jobspec: "cores=4,duration=100"}})
	require.True(t, resX[0].Ok)

	y := mustInsert(t, q, 1, 200, 2, "cores=4,duration=100")
	z := mustInsert(t, q, 2, 100, 3, "cores=2,duration=50")

	require.NoError(t, q.RunSchedLoop())

	assert.Equal(t, job.Running, y.State)
	assert.True(t, y.Schedule.Reserved)
	assert.Equal(t, int64(100), y.Schedule.At)

	assert.Equal(t, job.Running, z.State)
	assert.False(t, z.Schedule.Reserved)
	assert.Equal(t, int64(0), z.Schedule.At)
}

func TestConservativeBlocksDeeperBackfillScenario(t *testing.T) {
	m, err := matcher.NewMock(6, 1000)
	require.NoError(t, err)
	q := New("default", Conservative, m)
	q.queueDepth = 4
	require.NoError(t, q.SetPolicyParams("reservation-depth=1000000"))

	resX := m.MatchAllocateMulti(true, []matcher.MatchRequest{{ID: 100, Jobspec: "cores=4,duration=100"}})
	require.True(t, resX[0].Ok)

	y := mustInsert(t, q, 1, 200, 2, "cores=4,duration=100")
	z := mustInsert(t, q, 2, 100, 3, "cores=2,duration=50")
	w := mustInsert(t, q, 3, 100, 4, "cores=4,duration=50")

	require.NoError(t, q.RunSchedLoop())

	assert.Equal(t, job.Running, y.State)
	assert.True(t, y.Schedule.Reserved)
	assert.Equal(t, int64(100), y.Schedule.At)

	assert.Equal(t, job.Running, z.State)
	assert.False(t, z.Schedule.Reserved)

	assert.Equal(t, job.Running, w.State)
	assert.True(t, w.Schedule.Reserved)
	assert.Equal(t, int64(200), w.Schedule.At)
}

// TestBackfillQueueDepthTruncatesCursorAndStaysSchedulable uses ample
// capacity (no job is ever ResourceBusy) and a queue_depth smaller than
// the pending count, isolating the depth cap from the resource-busy
// blocked-job exemption: only the first queue_depth jobs in key order
// may be considered per pass.
func TestBackfillQueueDepthTruncatesCursorAndStaysSchedulable(t *testing.T) {
	m, err := matcher.NewMock(100, 1000)
	require.NoError(t, err)
	q := New("default", Easy, m)
	q.queueDepth = 2

	a := mustInsert(t, q, 1, 100, 1, "cores=2,duration=10")
	b := mustInsert(t, q, 2, 100, 2, "cores=2,duration=10")
	c := mustInsert(t, q, 3, 100, 3, "cores=2,duration=10")
	d := mustInsert(t, q, 4, 100, 4, "cores=2,duration=10")

	require.NoError(t, q.RunSchedLoop())

	assert.Equal(t, job.Running, a.State)
	assert.Equal(t, job.Running, b.State)
	assert.Equal(t, job.Pending, c.State)
	assert.Equal(t, job.Pending, d.State)
	assert.True(t, q.IsSchedulable(), "truncation must re-arm the loop for the next pass")

	require.NoError(t, q.RunSchedLoop())
	assert.Equal(t, job.Running, c.State)
	assert.Equal(t, job.Running, d.State)
}

// busyOnReserve answers every request as if tryReserve were false, so a
// job that cannot run now comes back ResourceBusy even on a reservation
// attempt; the plain Mock would reserve it instead.
type busyOnReserve struct{ *matcher.Mock }

func (b busyOnReserve) MatchAllocateMulti(_ bool, reqs []matcher.MatchRequest) []matcher.MatchResult {
	return b.Mock.MatchAllocateMulti(false, reqs)
}

// TestBackfillBlockedJobDoesNotCountAgainstQueueDepth drives a job into
// blocked via ResourceBusy-with-tryReserve, then verifies a second
// pending job still gets considered in the same pass even though
// queue_depth is 1 — the blocked move must not consume the cursor's
// budget. X holds 4 of 6 cores, so the 2-core job fits now.
func TestBackfillBlockedJobDoesNotCountAgainstQueueDepth(t *testing.T) {
	m, err := matcher.NewMock(6, 1000)
	require.NoError(t, err)
	q := New("default", Easy, busyOnReserve{m})
	q.queueDepth = 1
	require.NoError(t, q.SetPolicyParams("reservation-depth=1"))

	resX := m.MatchAllocateMulti(false, []matcher.MatchRequest{{ID: 100, Jobspec: "cores=4,duration=100"}})
	require.True(t, resX[0].Ok)

	blocked := mustInsert(t, q, 1, 100, 1, "cores=4,duration=100")
	runnable := mustInsert(t, q, 2, 100, 2, "cores=2,duration=50")

	require.NoError(t, q.RunSchedLoop())

	assert.Equal(t, job.Pending, blocked.State)
	assert.Equal(t, 1, q.blocked.Len())
	assert.Equal(t, job.Running, runnable.State, "blocked job must not have consumed the queue_depth=1 budget")
}

// TestReconsiderOnTopologyChangeScenario simulates a node-down condition
// by parking the job directly in blocked (the state the backfill loop
// would have left it in on a ResourceBusy-with-tryReserve outcome),
// then simulates the node coming back by swapping in a matcher with
// sufficient capacity before calling ReconsiderBlockedJobs.
func TestReconsiderOnTopologyChangeScenario(t *testing.T) {
	starved, err := matcher.NewMock(0, 1000)
	require.NoError(t, err)
	q := New("default", Easy, starved)

	y := job.New(1, 1, 1, job.KeyPriority(100), "cores=1,duration=10", 0)
	q.jobs[y.ID] = y
	y.State = job.Pending
	q.blocked.ReplaceOrInsert(pendingItem{key: y.Key, id: y.ID})

	assert.Equal(t, job.Pending, y.State)
	assert.Equal(t, 1, q.blocked.Len())

	restored, err := matcher.NewMock(4, 1000)
	require.NoError(t, err)
	q.m = restored
	q.ReconsiderBlockedJobs()

	assert.Equal(t, 0, q.blocked.Len())
	assert.Equal(t, 1, q.pending.Len())

	require.NoError(t, q.RunSchedLoop())
	assert.Equal(t, job.Running, y.State)
}

func TestReprioritizeDuringActiveLoopIsBuffered(t *testing.T) {
	m, err := matcher.NewMock(4, 1000)
	require.NoError(t, err)
	q := New("default", FCFS, m)

	j := mustInsert(t, q, 1, 100, 1, "cores=4,duration=10")

	q.schedLoopActive = true
	require.NoError(t, q.Reprioritize(j.ID, job.KeyPriority(1)))
	assert.Len(t, q.pendingReprioProvisional, 1)
	assert.Equal(t, job.KeyPriority(100), j.Priority)

	q.schedLoopActive = false
	q.flushProvisional()

	assert.Equal(t, job.KeyPriority(1), j.Priority)
	assert.True(t, q.schedulable)
}

func TestCancelSchedLoopBuffersDuringActiveLoop(t *testing.T) {
	m, err := matcher.NewMock(4, 1000)
	require.NoError(t, err)
	q := New("default", FCFS, m)

	j := mustInsert(t, q, 1, 100, 1, "cores=4,duration=10")

	q.schedLoopActive = true
	require.NoError(t, q.RemovePending(j.ID))
	assert.Equal(t, job.Pending, j.State)
	assert.Len(t, q.pendingCancelProvisional, 1)

	q.schedLoopActive = false
	q.flushProvisional()

	assert.Equal(t, job.Canceled, j.State)
}

func TestStatsGetReflectsQueueState(t *testing.T) {
	m, err := matcher.NewMock(4, 1000)
	require.NoError(t, err)
	q := New("default", FCFS, m)

	mustInsert(t, q, 1, 100, 1, "cores=2,duration=10")
	mustInsert(t, q, 2, 100, 2, "cores=2,duration=10")
	require.NoError(t, q.RunSchedLoop())

	stats := q.StatsGet()
	assert.Equal(t, 2, stats.RunningSize)
	assert.Equal(t, uint64(2), stats.RunningCnt)
	assert.Equal(t, uint64(2), stats.AllocedCnt)

	q.StatsClear()
	cleared := q.StatsGet()
	assert.Equal(t, uint64(0), cleared.RunningCnt)
	assert.Equal(t, 2, cleared.RunningSize)
}
