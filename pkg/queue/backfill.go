package queue

import (
	"github.com/quartzsched/qcore/pkg/job"
	"github.com/quartzsched/qcore/pkg/matcher"
)

// runBackfill implements the resumable cursor shared by EASY, HYBRID,
// and CONSERVATIVE: walk up to queue_depth pending jobs in key order,
// submitting each individually with tryReserve true until
// reservation_depth reservations have been made this pass, then
// tryReserve false for the remainder. A job whose reservation attempt
// (tryReserve true) comes back ResourceBusy is moved to blocked rather
// than left pending, so the next pass does not re-walk it until a
// topology change triggers reconsider; a ResourceBusy job past the
// depth stays pending. Moving a job to blocked does not count
// against queue_depth, since it leaves the cursor with no more
// information than before it was considered. Grounded on
// queue_policy_bf_base_impl.hpp's run_sched_loop.
func (q *Queue) runBackfill() error {
	snapshot := q.pendingSnapshot()
	var reservationsSoFar uint64
	var considered uint32
	truncated := false

	for _, it := range snapshot {
		if considered >= q.queueDepth {
			truncated = true
			break
		}
		j, ok := q.jobs[it.id]
		if !ok || j.State != job.Pending {
			continue
		}

		tryReserve := reservationsSoFar < q.reservationDepth
		results := q.m.MatchAllocateMulti(tryReserve, []matcher.MatchRequest{{ID: j.ID, Jobspec: j.Jobspec}})
		if len(results) == 0 {
			continue
		}
		res := results[0]

		switch {
		case res.Ok && res.Status == matcher.Allocated:
			q.removePendingEntry(j)
			q.toRunning(j, res.R, res.At, false)
			q.toAlloced(j, true)
			considered++

		case res.Ok && res.Status == matcher.Reserved:
			q.removePendingEntry(j)
			q.toRunning(j, res.R, res.At, true)
			q.toAlloced(j, false)
			reservationsSoFar++
			considered++

		case res.Reason == matcher.Unsatisfiable:
			q.removePendingEntry(j)
			q.toRejected(j, job.NoteUnsatisfiable)
			considered++

		case res.Reason == matcher.ResourceBusy && tryReserve:
			// reservation_depth exhausted concurrently, or the matcher
			// declined to reserve; park until topology changes. Does not
			// count against queue_depth.
			q.removePendingEntry(j)
			q.blocked.ReplaceOrInsert(it)

		case res.Reason == matcher.ResourceBusy:
			// left pending untouched; the next pass will retry it with
			// tryReserve evaluated fresh.
			considered++

		default:
			q.removePendingEntry(j)
			q.toRejected(j, job.NoteMatchError)
			considered++
		}
	}
	if truncated {
		q.schedulable = true
	}
	return nil
}
