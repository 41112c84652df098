package queue

import (
	"github.com/quartzsched/qcore/pkg/job"
	"github.com/quartzsched/qcore/pkg/matcher"
)

// runFCFS implements the non-resumable batch path: up to queue_depth
// pending jobs are submitted to the matcher in key order with
// tryReserve=false in one batch. The first ResourceBusy halts
// processing of further results for this pass: the remainder stay
// pending for the next loop, and any of them the matcher already
// placed has that placement cancelled. When the batch is cut off by
// queue_depth rather than running out of pending jobs, fcfsQueueDepthLimit
// is latched and schedulable is re-armed so the next loop picks up
// where this one left off, mirroring queue_policy_fcfs_impl.hpp's
// run_sched_loop / m_queue_depth_limit handling.
func (q *Queue) runFCFS() error {
	snapshot := q.pendingSnapshot()

	var batch []matcher.MatchRequest
	var batchJobs []*job.Job
	truncated := false
	for _, it := range snapshot {
		if len(batch) >= int(q.queueDepth) {
			truncated = true
			break
		}
		j, ok := q.jobs[it.id]
		if !ok || j.State != job.Pending {
			continue
		}
		batch = append(batch, matcher.MatchRequest{ID: j.ID, Jobspec: j.Jobspec})
		batchJobs = append(batchJobs, j)
	}
	if truncated {
		q.fcfsQueueDepthLimit = true
		q.schedulable = true
	}

	if len(batch) == 0 {
		return nil
	}

	results := q.m.MatchAllocateMulti(false, batch)
	byID := make(map[int64]matcher.MatchResult, len(results))
	for _, r := range results {
		byID[r.ID] = r
	}

	halted := false
	for _, j := range batchJobs {
		res, ok := byID[j.ID]
		if !ok {
			continue
		}
		if halted {
			if res.Ok {
				_ = q.m.Cancel(j.ID, true)
			}
			continue
		}
		switch {
		case res.Ok:
			q.removePendingEntry(j)
			reserved := res.Status == matcher.Reserved
			q.toRunning(j, res.R, res.At, reserved)
			q.toAlloced(j, !reserved)
		case res.Reason == matcher.ResourceBusy:
			halted = true
		case res.Reason == matcher.Unsatisfiable:
			q.removePendingEntry(j)
			q.toRejected(j, job.NoteUnsatisfiable)
		default:
			q.removePendingEntry(j)
			q.toRejected(j, job.NoteMatchError)
		}
	}
	return nil
}
