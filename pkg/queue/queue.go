/*
Package queue implements the queue policy engine (components F, G, H):
per-named-queue job lifecycle state machine, provisional cancel/
reprioritize buffers, and the FCFS/backfill scheduling loop variants.
Grounded on qmanager/policies/base/queue_policy_base.hpp,
queue_policy_bf_base_impl.hpp, queue_policy_fcfs_impl.hpp, and the
EASY/HYBRID/CONSERVATIVE impl headers for their reservation_depth
defaults.
*/
package queue

import (
	"strconv"
	"strings"

	"github.com/google/btree"
	"github.com/quartzsched/qcore/pkg/errs"
	"github.com/quartzsched/qcore/pkg/job"
	"github.com/quartzsched/qcore/pkg/matcher"
)

// Policy selects the scheduling loop variant. FCFS takes the
// non-resumable batch path; the other three share one resumable
// backfill loop parameterized by ReservationDepth.
type Policy int

const (
	FCFS Policy = iota
	Easy
	Hybrid
	Conservative
)

func (p Policy) String() string {
	switch p {
	case FCFS:
		return "fcfs"
	case Easy:
		return "easy"
	case Hybrid:
		return "hybrid"
	case Conservative:
		return "conservative"
	default:
		return "unknown"
	}
}

// ParsePolicy maps a configuration string to a Policy, defaulting to ok=false
// for anything unrecognized so the caller can warn and keep the prior value.
func ParsePolicy(s string) (Policy, bool) {
	switch s {
	case "fcfs":
		return FCFS, true
	case "easy":
		return Easy, true
	case "hybrid":
		return Hybrid, true
	case "conservative":
		return Conservative, true
	default:
		return FCFS, false
	}
}

const (
	DefaultQueueDepth    = 32
	DefaultMaxQueueDepth = 1000000

	EasyReservationDepth       = 1
	HybridReservationDepth     = 64
	MaxReservationDepth uint64 = 1<<63 - 1 // CONSERVATIVE's nominal infinity, capped by queue_depth at apply time
)

func defaultReservationDepth(p Policy) uint64 {
	switch p {
	case Easy:
		return EasyReservationDepth
	case Hybrid:
		return HybridReservationDepth
	case Conservative:
		return MaxReservationDepth
	default:
		return 0
	}
}

type pendingItem struct {
	key job.PendingKey
	id  int64
}

func pendingLess(a, b pendingItem) bool { return a.key.Less(b.key) }

type reprioOp struct {
	id          int64
	newPriority uint32
}

// Queue is one named policy instance: job membership state machine,
// provisional buffers, and the scheduling loop.
type Queue struct {
	name   string
	policy Policy
	m      matcher.Matcher

	queueDepth       uint32
	maxQueueDepth    uint32
	reservationDepth uint64

	jobs map[int64]*job.Job

	pending             *btree.BTreeG[pendingItem]
	pendingProvisional  *btree.BTreeG[pendingItem]
	blocked             *btree.BTreeG[pendingItem]
	pendingSequence     uint64

	running  []int64
	alloced  []int64
	rejected []int64
	canceled []int64

	pendingCancelProvisional []int64
	pendingReprioProvisional []reprioOp

	schedulable      bool
	scheduled        bool
	schedLoopActive  bool
	pendingReconsider bool

	fcfsQueueDepthLimit bool

	allocedPop  []int64
	rejectedPop []int64
	canceledPop []int64

	pendingCnt, runningCnt, allocedCnt, rejectedCnt, canceledCnt uint64
	cancelCnt, reprioCnt                                         uint64
}

// New constructs a named queue with the policy's default reservation
// depth and the system default queue depths.
func New(name string, policy Policy, m matcher.Matcher) *Queue {
	return &Queue{
		name:             name,
		policy:           policy,
		m:                m,
		queueDepth:       DefaultQueueDepth,
		maxQueueDepth:    DefaultMaxQueueDepth,
		reservationDepth: defaultReservationDepth(policy),
		jobs:             make(map[int64]*job.Job),
		pending:            btree.NewG(32, pendingLess),
		pendingProvisional: btree.NewG(32, pendingLess),
		blocked:            btree.NewG(32, pendingLess),
	}
}

// Contains reports whether id is currently tracked by this queue,
// regardless of state.
func (q *Queue) Contains(id int64) bool {
	_, ok := q.jobs[id]
	return ok
}

// Job returns the tracked job record for id, for admin inspection.
func (q *Queue) Job(id int64) (*job.Job, bool) {
	j, ok := q.jobs[id]
	return j, ok
}

func (q *Queue) Name() string        { return q.name }
func (q *Queue) Policy() Policy       { return q.policy }
func (q *Queue) IsSchedulable() bool  { return q.schedulable }
func (q *Queue) IsScheduled() bool    { return q.scheduled }

// ResetScheduled clears the scheduled flag after its response batch has
// been drained for this tick.
func (q *Queue) ResetScheduled() { q.scheduled = false }
func (q *Queue) SchedLoopActive() bool { return q.schedLoopActive }

// CancelSchedLoop reports whether a loop is currently active. A true
// result means the caller must defer its mutation into a provisional
// buffer rather than applying it synchronously.
func (q *Queue) CancelSchedLoop() bool {
	return q.schedLoopActive
}

// Insert places a new job into the pending-provisional buffer, merged
// into pending at the next loop entry.
func (q *Queue) Insert(j *job.Job) error {
	if j == nil {
		return errs.New(errs.InvalidArgument, "nil job")
	}
	if _, exists := q.jobs[j.ID]; exists {
		return errs.New(errs.AlreadyExists, "duplicate job id")
	}
	j.State = job.Pending
	j.Key.Sequence = q.pendingSequence
	q.pendingSequence++
	q.pendingCnt++
	q.jobs[j.ID] = j
	q.pendingProvisional.ReplaceOrInsert(pendingItem{key: j.Key, id: j.ID})
	q.schedulable = true
	return nil
}

// InsertRunning registers a job discovered already running at startup
// (the job-manager hello handshake) directly into the running set,
// bypassing the pending trees entirely: the job was never matched by
// this process and has no pending key to order. r is recorded verbatim
// as the job's resource set, matching the source's treatment of hello
// jobs.
func (q *Queue) InsertRunning(j *job.Job, r string) error {
	if j == nil {
		return errs.New(errs.InvalidArgument, "nil job")
	}
	if _, exists := q.jobs[j.ID]; exists {
		return errs.New(errs.AlreadyExists, "duplicate job id")
	}
	q.jobs[j.ID] = j
	q.toRunning(j, r, j.Schedule.At, j.Schedule.Reserved)
	return nil
}

// findAndErase removes id from whichever of pending/blocked/
// pendingProvisional currently holds it, using the job's live Key.
func (q *Queue) findAndErase(j *job.Job) bool {
	item := pendingItem{key: j.Key, id: j.ID}
	if _, ok := q.pending.Delete(item); ok {
		return true
	}
	if _, ok := q.pendingProvisional.Delete(item); ok {
		return true
	}
	if _, ok := q.blocked.Delete(item); ok {
		return true
	}
	return false
}

// RemovePending cancels a job that is currently Pending. If a sched
// loop is active the cancellation is buffered and applied on exit.
func (q *Queue) RemovePending(id int64) error {
	j, ok := q.jobs[id]
	if !ok {
		return errs.New(errs.NotFound, "unknown job id")
	}
	if j.State != job.Pending {
		return errs.New(errs.InvalidArgument, "job is not pending")
	}
	if q.CancelSchedLoop() {
		q.pendingCancelProvisional = append(q.pendingCancelProvisional, id)
		return nil
	}
	if !q.findAndErase(j) {
		return errs.New(errs.NotFound, "job not present in any pending set")
	}
	j.State = job.Canceled
	q.cancelCnt++
	q.canceled = append(q.canceled, id)
	q.canceledPop = append(q.canceledPop, id)
	q.canceledCnt++
	return nil
}

// Reprioritize re-keys a pending job. Buffered if a sched loop is active.
func (q *Queue) Reprioritize(id int64, newPriority uint32) error {
	j, ok := q.jobs[id]
	if !ok {
		return errs.New(errs.NotFound, "unknown job id")
	}
	if j.State != job.Pending {
		return errs.New(errs.InvalidArgument, "job is not pending")
	}
	if q.CancelSchedLoop() {
		q.pendingReprioProvisional = append(q.pendingReprioProvisional, reprioOp{id: id, newPriority: newPriority})
		return nil
	}
	q.rekey(j, newPriority)
	q.reprioCnt++
	q.schedulable = true
	return nil
}

func (q *Queue) rekey(j *job.Job, newPriority uint32) {
	q.findAndErase(j)
	j.Rekey(newPriority)
	q.pending.ReplaceOrInsert(pendingItem{key: j.Key, id: j.ID})
}

// ReconsiderBlockedJobs merges blocked back into pending, or defers the
// merge if a sched loop is currently active.
func (q *Queue) ReconsiderBlockedJobs() {
	if q.schedLoopActive {
		q.pendingReconsider = true
		return
	}
	q.mergeBlockedIntoPending()
}

func (q *Queue) mergeBlockedIntoPending() {
	if q.blocked.Len() == 0 {
		return
	}
	q.blocked.Ascend(func(it pendingItem) bool {
		q.pending.ReplaceOrInsert(it)
		return true
	})
	q.blocked.Clear(false)
	q.schedulable = true
}

// flushProvisional applies buffered reprioritize, then cancel, then
// reconsider operations, in that fixed order, once a loop has exited.
func (q *Queue) flushProvisional() {
	for _, op := range q.pendingReprioProvisional {
		if j, ok := q.jobs[op.id]; ok && j.State == job.Pending {
			q.rekey(j, op.newPriority)
			q.reprioCnt++
			q.schedulable = true
		}
	}
	q.pendingReprioProvisional = nil

	for _, id := range q.pendingCancelProvisional {
		if j, ok := q.jobs[id]; ok && j.State == job.Pending {
			q.findAndErase(j)
			j.State = job.Canceled
			q.cancelCnt++
			q.canceled = append(q.canceled, id)
			q.canceledPop = append(q.canceledPop, id)
			q.canceledCnt++
		}
	}
	q.pendingCancelProvisional = nil

	if q.pendingReconsider {
		q.pendingReconsider = false
		q.mergeBlockedIntoPending()
	}
}

func (q *Queue) mergeProvisionalPending() {
	if q.pendingProvisional.Len() == 0 {
		return
	}
	q.pendingProvisional.Ascend(func(it pendingItem) bool {
		q.pending.ReplaceOrInsert(it)
		return true
	})
	q.pendingProvisional.Clear(false)
}

// RunSchedLoop executes one pass of the queue's scheduling loop,
// dispatching to the FCFS batch path or the resumable backfill loop.
func (q *Queue) RunSchedLoop() error {
	if q.schedLoopActive {
		return nil
	}
	q.schedLoopActive = true
	q.mergeProvisionalPending()
	q.schedulable = false

	var err error
	if q.policy == FCFS {
		err = q.runFCFS()
	} else {
		err = q.runBackfill()
	}

	q.schedLoopActive = false
	q.flushProvisional()
	q.scheduled = true
	return err
}

func (q *Queue) removePendingEntry(j *job.Job) {
	q.pending.Delete(pendingItem{key: j.Key, id: j.ID})
}

// pendingSnapshot returns every pending entry in key order, stable
// against mutation during iteration (RunSchedLoop mutates the tree as
// it walks this slice, not the tree itself).
func (q *Queue) pendingSnapshot() []pendingItem {
	out := make([]pendingItem, 0, q.pending.Len())
	q.pending.Ascend(func(it pendingItem) bool {
		out = append(out, it)
		return true
	})
	return out
}

// AllocedPop drains and returns every job newly allocated since the
// last call.
func (q *Queue) AllocedPop() []int64 {
	out := q.allocedPop
	q.allocedPop = nil
	return out
}

// RejectedPop drains and returns every job newly rejected since the
// last call.
func (q *Queue) RejectedPop() []int64 {
	out := q.rejectedPop
	q.rejectedPop = nil
	return out
}

// CanceledPop drains and returns every job newly dequeued via
// cancellation since the last call.
func (q *Queue) CanceledPop() []int64 {
	out := q.canceledPop
	q.canceledPop = nil
	return out
}

// Annotation is an updated time estimate for a job whose schedule.at
// changed since it was last reported.
type Annotation struct {
	ID int64
	At int64
}

// AnnotationsPop returns an annotation for every currently-reserved
// running job (the only jobs that carry a meaningful schedule.at) whose
// estimate changed since the last pop, up to queue_depth entries, and
// marks them reported by setting old_at = at.
func (q *Queue) AnnotationsPop() []Annotation {
	var out []Annotation
	for _, id := range q.running {
		if len(out) >= int(q.queueDepth) {
			break
		}
		j, ok := q.jobs[id]
		if !ok || !j.Schedule.Reserved {
			continue
		}
		if j.Schedule.At != j.Schedule.OldAt {
			out = append(out, Annotation{ID: id, At: j.Schedule.At})
			j.Schedule.OldAt = j.Schedule.At
		}
	}
	return out
}

// toRunning finalizes a successful match: transitions j to Running and
// records its schedule. The caller is responsible for having already
// removed j's pending-set entry.
func (q *Queue) toRunning(j *job.Job, r string, at int64, reserved bool) {
	j.State = job.Running
	j.Schedule.R = r
	j.Schedule.OldAt = j.Schedule.At
	j.Schedule.At = at
	j.Schedule.Reserved = reserved
	q.runningCnt++
	q.running = append(q.running, j.ID)
}

// toAlloced records j against the alloced lifetime counter. respond
// additionally queues an alloc-success response: only jobs runnable
// right now get one, a reservation is reported via annotation instead
// (see DESIGN.md's response-batching decision).
func (q *Queue) toAlloced(j *job.Job, respond bool) {
	q.allocedCnt++
	q.alloced = append(q.alloced, j.ID)
	if respond {
		q.allocedPop = append(q.allocedPop, j.ID)
	}
}

func (q *Queue) toRejected(j *job.Job, note string) {
	j.State = job.Rejected
	j.Note = note
	q.rejectedCnt++
	q.rejected = append(q.rejected, j.ID)
	q.rejectedPop = append(q.rejectedPop, j.ID)
}

// Remove implements the general job-manager ".free"/cancel path,
// dispatching by current state.
func (q *Queue) Remove(id int64, final bool, r string) error {
	j, ok := q.jobs[id]
	if !ok {
		return errs.New(errs.NotFound, "unknown job id")
	}

	switch j.State {
	case job.Pending:
		_ = q.RemovePending(id)
	case job.Running, job.AllocRunning:
		var fullRemoval bool
		var err error
		if !final {
			fullRemoval, err = q.m.PartialCancel(id, r, true)
			if err != nil {
				return errs.Wrap(errs.InvalidArgument, err)
			}
		} else {
			if cerr := q.m.Cancel(id, true); cerr != nil {
				return errs.Wrap(errs.ProtocolViolation, cerr)
			}
			fullRemoval = true
		}
		q.schedulable = true
		if fullRemoval || final {
			j.State = job.Complete
			delete(q.jobs, id)
			if fullRemoval && !final {
				q.ReconsiderBlockedJobs()
				return errs.New(errs.ProtocolViolation, job.NoteProtocolError)
			}
		}
	default:
	}

	q.ReconsiderBlockedJobs()
	return nil
}

// ReconstructResource re-derives a running job's live resource set via
// the matcher's update_allocate, for admin inspection of a running job.
func (q *Queue) ReconstructResource(id int64) (string, error) {
	j, ok := q.jobs[id]
	if !ok {
		return "", errs.New(errs.NotFound, "unknown job id")
	}
	if j.State != job.Running && j.State != job.AllocRunning {
		return "", errs.New(errs.InvalidArgument, "job is not running")
	}
	r, _, _, err := q.m.UpdateAllocate(id)
	if err != nil {
		return "", errs.Wrap(errs.InvalidArgument, err)
	}
	return r, nil
}

// Params is the canonicalized, effective parameter set for a queue.
type Params struct {
	QueueDepth       uint32
	MaxQueueDepth    uint32
	ReservationDepth uint64
}

func (q *Queue) GetParams() Params {
	return Params{QueueDepth: q.queueDepth, MaxQueueDepth: q.maxQueueDepth, ReservationDepth: q.reservationDepth}
}

// parseKV splits a comma-separated key=value string; empty keys/values
// are rejected, matching the source's strict apply_params parsing.
func parseKV(raw string) (map[string]string, error) {
	out := map[string]string{}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return out, nil
	}
	for _, pair := range strings.Split(raw, ",") {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			return nil, errs.New(errs.InvalidArgument, "malformed key=value pair: "+pair)
		}
		k, v := strings.TrimSpace(kv[0]), strings.TrimSpace(kv[1])
		if k == "" || v == "" {
			return nil, errs.New(errs.InvalidArgument, "empty key or value in: "+pair)
		}
		out[k] = v
	}
	return out, nil
}

func parseUintField(fields map[string]string, key string, max uint64) (uint64, bool, error) {
	v, ok := fields[key]
	if !ok {
		return 0, false, nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, false, errs.New(errs.InvalidArgument, "non-numeric value for "+key)
	}
	if n < 1 || n > max {
		return 0, false, errs.New(errs.OutOfRange, key+" out of range")
	}
	return n, true, nil
}

// SetQueueParams parses and applies queue-depth/max-queue-depth.
func (q *Queue) SetQueueParams(raw string) error {
	fields, err := parseKV(raw)
	if err != nil {
		return err
	}
	if n, ok, err := parseUintField(fields, "max-queue-depth", 1<<32-1); err != nil {
		return err
	} else if ok {
		q.maxQueueDepth = uint32(n)
		if q.queueDepth > q.maxQueueDepth {
			q.queueDepth = q.maxQueueDepth
		}
	}
	if n, ok, err := parseUintField(fields, "queue-depth", uint64(q.maxQueueDepth)); err != nil {
		return err
	} else if ok {
		q.queueDepth = uint32(n)
	}
	q.recapReservationDepth()
	return nil
}

// SetPolicyParams parses and applies reservation-depth/
// max-reservation-depth for the backfill-capable policies.
func (q *Queue) SetPolicyParams(raw string) error {
	fields, err := parseKV(raw)
	if err != nil {
		return err
	}
	if n, ok, err := parseUintField(fields, "max-reservation-depth", MaxReservationDepth); err != nil {
		return err
	} else if ok {
		q.reservationDepth = n
	}
	if n, ok, err := parseUintField(fields, "reservation-depth", MaxReservationDepth); err != nil {
		return err
	} else if ok {
		q.reservationDepth = n
	}
	q.recapReservationDepth()
	return nil
}

// recapReservationDepth re-caps CONSERVATIVE's effective infinity at
// the current queue_depth whenever either parameter changes.
func (q *Queue) recapReservationDepth() {
	if q.policy == Conservative && q.reservationDepth > uint64(q.queueDepth) {
		q.reservationDepth = uint64(q.queueDepth)
	}
}

// Stats is the snapshot returned by stats-get.
type Stats struct {
	PendingSize             int
	PendingProvisionalSize  int
	BlockedSize             int
	RunningSize             int
	ReservedCount           int
	AllocedSize             int
	RejectedSize            int
	CanceledSize            int
	QueueDepth              uint32
	MaxQueueDepth           uint32
	ReservationDepth        uint64
	PendingCnt              uint64
	RunningCnt              uint64
	AllocedCnt              uint64
	RejectedCnt             uint64
	CanceledCnt             uint64
	CancelCnt               uint64
	ReprioCnt               uint64
}

func (q *Queue) StatsGet() Stats {
	reserved := 0
	for _, id := range q.running {
		if j, ok := q.jobs[id]; ok && j.Schedule.Reserved {
			reserved++
		}
	}
	return Stats{
		PendingSize:            q.pending.Len(),
		PendingProvisionalSize: q.pendingProvisional.Len(),
		BlockedSize:            q.blocked.Len(),
		RunningSize:            len(q.running),
		ReservedCount:          reserved,
		AllocedSize:            len(q.alloced),
		RejectedSize:           len(q.rejected),
		CanceledSize:           len(q.canceled),
		QueueDepth:             q.queueDepth,
		MaxQueueDepth:          q.maxQueueDepth,
		ReservationDepth:       q.reservationDepth,
		PendingCnt:             q.pendingCnt,
		RunningCnt:             q.runningCnt,
		AllocedCnt:             q.allocedCnt,
		RejectedCnt:            q.rejectedCnt,
		CanceledCnt:            q.canceledCnt,
		CancelCnt:              q.cancelCnt,
		ReprioCnt:              q.reprioCnt,
	}
}

// StatsClear resets the lifetime action counters, leaving current-size
// gauges (which reflect live state, not history) untouched.
func (q *Queue) StatsClear() {
	q.pendingCnt, q.runningCnt, q.allocedCnt = 0, 0, 0
	q.rejectedCnt, q.canceledCnt = 0, 0
	q.cancelCnt, q.reprioCnt = 0, 0
}
