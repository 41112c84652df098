/*
Package callback adapts the queue policy engine to an event-loop-driven
host: four job-manager event handlers plus the two reactor watcher
hooks that drive the scheduling loop and response batching. Grounded on
qmanager/modules/qmanager_callbacks.{hpp,cpp}, generalized from flux's
message-bus transport to plain Go method calls per SPEC_FULL.md's
exclusion of a wire protocol.
*/
package callback

import (
	"github.com/quartzsched/qcore/pkg/errs"
	"github.com/quartzsched/qcore/pkg/job"
	"github.com/quartzsched/qcore/pkg/queue"
)

// QueueNameExtractor pulls a queue attribute out of an opaque jobspec,
// mirroring the source's attributes.system.queue lookup. Returns
// ok=false when the jobspec carries no queue attribute, in which case
// the context's default queue is used.
type QueueNameExtractor func(jobspec string) (name string, ok bool)

// Context holds the queue set and submission-sequence state a single
// scheduler instance needs across callback invocations.
type Context struct {
	Queues       *queue.Set
	DefaultQueue string
	Extractor    QueueNameExtractor

	nextID uint64
}

// NewContext constructs a callback context over an already-populated
// queue set. extractor may be nil, in which case every job lands in
// DefaultQueue.
func NewContext(queues *queue.Set, defaultQueue string, extractor QueueNameExtractor) *Context {
	return &Context{Queues: queues, DefaultQueue: defaultQueue, Extractor: extractor}
}

func (c *Context) resolveQueue(jobspec string) (*queue.Queue, string, error) {
	name := c.DefaultQueue
	if c.Extractor != nil {
		if qn, ok := c.Extractor(jobspec); ok {
			name = qn
		}
	}
	q, ok := c.Queues.Get(name)
	if !ok {
		return nil, name, errs.New(errs.NotFound, job.NoteUnknownQueue)
	}
	return q, name, nil
}

// findOwner locates the queue currently tracking id, searching every
// queue in the set the way the source's qmanager_cb_ctx_t::find_queue
// does (queue attribution isn't indexed separately; membership is the
// index).
func (c *Context) findOwner(id int64) (*queue.Queue, bool) {
	for _, name := range c.Queues.Names() {
		q, ok := c.Queues.Get(name)
		if ok && q.Contains(id) {
			return q, true
		}
	}
	return nil, false
}

func (c *Context) sequence() uint64 {
	c.nextID++
	return c.nextID
}

// OnHello reconstructs an already-running job discovered during
// scheduler startup into its owning queue, recording R verbatim rather
// than deriving it from a match.
func (c *Context) OnHello(id int64, userID uint32, tSubmit float64, priority uint32, r string, jobspec string) error {
	q, _, err := c.resolveQueue(jobspec)
	if err != nil {
		return err
	}
	j := job.New(id, userID, tSubmit, job.KeyPriority(priority), jobspec, c.sequence())
	return q.InsertRunning(j, r)
}

// OnAlloc builds a new pending job from a submission and inserts it
// into the queue named by its jobspec attribute (or the default queue).
func (c *Context) OnAlloc(id int64, userID uint32, tSubmit float64, priority uint32, jobspec string) error {
	q, _, err := c.resolveQueue(jobspec)
	if err != nil {
		return err
	}
	j := job.New(id, userID, tSubmit, job.KeyPriority(priority), jobspec, c.sequence())
	return q.Insert(j)
}

// OnFree forwards a job-manager free (partial or final) to the job's
// owning queue.
func (c *Context) OnFree(id int64, r string, final bool) error {
	q, ok := c.findOwner(id)
	if !ok {
		return errs.New(errs.NotFound, "job not tracked by any queue")
	}
	return q.Remove(id, final, r)
}

// OnCancel cancels a still-pending job; it is a no-op (not an error)
// for a job that has already left the pending state.
func (c *Context) OnCancel(id int64) error {
	q, ok := c.findOwner(id)
	if !ok {
		return errs.New(errs.NotFound, "job not tracked by any queue")
	}
	j, _ := q.Job(id)
	if j.State != job.Pending {
		return nil
	}
	return q.RemovePending(id)
}

// PrioritizePair is one (id, priority) entry of a prioritize request.
type PrioritizePair struct {
	ID       int64
	Priority uint32
}

// OnPrioritize reprioritizes every pair, continuing past individual
// failures and returning the first error encountered, if any.
func (c *Context) OnPrioritize(pairs []PrioritizePair) error {
	var firstErr error
	for _, p := range pairs {
		q, ok := c.findOwner(p.ID)
		if !ok {
			if firstErr == nil {
				firstErr = errs.New(errs.NotFound, "job not tracked by any queue")
			}
			continue
		}
		if err := q.Reprioritize(p.ID, job.KeyPriority(p.Priority)); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// PrepWatcher reports whether the reactor should arm its idle watcher
// to guarantee the check phase runs: true if any queue is schedulable
// (has schedulable work) or scheduled (has responses pending flush).
func (c *Context) PrepWatcher() (schedLoop bool, postLoop bool) {
	for _, name := range c.Queues.Names() {
		q, ok := c.Queues.Get(name)
		if !ok {
			continue
		}
		schedLoop = schedLoop || q.IsSchedulable()
		postLoop = postLoop || q.IsScheduled()
	}
	return schedLoop, postLoop
}

// ResponseBatch is one queue's worth of outbound responses collected
// by CheckWatcher.
type ResponseBatch struct {
	QueueName   string
	Alloced     []int64
	Rejected    []int64
	Canceled    []int64
	Annotations []queue.Annotation
}

// CheckWatcher runs every queue's scheduling loop once if any is
// schedulable, then drains and returns each queue's response batch.
func (c *Context) CheckWatcher(schedLoop bool) ([]ResponseBatch, error) {
	var firstErr error
	if schedLoop {
		firstErr = c.Queues.RunAll()
	}

	batches := make([]ResponseBatch, 0, len(c.Queues.Names()))
	for _, name := range c.Queues.Names() {
		q, ok := c.Queues.Get(name)
		if !ok {
			continue
		}
		batches = append(batches, ResponseBatch{
			QueueName:   name,
			Alloced:     q.AllocedPop(),
			Rejected:    q.RejectedPop(),
			Canceled:    q.CanceledPop(),
			Annotations: q.AnnotationsPop(),
		})
		q.ResetScheduled()
	}
	return batches, firstErr
}
