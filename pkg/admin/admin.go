/*
Package admin exposes the read-mostly administrative surface
(component M): resource status, feasibility probing, effective
parameters, and stats, all as plain Go methods with no wire protocol,
per SPEC_FULL.md's exclusion of one. Grounded on the RPC shapes
described in spec.md §6's "Administrative RPCs served".
*/
package admin

import (
	"github.com/quartzsched/qcore/pkg/errs"
	"github.com/quartzsched/qcore/pkg/matcher"
	"github.com/quartzsched/qcore/pkg/queue"
)

// Admin wraps a queue set and the shared matcher(s) backing it.
type Admin struct {
	Queues   *queue.Set
	Matchers map[string]matcher.Matcher // queue name -> matcher backing it
}

// New constructs an Admin over a queue set and its per-queue matcher
// map (commonly every queue shares one matcher instance).
func New(queues *queue.Set, matchers map[string]matcher.Matcher) *Admin {
	return &Admin{Queues: queues, Matchers: matchers}
}

// ResourceStatus reports every resource-type snapshot for queueName's
// matcher, if it implements matcher.Inspector.
func (a *Admin) ResourceStatus(queueName string) ([]matcher.ResourceSnapshot, error) {
	m, err := a.inspector(queueName)
	if err != nil {
		return nil, err
	}
	return m.ResourceStatus()
}

// Feasibility probes whether jobspec could be satisfied at some future
// point under queueName's resource graph, without placing a job.
func (a *Admin) Feasibility(queueName, jobspec string) (bool, error) {
	m, err := a.inspector(queueName)
	if err != nil {
		return false, err
	}
	return m.Feasible(jobspec)
}

func (a *Admin) inspector(queueName string) (matcher.Inspector, error) {
	mm, ok := a.Matchers[queueName]
	if !ok {
		return nil, errs.New(errs.NotFound, "unknown queue")
	}
	insp, ok := mm.(matcher.Inspector)
	if !ok {
		return nil, errs.New(errs.InvalidArgument, "matcher does not support inspection")
	}
	return insp, nil
}

// Params returns the canonicalized, effective parameter set of a queue.
func (a *Admin) Params(queueName string) (queue.Params, error) {
	q, ok := a.Queues.Get(queueName)
	if !ok {
		return queue.Params{}, errs.New(errs.NotFound, "unknown queue")
	}
	return q.GetParams(), nil
}

// StatsGet returns a queue's counters snapshot.
func (a *Admin) StatsGet(queueName string) (queue.Stats, error) {
	q, ok := a.Queues.Get(queueName)
	if !ok {
		return queue.Stats{}, errs.New(errs.NotFound, "unknown queue")
	}
	return q.StatsGet(), nil
}

// StatsClear resets a queue's lifetime action counters.
func (a *Admin) StatsClear(queueName string) error {
	q, ok := a.Queues.Get(queueName)
	if !ok {
		return errs.New(errs.NotFound, "unknown queue")
	}
	q.StatsClear()
	return nil
}

// ReconstructResource re-derives a running job's live resource set.
func (a *Admin) ReconstructResource(queueName string, jobID int64) (string, error) {
	q, ok := a.Queues.Get(queueName)
	if !ok {
		return "", errs.New(errs.NotFound, "unknown queue")
	}
	return q.ReconstructResource(jobID)
}
