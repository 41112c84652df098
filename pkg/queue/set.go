package queue

import (
	"sort"

	"github.com/quartzsched/qcore/pkg/matcher"
)

// MatcherFactory builds (or looks up) the matcher a named queue should
// use; separate queues commonly share one matcher instance since it is
// the resource layer's single source of truth.
type MatcherFactory func(queueName string) matcher.Matcher

// Set is the named collection of queues a running instance serves,
// analogous to the source's map of queue name to queue_policy_base_t.
type Set struct {
	queues map[string]*Queue
}

// NewSet constructs an empty queue set.
func NewSet() *Set {
	return &Set{queues: make(map[string]*Queue)}
}

// Add registers q under its own name, replacing any existing queue of
// that name.
func (s *Set) Add(q *Queue) {
	s.queues[q.Name()] = q
}

// Get looks up a queue by name.
func (s *Set) Get(name string) (*Queue, bool) {
	q, ok := s.queues[name]
	return q, ok
}

// Names returns every registered queue name, sorted, for deterministic
// iteration in metrics collection and admin listings.
func (s *Set) Names() []string {
	out := make([]string, 0, len(s.queues))
	for name := range s.queues {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// RunAll runs one scheduling loop pass on every queue in the set,
// returning the first error encountered while still attempting the rest.
func (s *Set) RunAll() error {
	var firstErr error
	for _, name := range s.Names() {
		if err := s.queues[name].RunSchedLoop(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
