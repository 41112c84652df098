package planner

import (
	"github.com/quartzsched/qcore/pkg/errs"
)

// childMeta holds one resource type's planner alongside its declared
// total, so MultiPlanner can answer type/total lookups without walking
// into the child planner itself.
type childMeta struct {
	rtype string
	total int64
	p     *Planner
}

// MultiPlanner is a composite of per-resource-type planners queried and
// mutated together under shared, composite span ids (component D).
// Grounded on resource/planner/c++/planner_multi.cpp and
// resource/planner/c/planner_multi_c_interface.cpp.
type MultiPlanner struct {
	children []childMeta
	byType   map[string]int // resource type -> index into children

	spanLookup  map[int64][]int64 // composite span id -> per-child span id (-1 if zero-filled/removed)
	spanCounter int64

	iterActive   bool
	iterRequest  []int64
	iterDuration int64
}

// NewMulti builds a composite planner, one child per (resourceType, total)
// pair, all sharing the same base time and horizon.
func NewMulti(base, duration int64, totals []int64, types []string) (*MultiPlanner, error) {
	if len(totals) != len(types) {
		return nil, errs.New(errs.InvalidArgument, "totals and types length mismatch")
	}
	if len(types) == 0 {
		return nil, errs.New(errs.InvalidArgument, "at least one resource type required")
	}
	mp := &MultiPlanner{
		byType:     make(map[string]int, len(types)),
		spanLookup: make(map[int64][]int64),
	}
	for i, t := range types {
		p, err := New(base, duration, totals[i], t)
		if err != nil {
			return nil, err
		}
		mp.children = append(mp.children, childMeta{rtype: t, total: totals[i], p: p})
		mp.byType[t] = i
	}
	return mp, nil
}

func (mp *MultiPlanner) PlannersSize() int { return len(mp.children) }

// PlannerAt returns the child planner at index i.
func (mp *MultiPlanner) PlannerAt(i int) (*Planner, error) {
	if i < 0 || i >= len(mp.children) {
		return nil, errs.New(errs.InvalidArgument, "planner index out of range")
	}
	return mp.children[i].p, nil
}

// PlannerForType returns the child planner tracking resourceType.
func (mp *MultiPlanner) PlannerForType(resourceType string) (*Planner, error) {
	i, ok := mp.byType[resourceType]
	if !ok {
		return nil, errs.New(errs.NotFound, "no planner for resource type "+resourceType)
	}
	return mp.children[i].p, nil
}

func (mp *MultiPlanner) ResourceTypeAt(i int) (string, error) {
	if i < 0 || i >= len(mp.children) {
		return "", errs.New(errs.InvalidArgument, "planner index out of range")
	}
	return mp.children[i].rtype, nil
}

func (mp *MultiPlanner) ResourceTotalAt(i int) (int64, error) {
	if i < 0 || i >= len(mp.children) {
		return 0, errs.New(errs.InvalidArgument, "planner index out of range")
	}
	return mp.children[i].total, nil
}

// AddPlanner appends (or inserts, if i is within range) a new resource
// type to the composite, enabling elastic reconfiguration.
func (mp *MultiPlanner) AddPlanner(base, duration, total int64, resourceType string, i int) error {
	if _, exists := mp.byType[resourceType]; exists {
		return errs.New(errs.AlreadyExists, "resource type already tracked")
	}
	p, err := New(base, duration, total, resourceType)
	if err != nil {
		return err
	}
	meta := childMeta{rtype: resourceType, total: total, p: p}
	if i < 0 || i >= len(mp.children) {
		mp.children = append(mp.children, meta)
	} else {
		mp.children = append(mp.children, childMeta{})
		copy(mp.children[i+1:], mp.children[i:])
		mp.children[i] = meta
	}
	mp.rebuildIndex()
	return nil
}

// DeletePlanners drops every child whose resource type is not in keep.
func (mp *MultiPlanner) DeletePlanners(keep map[string]bool) {
	kept := mp.children[:0]
	for _, c := range mp.children {
		if keep[c.rtype] {
			kept = append(kept, c)
		}
	}
	mp.children = kept
	mp.rebuildIndex()
}

func (mp *MultiPlanner) rebuildIndex() {
	mp.byType = make(map[string]int, len(mp.children))
	for i, c := range mp.children {
		mp.byType[c.rtype] = i
	}
}

// UpdatePlannerTotal changes the declared total and child planner total
// for the resource type at index i.
func (mp *MultiPlanner) UpdatePlannerTotal(i int, total int64) error {
	if i < 0 || i >= len(mp.children) {
		return errs.New(errs.InvalidArgument, "planner index out of range")
	}
	if err := mp.children[i].p.UpdateTotal(total); err != nil {
		return err
	}
	mp.children[i].total = total
	return nil
}

func (mp *MultiPlanner) checkLen(n int) error {
	if n != len(mp.children) {
		return errs.New(errs.InvalidArgument, "request length must match planner count")
	}
	return nil
}

// AvailDuring reports whether every resource type has its request
// satisfied throughout [at, at+duration).
func (mp *MultiPlanner) AvailDuring(at, duration int64, requests []int64) (bool, error) {
	if err := mp.checkLen(len(requests)); err != nil {
		return false, err
	}
	for i, c := range mp.children {
		ok, err := c.p.AvailDuring(at, duration, requests[i])
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// AvailResourcesAt returns remaining at t for every child, in index order.
func (mp *MultiPlanner) AvailResourcesAt(t int64) ([]int64, error) {
	out := make([]int64, len(mp.children))
	for i, c := range mp.children {
		v, err := c.p.AvailResourcesAt(t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// AvailResourcesDuring returns the minimum remaining over the window for
// every child, in index order.
func (mp *MultiPlanner) AvailResourcesDuring(at, duration int64) ([]int64, error) {
	out := make([]int64, len(mp.children))
	for i, c := range mp.children {
		v, err := c.p.AvailResourcesDuring(at, duration)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// AvailTimeFirst drives its search from child 0's candidate sequence,
// accepting the first candidate at which every other child also clears
// AvailDuring for its own request.
func (mp *MultiPlanner) AvailTimeFirst(after, duration int64, requests []int64) (int64, bool, error) {
	if len(mp.children) == 0 {
		return 0, false, errs.New(errs.InvalidArgument, "no planners configured")
	}
	if err := mp.checkLen(len(requests)); err != nil {
		return 0, false, err
	}
	mp.iterRequest = append([]int64(nil), requests...)
	mp.iterDuration = duration
	mp.iterActive = true

	t, ok, err := mp.children[0].p.AvailTimeFirst(after, duration, requests[0])
	if err != nil || !ok {
		return 0, ok, err
	}
	return mp.satisfyFromCandidate(t)
}

// AvailTimeNext resumes the child-0-driven search.
func (mp *MultiPlanner) AvailTimeNext() (int64, bool, error) {
	if !mp.iterActive {
		return 0, false, errs.New(errs.InvalidArgument, "no active avail_time iteration")
	}
	t, ok, err := mp.children[0].p.AvailTimeNext()
	if err != nil || !ok {
		return 0, ok, err
	}
	return mp.satisfyFromCandidate(t)
}

// satisfyFromCandidate keeps pulling child-0 candidates until every other
// child clears AvailDuring at the same t, or child 0 is exhausted.
func (mp *MultiPlanner) satisfyFromCandidate(t int64) (int64, bool, error) {
	for {
		allOK := true
		for i := 1; i < len(mp.children); i++ {
			ok, err := mp.children[i].p.AvailDuring(t, mp.iterDuration, mp.iterRequest[i])
			if err != nil {
				return 0, false, err
			}
			if !ok {
				allOK = false
				break
			}
		}
		if allOK {
			return t, true, nil
		}
		var ok bool
		var err error
		t, ok, err = mp.children[0].p.AvailTimeNext()
		if err != nil || !ok {
			return 0, ok, err
		}
	}
}

// AddSpan places requests[i] on every child planner at [start,
// start+duration) and returns one composite span id, or rolls every
// child back and returns an error if any child rejects its request.
func (mp *MultiPlanner) AddSpan(start, duration int64, requests []int64) (int64, error) {
	if err := mp.checkLen(len(requests)); err != nil {
		return 0, err
	}
	ids := make([]int64, len(mp.children))
	for i, c := range mp.children {
		id, err := c.p.AddSpan(start, duration, requests[i])
		if err != nil {
			for j := 0; j < i; j++ {
				_ = mp.children[j].p.RemSpan(ids[j])
			}
			return 0, err
		}
		ids[i] = id
	}
	mspan := mp.spanCounter
	mp.spanCounter++
	mp.spanLookup[mspan] = ids
	return mspan, nil
}

// RemSpan removes every per-child span belonging to the composite span.
// Child entries already cleared by a prior partial cancel (marked -1)
// are skipped.
func (mp *MultiPlanner) RemSpan(mspan int64) error {
	ids, ok := mp.spanLookup[mspan]
	if !ok {
		return errs.New(errs.NotFound, "no such span")
	}
	for i, id := range ids {
		if id == -1 {
			continue
		}
		if err := mp.children[i].p.RemSpan(id); err != nil {
			return err
		}
	}
	delete(mp.spanLookup, mspan)
	return nil
}

// ReduceSpan subtracts reducedTotals[i] from the planned amount of each
// named resourceTypes[i]'s child span. Any child resource type NOT
// named is reduced by zero: a no-op for a child whose planned amount
// is still nonzero, but it collapses a child span whose planned amount
// is already zero (the "resources the job did not actually use"
// placeholder spans the matcher creates at allocation time). removed
// reports whether every child entry has now been removed, collapsing
// the composite span.
func (mp *MultiPlanner) ReduceSpan(mspan int64, reducedTotals []int64, resourceTypes []string) (removed bool, err error) {
	ids, ok := mp.spanLookup[mspan]
	if !ok {
		return false, errs.New(errs.NotFound, "no such span")
	}
	if len(reducedTotals) != len(resourceTypes) {
		return false, errs.New(errs.InvalidArgument, "reducedTotals/resourceTypes length mismatch")
	}

	touched := make(map[int]bool)
	for i, rtype := range resourceTypes {
		idx, ok := mp.byType[rtype]
		if !ok {
			return false, errs.New(errs.InvalidArgument, "unknown resource type: "+rtype)
		}
		if ids[idx] == -1 {
			continue
		}
		gone, rerr := mp.reduceChildSpan(idx, ids, reducedTotals[i])
		if rerr != nil {
			return false, rerr
		}
		if gone {
			ids[idx] = -1
		}
		touched[idx] = true
	}

	for i := range mp.children {
		if touched[i] || ids[i] == -1 {
			continue
		}
		gone, rerr := mp.reduceChildSpan(i, ids, 0)
		if rerr != nil {
			return false, rerr
		}
		if gone {
			ids[i] = -1
		}
	}

	mp.spanLookup[mspan] = ids
	allGone := true
	for _, id := range ids {
		if id != -1 {
			allGone = false
			break
		}
	}
	if allGone {
		delete(mp.spanLookup, mspan)
	}
	return allGone, nil
}

// reduceChildSpan passes delta straight through to the child planner's
// Planner.ReduceSpan as the amount to subtract from its planned total,
// not a new target total: the same delta applied twice in a row must
// remove twice as much, matching planner_reduce_span's to_remove
// contract. delta == 0 already no-ops (or removes, if the child's
// planned amount is itself already zero) inside Planner.ReduceSpan.
func (mp *MultiPlanner) reduceChildSpan(childIdx int, ids []int64, delta int64) (removed bool, err error) {
	p := mp.children[childIdx].p
	return p.ReduceSpan(ids[childIdx], delta)
}
