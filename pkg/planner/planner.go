/*
Package planner implements the time-indexed reservation engine (spec
components A-D): a single-resource-type planner built on two coupled
red-black trees, and a multi-planner composing several single-resource
planners for conjunctive availability queries.

Grounded on resource/planner/c++/planner.cpp, resource/planner/c/
planner_c_interface.cpp, resource/planner/c++/{scheduled_point_tree,
mintime_resource_tree,planner_multi}.cpp, and resource/planner/c/
planner_multi_c_interface.cpp.
*/
package planner

import (
	"github.com/quartzsched/qcore/pkg/errs"
)

// span is a placed interval against one planner's timeline.
type span struct {
	id       int64
	start    int64
	last     int64 // half-open [start, last)
	planned  int64
	startP   int
	lastP    int
	inSystem bool
}

// Planner is a single-resource-type reservation timeline (component C).
type Planner struct {
	a    *arena
	sp   *spTree
	mt   *mtTree
	base int64
	dur  int64
	total int64
	rtype string

	spans       map[int64]*span
	spanCounter int64

	iterActive   bool
	iterRequest  int64
	iterDuration int64
	iterAfter    int64
	extracted    []int
}

// New creates a planner spanning [base, base+duration] with one initial
// point at base holding the full total.
func New(base, duration, total int64, resourceType string) (*Planner, error) {
	if duration < 1 {
		return nil, errs.New(errs.InvalidArgument, "duration must be >= 1")
	}
	if total < 0 {
		return nil, errs.New(errs.OutOfRange, "total must be >= 0")
	}
	a := newArena()
	sp := newSPTree(a)
	mt := newMTTree(a)
	baseIdx := a.alloc(base, total, 0)
	sp.insert(baseIdx)
	mt.insert(baseIdx)

	return &Planner{
		a: a, sp: sp, mt: mt,
		base: base, dur: duration, total: total, rtype: resourceType,
		spans: make(map[int64]*span),
	}, nil
}

func (p *Planner) Base() int64          { return p.base }
func (p *Planner) Duration() int64      { return p.dur }
func (p *Planner) Total() int64         { return p.total }
func (p *Planner) ResourceType() string { return p.rtype }
func (p *Planner) SpanCount() int       { return len(p.spans) }

// IsActiveSpan reports whether id names a currently live span.
func (p *Planner) IsActiveSpan(id int64) bool {
	_, ok := p.spans[id]
	return ok
}

func (p *Planner) SpanStartTime(id int64) (int64, error) {
	s, ok := p.spans[id]
	if !ok {
		return 0, errs.New(errs.NotFound, "no such span")
	}
	return s.start, nil
}

func (p *Planner) SpanDuration(id int64) (int64, error) {
	s, ok := p.spans[id]
	if !ok {
		return 0, errs.New(errs.NotFound, "no such span")
	}
	return s.last - s.start, nil
}

func (p *Planner) SpanResourceCount(id int64) (int64, error) {
	s, ok := p.spans[id]
	if !ok {
		return 0, errs.New(errs.NotFound, "no such span")
	}
	return s.planned, nil
}

// restoreTrackPoints undoes a previous avail_time_first/next iteration,
// re-linking every temporarily extracted point back into the mt-tree.
// Called by every structural mutation per the iteration protocol.
func (p *Planner) restoreTrackPoints() {
	for _, idx := range p.extracted {
		n := p.a.at(idx)
		if n.alive && !n.inMT {
			p.mt.insert(idx)
		}
	}
	p.extracted = nil
	p.iterActive = false
}

func (p *Planner) getOrNewPoint(at int64) (idx int, created bool) {
	if i := p.sp.search(at); i != nilIdx {
		return i, false
	}
	var remaining, scheduled int64
	if pred := p.sp.getState(at); pred != nilIdx {
		pn := p.a.at(pred)
		remaining, scheduled = pn.remaining, pn.scheduled
	} else {
		remaining, scheduled = p.total, 0
	}
	i := p.a.alloc(at, remaining, scheduled)
	p.sp.insert(i)
	p.mt.insert(i)
	return i, true
}

// fetchOverlapPoints returns every point in [start, start+duration) in
// sp-tree (time) order. start must already be materialized as a point.
func (p *Planner) fetchOverlapPoints(start, duration int64) []int {
	last := start + duration
	var pts []int
	idx := p.sp.getState(start)
	for idx != nilIdx && p.a.at(idx).at < last {
		pts = append(pts, idx)
		idx = p.sp.next(idx)
	}
	return pts
}

// resyncMT re-homes idx in the mt-tree after its remaining changed.
func (p *Planner) resyncMT(idx int) {
	n := p.a.at(idx)
	if n.inMT {
		p.mt.remove(idx)
		p.mt.insert(idx)
	}
}

func (p *Planner) releasePointIfUnreferenced(idx int) {
	n := p.a.at(idx)
	// the base point always stays: every query resolves t through it.
	if n.refCount > 0 || n.at == p.base {
		return
	}
	if n.inMT {
		p.mt.remove(idx)
	}
	p.sp.remove(idx)
	p.a.release(idx)
}

// AddSpan inserts (or refcounts onto) points at start and start+duration,
// applies request to every covered point, and returns a fresh span id.
func (p *Planner) AddSpan(start, duration, request int64) (int64, error) {
	if duration < 1 {
		return 0, errs.New(errs.InvalidArgument, "duration must be >= 1")
	}
	if request < 0 {
		return 0, errs.New(errs.InvalidArgument, "request must be >= 0")
	}
	last := start + duration
	if start < p.base || last > p.base+p.dur {
		return 0, errs.New(errs.InvalidArgument, "span outside planner horizon")
	}

	p.restoreTrackPoints()

	startIdx, startNew := p.getOrNewPoint(start)
	lastIdx, lastNew := p.getOrNewPoint(last)

	overlap := p.fetchOverlapPoints(start, duration)
	for _, idx := range overlap {
		if p.a.at(idx).remaining-request < 0 {
			if startNew {
				p.releasePointIfUnreferenced(startIdx)
			}
			if lastNew {
				p.releasePointIfUnreferenced(lastIdx)
			}
			return 0, errs.New(errs.OutOfRange, "insufficient remaining resources in window")
		}
	}

	for _, idx := range overlap {
		n := p.a.at(idx)
		n.remaining -= request
		n.scheduled += request
		p.resyncMT(idx)
	}

	p.a.at(startIdx).refCount++
	p.a.at(lastIdx).refCount++

	id := p.spanCounter
	p.spanCounter++
	p.spans[id] = &span{id: id, start: start, last: last, planned: request, startP: startIdx, lastP: lastIdx, inSystem: true}
	return id, nil
}

// RemSpan reverses AddSpan, reclaiming endpoint points whose ref_count
// reaches zero.
func (p *Planner) RemSpan(id int64) error {
	s, ok := p.spans[id]
	if !ok {
		return errs.New(errs.NotFound, "no such span")
	}
	p.restoreTrackPoints()

	overlap := p.fetchOverlapPoints(s.start, s.last-s.start)
	for _, idx := range overlap {
		n := p.a.at(idx)
		n.remaining += s.planned
		n.scheduled -= s.planned
		p.resyncMT(idx)
	}

	p.a.at(s.startP).refCount--
	p.a.at(s.lastP).refCount--
	p.releasePointIfUnreferenced(s.startP)
	if s.lastP != s.startP {
		p.releasePointIfUnreferenced(s.lastP)
	}

	delete(p.spans, id)
	return nil
}

// ReduceSpan partially cancels a span. If delta == planned it behaves
// exactly like RemSpan and reports removed=true.
func (p *Planner) ReduceSpan(id int64, delta int64) (removed bool, err error) {
	s, ok := p.spans[id]
	if !ok {
		return false, errs.New(errs.NotFound, "no such span")
	}
	switch {
	case delta == s.planned:
		if err := p.RemSpan(id); err != nil {
			return false, err
		}
		return true, nil
	case delta == 0:
		return false, nil
	case delta > 0 && delta < s.planned:
		p.restoreTrackPoints()
		overlap := p.fetchOverlapPoints(s.start, s.last-s.start)
		for _, idx := range overlap {
			n := p.a.at(idx)
			n.remaining += delta
			n.scheduled -= delta
			p.resyncMT(idx)
		}
		s.planned -= delta
		return false, nil
	default:
		return false, errs.New(errs.InvalidArgument, "reduction delta out of range")
	}
}

// UpdateTotal applies delta = new_total - total to every point's
// remaining, clamped at zero.
func (p *Planner) UpdateTotal(newTotal int64) error {
	if newTotal < 0 {
		return errs.New(errs.OutOfRange, "total must be >= 0")
	}
	p.restoreTrackPoints()
	delta := newTotal - p.total
	cur := p.sp.minimumOfRoot()
	for cur != nilIdx {
		n := p.a.at(cur)
		n.remaining += delta
		if n.remaining < 0 {
			n.remaining = 0
		}
		p.resyncMT(cur)
		cur = p.sp.next(cur)
	}
	p.total = newTotal
	return nil
}

// Reset discards all spans and recreates the single base point with the
// planner's current total.
func (p *Planner) Reset(base, duration int64) error {
	if duration < 1 {
		return errs.New(errs.InvalidArgument, "duration must be >= 1")
	}
	p.a = newArena()
	p.sp = newSPTree(p.a)
	p.mt = newMTTree(p.a)
	p.base = base
	p.dur = duration
	p.spans = make(map[int64]*span)
	p.extracted = nil
	p.iterActive = false

	baseIdx := p.a.alloc(base, p.total, 0)
	p.sp.insert(baseIdx)
	p.mt.insert(baseIdx)
	return nil
}

// AvailDuring reports whether request is available throughout
// [at, at+duration).
func (p *Planner) AvailDuring(at, duration, request int64) (bool, error) {
	if duration < 1 {
		return false, errs.New(errs.InvalidArgument, "duration must be >= 1")
	}
	cur := p.sp.getState(at)
	if cur == nilIdx {
		return false, errs.New(errs.OutOfRange, "time before planner horizon")
	}
	end := at + duration
	for cur != nilIdx && p.a.at(cur).at < end {
		if p.a.at(cur).remaining < request {
			return false, nil
		}
		cur = p.sp.next(cur)
	}
	return true, nil
}

// AvailResourcesAt returns remaining at the point covering t.
func (p *Planner) AvailResourcesAt(t int64) (int64, error) {
	cur := p.sp.getState(t)
	if cur == nilIdx {
		return 0, errs.New(errs.OutOfRange, "time before planner horizon")
	}
	return p.a.at(cur).remaining, nil
}

// AvailResourcesDuring returns the minimum remaining over [at, at+duration).
func (p *Planner) AvailResourcesDuring(at, duration int64) (int64, error) {
	if duration < 1 {
		return 0, errs.New(errs.InvalidArgument, "duration must be >= 1")
	}
	cur := p.sp.getState(at)
	if cur == nilIdx {
		return 0, errs.New(errs.OutOfRange, "time before planner horizon")
	}
	end := at + duration
	min := p.a.at(cur).remaining
	for {
		next := p.sp.next(cur)
		if next == nilIdx || p.a.at(next).at >= end {
			break
		}
		cur = next
		if p.a.at(cur).remaining < min {
			min = p.a.at(cur).remaining
		}
	}
	return min, nil
}

// availNextCandidate extracts successive mintime candidates until one
// satisfies both the after cutoff and avail_during over the full
// request window, or the mt-tree is exhausted.
func (p *Planner) availNextCandidate() (int64, bool, error) {
	for {
		idx := p.mt.mintime(p.iterRequest)
		if idx == nilIdx {
			return 0, false, nil
		}
		p.mt.remove(idx)
		p.extracted = append(p.extracted, idx)
		at := p.a.at(idx).at

		if at < p.iterAfter {
			// only the point whose region covers after can yield t = after
			if p.sp.getState(p.iterAfter) != idx {
				continue
			}
			at = p.iterAfter
		}
		if at+p.iterDuration > p.base+p.dur {
			continue
		}
		ok, err := p.AvailDuring(at, p.iterDuration, p.iterRequest)
		if err != nil {
			return 0, false, err
		}
		if ok {
			return at, true, nil
		}
	}
}

// AvailTimeFirst returns the earliest t >= after such that request units
// are available throughout [t, t+duration).
func (p *Planner) AvailTimeFirst(after, duration, request int64) (int64, bool, error) {
	if request > p.total {
		return 0, false, errs.New(errs.OutOfRange, "request exceeds total resources")
	}
	if duration < 1 {
		return 0, false, errs.New(errs.InvalidArgument, "duration must be >= 1")
	}
	p.restoreTrackPoints()
	p.iterActive = true
	p.iterRequest = request
	p.iterDuration = duration
	p.iterAfter = after
	return p.availNextCandidate()
}

// AvailTimeNext resumes the iterator established by AvailTimeFirst.
func (p *Planner) AvailTimeNext() (int64, bool, error) {
	if !p.iterActive {
		return 0, false, errs.New(errs.InvalidArgument, "no active avail_time iteration")
	}
	return p.availNextCandidate()
}
