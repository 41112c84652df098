package matcher

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/quartzsched/qcore/pkg/planner"
)

// jobspec format used by the mock: "cores=N,duration=D" (D in planner
// time units). Parsed with strings/strconv directly since it's a tiny
// fixed two-key grammar, not a general config format.
func parseJobspec(spec string) (cores int64, duration int64, err error) {
	duration = 1
	for _, kv := range strings.Split(spec, ",") {
		kv = strings.TrimSpace(kv)
		if kv == "" {
			continue
		}
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			return 0, 0, fmt.Errorf("malformed jobspec term %q", kv)
		}
		key, val := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
		n, perr := strconv.ParseInt(val, 10, 64)
		if perr != nil {
			return 0, 0, fmt.Errorf("non-numeric value for %q: %w", key, perr)
		}
		switch key {
		case "cores":
			cores = n
		case "duration":
			duration = n
		default:
			return 0, 0, fmt.Errorf("unrecognized jobspec key %q", key)
		}
	}
	return cores, duration, nil
}

// Mock is an in-memory Matcher backed by a single-resource-type
// planner, for tests and the demonstration CLI only. It is not a
// stand-in for the DFU graph matcher the core deliberately excludes.
type Mock struct {
	p    *planner.Planner
	now  int64
	jobs map[int64]mockJob
}

type mockJob struct {
	spanID   int64
	cores    int64
	duration int64
	at       int64
}

// NewMock creates a mock matcher over a single core-typed planner with
// the given total capacity and horizon.
func NewMock(totalCores int64, horizon int64) (*Mock, error) {
	p, err := planner.New(0, horizon, totalCores, "core")
	if err != nil {
		return nil, err
	}
	return &Mock{p: p, jobs: make(map[int64]mockJob)}, nil
}

// Now reports the matcher's current notion of "now" for try_reserve
// classification (a reservation is any span starting after Now).
func (m *Mock) Now() int64 { return m.now }

// Advance moves the matcher's clock forward, used by tests to simulate
// time passing between scheduling loop passes.
func (m *Mock) Advance(to int64) { m.now = to }

func (m *Mock) MatchAllocateMulti(tryReserve bool, reqs []MatchRequest) []MatchResult {
	out := make([]MatchResult, 0, len(reqs))
	for _, req := range reqs {
		cores, duration, err := parseJobspec(req.Jobspec)
		if err != nil {
			out = append(out, MatchResult{ID: req.ID, Ok: false, Reason: Other, ErrText: err.Error()})
			continue
		}

		okNow, aerr := m.p.AvailDuring(m.now, duration, cores)
		if aerr != nil {
			out = append(out, MatchResult{ID: req.ID, Ok: false, Reason: Other, ErrText: aerr.Error()})
			continue
		}
		if okNow {
			spanID, serr := m.p.AddSpan(m.now, duration, cores)
			if serr != nil {
				out = append(out, MatchResult{ID: req.ID, Ok: false, Reason: Other, ErrText: serr.Error()})
				continue
			}
			m.jobs[req.ID] = mockJob{spanID: spanID, cores: cores, duration: duration, at: m.now}
			out = append(out, MatchResult{ID: req.ID, Ok: true, Status: Allocated, R: req.Jobspec, At: m.now})
			continue
		}

		if !tryReserve {
			out = append(out, MatchResult{ID: req.ID, Ok: false, Reason: ResourceBusy})
			continue
		}

		at, found, ferr := m.p.AvailTimeFirst(m.now, duration, cores)
		if ferr != nil {
			out = append(out, MatchResult{ID: req.ID, Ok: false, Reason: Other, ErrText: ferr.Error()})
			continue
		}
		if !found {
			out = append(out, MatchResult{ID: req.ID, Ok: false, Reason: Unsatisfiable})
			continue
		}
		spanID, serr := m.p.AddSpan(at, duration, cores)
		if serr != nil {
			out = append(out, MatchResult{ID: req.ID, Ok: false, Reason: Other, ErrText: serr.Error()})
			continue
		}
		m.jobs[req.ID] = mockJob{spanID: spanID, cores: cores, duration: duration, at: at}
		out = append(out, MatchResult{ID: req.ID, Ok: true, Status: Reserved, R: req.Jobspec, At: at})
	}
	return out
}

func (m *Mock) UpdateAllocate(id int64) (string, int64, float64, error) {
	j, ok := m.jobs[id]
	if !ok {
		return "", 0, 0, fmt.Errorf("no such job %d", id)
	}
	return fmt.Sprintf("cores=%d,duration=%d", j.cores, j.duration), j.at, 0, nil
}

func (m *Mock) Cancel(id int64, noentOK bool) error {
	j, ok := m.jobs[id]
	if !ok {
		if noentOK {
			return nil
		}
		return fmt.Errorf("no such job %d", id)
	}
	if err := m.p.RemSpan(j.spanID); err != nil {
		return err
	}
	delete(m.jobs, id)
	return nil
}

// ResourceStatus implements Inspector over the mock's single core-typed
// planner.
func (m *Mock) ResourceStatus() ([]ResourceSnapshot, error) {
	free, err := m.p.AvailResourcesAt(m.now)
	if err != nil {
		return nil, err
	}
	return []ResourceSnapshot{{
		ResourceType: m.p.ResourceType(),
		Total:        m.p.Total(),
		FreeNow:      free,
		SpanCount:    m.p.SpanCount(),
	}}, nil
}

// Feasible probes AvailTimeFirst without placing a span.
func (m *Mock) Feasible(spec string) (bool, error) {
	cores, duration, err := parseJobspec(spec)
	if err != nil {
		return false, err
	}
	if cores > m.p.Total() {
		return false, nil
	}
	_, found, err := m.p.AvailTimeFirst(m.now, duration, cores)
	if err != nil {
		return false, err
	}
	return found, nil
}

func (m *Mock) PartialCancel(id int64, r string, noentOK bool) (bool, error) {
	j, ok := m.jobs[id]
	if !ok {
		if noentOK {
			return true, nil
		}
		return false, fmt.Errorf("no such job %d", id)
	}
	cores, _, err := parseJobspec(r)
	if err != nil {
		return false, err
	}
	removed, err := m.p.ReduceSpan(j.spanID, cores)
	if err != nil {
		return false, err
	}
	if removed {
		delete(m.jobs, id)
		return true, nil
	}
	j.cores -= cores
	m.jobs[id] = j
	return false, nil
}
