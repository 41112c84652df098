/*
Package matcher defines the external resource-matching collaborator the
queue policy calls into, and an in-memory mock for tests. Grounded on
the reapi_type template-parameter shape used throughout
qmanager/policies/*, generalized to a Go interface.
*/
package matcher

// Status is the per-job outcome the matcher reports back through
// Match's result stream.
type Status int

const (
	Allocated Status = iota
	Reserved
)

// FailureReason classifies a per-job match failure.
type FailureReason int

const (
	ResourceBusy FailureReason = iota
	Unsatisfiable
	NoData
	Other
)

// MatchRequest is one job submitted to match_allocate_multi.
type MatchRequest struct {
	ID      int64
	Jobspec string
}

// MatchResult is one streamed outcome for a previously submitted job.
type MatchResult struct {
	ID      int64
	Ok      bool
	Status  Status        // valid when Ok
	R       string        // valid when Ok
	At      int64         // valid when Ok
	Ov      float64       // valid when Ok
	Reason  FailureReason // valid when !Ok
	ErrText string        // valid when !Ok && Reason == Other
}

// Matcher is the collaborator the queue policy invokes to place jobs
// against the resource graph. Implementations may answer synchronously
// (returning the full slice) or stream results incrementally; the queue
// policy only requires that every submitted id eventually appears
// exactly once in the returned slice, terminated implicitly by the
// slice's end (the source's NO_DATA end-of-batch marker is implicit in
// Go's slice return rather than a sentinel value).
type Matcher interface {
	// MatchAllocateMulti submits jobs in order; tryReserve controls
	// whether a job that cannot run now should be reserved for a future
	// time (true) or simply fail with ResourceBusy (false).
	MatchAllocateMulti(tryReserve bool, jobs []MatchRequest) []MatchResult

	// UpdateAllocate re-derives a running job's current resource set.
	UpdateAllocate(id int64) (r string, at int64, ov float64, err error)

	// Cancel fully releases a job's resources. noentOK suppresses the
	// not-found error if the job is already gone.
	Cancel(id int64, noentOK bool) error

	// PartialCancel releases the R subset of a job's resources,
	// reporting whether that released the job entirely.
	PartialCancel(id int64, r string, noentOK bool) (fullRemoval bool, err error)
}

// ResourceSnapshot is one resource type's current status, as reported
// by an Inspector.
type ResourceSnapshot struct {
	ResourceType string
	Total        int64
	FreeNow      int64
	SpanCount    int
}

// Inspector is an optional capability a Matcher may implement to serve
// the admin surface's resource-status and feasibility queries without
// mutating any job state. Implementations that cannot answer without a
// live resource graph may simply not implement this interface.
type Inspector interface {
	// ResourceStatus reports one snapshot per resource type.
	ResourceStatus() ([]ResourceSnapshot, error)

	// Feasible reports whether jobspec could be satisfied at some point
	// within the matcher's horizon, without placing it.
	Feasible(jobspec string) (bool, error)
}
