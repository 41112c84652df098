/*
Package job defines the job record, its lifecycle states, and the
pending-key ordering tuple the queue policy sorts on. Grounded on the
job_t/schedule_t/pending_key shapes of queue_policy_base.hpp.
*/
package job

import "math"

// State is the job's position in the lifecycle state machine described
// in spec §4.E/F.
type State int

const (
	Init State = iota
	Pending
	Rejected
	Running
	AllocRunning
	Canceled
	Complete
)

func (s State) String() string {
	switch s {
	case Init:
		return "init"
	case Pending:
		return "pending"
	case Rejected:
		return "rejected"
	case Running:
		return "running"
	case AllocRunning:
		return "alloc_running"
	case Canceled:
		return "canceled"
	case Complete:
		return "complete"
	default:
		return "unknown"
	}
}

// Note-text constants for rejection/logging, kept as named constants
// rather than repeated string literals, matching the source's use of
// fixed std::string rejection notes.
const (
	NoteUnsatisfiable    = "unsatisfiable"
	NoteMatchError       = "match error"
	NoteProtocolError    = "protocol error: full removal reported before final free"
	NoteUnknownQueue     = "unknown queue"
	NoteJobspecParseFail = "jobspec parse error"
)

// MaxUserPriority is the ceiling a submitted priority is subtracted
// from to produce the ascending sort key (U32_MAX in the source).
const MaxUserPriority uint32 = math.MaxUint32

// KeyPriority maps a user-facing priority (higher is better) onto the
// ascending sort key used by PendingKey (lower is better).
func KeyPriority(userPriority uint32) uint32 {
	return MaxUserPriority - userPriority
}

// PendingKey orders pending jobs: lexicographic ascending on
// (priority, tSubmit, sequence), where priority is already the
// KeyPriority-transformed value and lower wins.
type PendingKey struct {
	Priority uint32
	TSubmit  float64
	Sequence uint64
}

// Less reports whether k sorts before o.
func (k PendingKey) Less(o PendingKey) bool {
	if k.Priority != o.Priority {
		return k.Priority < o.Priority
	}
	if k.TSubmit != o.TSubmit {
		return k.TSubmit < o.TSubmit
	}
	return k.Sequence < o.Sequence
}

// Schedule carries a job's placement result once matched.
type Schedule struct {
	R        string // opaque resource-set text returned by the matcher
	Reserved bool
	At       int64
	OldAt    int64
	Ov       float64 // overhead/slack the matcher reported, if any
}

// Job is the unit of queue-policy work.
type Job struct {
	ID       int64
	UserID   uint32
	TSubmit  float64
	Priority uint32 // already KeyPriority-transformed
	State    State
	Jobspec  string
	Note     string
	Schedule Schedule

	Key PendingKey // valid while Pending; recomputed on reprioritize
}

// New constructs a job in the Init state with its pending key derived
// from priority/tSubmit; sequence must be assigned by the owning queue.
func New(id int64, userID uint32, tSubmit float64, priority uint32, jobspec string, sequence uint64) *Job {
	return &Job{
		ID:       id,
		UserID:   userID,
		TSubmit:  tSubmit,
		Priority: priority,
		Jobspec:  jobspec,
		State:    Init,
		Key: PendingKey{
			Priority: priority,
			TSubmit:  tSubmit,
			Sequence: sequence,
		},
	}
}

// Rekey recomputes Key after a reprioritize, keeping TSubmit and
// Sequence fixed (only priority changes identity for ordering purposes).
func (j *Job) Rekey(newPriority uint32) {
	j.Priority = newPriority
	j.Key.Priority = newPriority
}
