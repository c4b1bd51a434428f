package aicf

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/crypto/sha3"

	"github.com/animicaorg/animica/common"
)

// JobKind distinguishes the two compute-market job families spec.md §3
// names in the AICF job tuple.
type JobKind uint8

const (
	JobKindAI JobKind = iota
	JobKindQuantum
)

func (k JobKind) String() string {
	if k == JobKindQuantum {
		return "quantum"
	}
	return "ai"
}

// JobStatus is one state in the job lifecycle of spec.md §4.8:
// Queued → Assigned → Completed | Failed(DeadlineMiss) | Slashed.
// Cancellation is only valid from Queued.
type JobStatus string

const (
	JobQueued            JobStatus = "queued"
	JobAssigned          JobStatus = "assigned"
	JobCompleted         JobStatus = "completed"
	JobFailedDeadlineMiss JobStatus = "failed_deadline_miss"
	JobSlashed           JobStatus = "slashed"
	JobCancelled         JobStatus = "cancelled"
)

func (s JobStatus) Terminal() bool {
	switch s {
	case JobCompleted, JobFailedDeadlineMiss, JobSlashed, JobCancelled:
		return true
	default:
		return false
	}
}

// AttestationBundle is the off-chain provider's proof-of-work metadata
// attached to a job submission. Keys/values are normalized to strings so
// canonicalization is a pure sort-and-join, matching the "sorted keys,
// fixed field order, integer normalization" contract of spec.md §4.8 —
// integer-valued fields are expected pre-normalized to their minimal
// decimal string by the caller before insertion here.
type AttestationBundle map[string]string

// Canonical produces the deterministic byte encoding of the bundle: keys
// sorted ascending, "key=value" pairs joined by ";". Two bundles with
// identical keys/values canonicalize identically regardless of
// construction order (spec.md §8 scenario S7).
func (b AttestationBundle) Canonical() []byte {
	keys := make([]string, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte(';')
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(b[k])
	}
	return []byte(sb.String())
}

// Job is the registry's record of one enqueued compute task, spec.md §3.
type Job struct {
	ID                common.Hash
	Kind              JobKind
	Spec              []byte
	Submitter         common.Address
	Status            JobStatus
	AttestationDigest common.Hash
	Deadline          int64 // unix seconds
	AssignedProvider  string

	result []byte // nil until fulfilled
	read   bool   // set once ReadResult has returned successfully
}

// ComputeJobID derives the canonical job_id = hash(canonical(kind, spec,
// normalized_attestation, submitter, nonce)), per spec.md §4.8.
// Semantically equivalent attestation bundles (same keys/values,
// different construction order) yield identical job_id.
func ComputeJobID(kind JobKind, spec []byte, attestation AttestationBundle, submitter common.Address, nonce uint64) common.Hash {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte{byte(kind)})
	h.Write(spec)
	h.Write(attestation.Canonical())
	h.Write(submitter[:])
	var nb [8]byte
	binary.BigEndian.PutUint64(nb[:], nonce)
	h.Write(nb[:])
	return common.BytesToHash(h.Sum(nil))
}

var (
	// ErrQueueFull is returned by Submit when the bounded queue is at
	// capacity and the context expires before a slot frees up.
	ErrQueueFull = errors.New("aicf: job queue is full")
	// ErrNoResultYet is returned by ReadResult before the job has been
	// fulfilled.
	ErrNoResultYet = errors.New("aicf: no result yet")
	// ErrJobNotFound is returned for an unknown task_id.
	ErrJobNotFound = errors.New("aicf: job not found")
	// ErrInvalidTransition is returned when a status-machine edge is not
	// permitted from the job's current state.
	ErrInvalidTransition = errors.New("aicf: invalid job status transition")
)

// Queue is the bounded job queue of spec.md §4.8/§5: admission of new
// jobs blocks producers (with timeout/context) rather than dropping
// silently; a semaphore channel provides the backpressure.
type Queue struct {
	sem   chan struct{}
	mu    sync.Mutex
	jobs  map[common.Hash]*Job
	order []common.Hash // FIFO of queued job ids, for Assign
}

// NewQueue constructs a bounded job queue with the given capacity.
func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{
		sem:  make(chan struct{}, capacity),
		jobs: make(map[common.Hash]*Job),
	}
}

// Submit enqueues a job, deduplicating on job_id (spec.md §4.8: "Semantically
// equivalent bundles must yield identical job_id", and duplicate
// enqueue calls must return the same task_id). Blocks until a queue slot
// is available or ctx is done.
func (q *Queue) Submit(ctx context.Context, kind JobKind, spec []byte, attestation AttestationBundle, submitter common.Address, nonce uint64, deadline int64) (common.Hash, error) {
	id := ComputeJobID(kind, spec, attestation, submitter, nonce)

	q.mu.Lock()
	if _, exists := q.jobs[id]; exists {
		q.mu.Unlock()
		return id, nil // idempotent re-submission
	}
	q.mu.Unlock()

	select {
	case q.sem <- struct{}{}:
	case <-ctx.Done():
		return common.Hash{}, ErrQueueFull
	}

	digest := common.BytesToHash(attestation.Canonical())
	job := &Job{
		ID:                id,
		Kind:              kind,
		Spec:              spec,
		Submitter:         submitter,
		Status:            JobQueued,
		AttestationDigest: digest,
		Deadline:          deadline,
	}

	q.mu.Lock()
	q.jobs[id] = job
	q.order = append(q.order, id)
	q.mu.Unlock()

	return id, nil
}

// releaseSlot frees one queue slot; called when a job leaves Queued
// (assigned) or reaches a terminal state without ever being assigned
// (cancelled).
func (q *Queue) releaseSlot() {
	select {
	case <-q.sem:
	default:
	}
}

// List returns a snapshot of every job currently tracked by the queue,
// regardless of status.
func (q *Queue) List() []*Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*Job, 0, len(q.jobs))
	for _, j := range q.jobs {
		cp := *j
		out = append(out, &cp)
	}
	return out
}

// Get returns a snapshot of a job's current record.
func (q *Queue) Get(id common.Hash) (*Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	j, ok := q.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	cp := *j
	return &cp, nil
}

// Assign transitions the oldest Queued job to Assigned for the given
// provider, returning (nil, nil) if none is queued.
func (q *Queue) Assign(providerID string) (*Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, id := range q.order {
		j := q.jobs[id]
		if j.Status == JobQueued {
			j.Status = JobAssigned
			j.AssignedProvider = providerID
			q.order = append(q.order[:i], q.order[i+1:]...)
			q.releaseSlot()
			return j, nil
		}
	}
	return nil, nil
}

// Complete fulfills an Assigned job with its result, pre-deadline and
// with a valid attestation already verified by the caller. Duplicate
// fulfillment of an already-Completed job with the same bytes is
// idempotent; a conflicting result is rejected.
func (q *Queue) Complete(id common.Hash, result []byte, now int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	j, ok := q.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	if j.Status == JobCompleted {
		if !bytes.Equal(j.result, result) {
			return ErrInvalidTransition
		}
		return nil // idempotent re-injection
	}
	if j.Status != JobAssigned {
		return ErrInvalidTransition
	}
	if now > j.Deadline {
		j.Status = JobFailedDeadlineMiss
		return ErrInvalidTransition
	}
	j.Status = JobCompleted
	j.result = result
	return nil
}

// FailDeadlineMiss marks an Assigned job as failed because its deadline
// passed without a result.
func (q *Queue) FailDeadlineMiss(id common.Hash) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	j, ok := q.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	if j.Status.Terminal() {
		return nil
	}
	j.Status = JobFailedDeadlineMiss
	return nil
}

// Slash marks a job Slashed after an invalid attestation is detected;
// valid only from Assigned (Queued and every terminal state, including
// Completed, are rejected).
func (q *Queue) Slash(id common.Hash) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	j, ok := q.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	if j.Status == JobQueued || j.Status.Terminal() {
		return ErrInvalidTransition
	}
	j.Status = JobSlashed
	return nil
}

// Cancel is only valid from Queued (spec.md §4.8: "Cancellation only
// from Queued"); post-assignment cancellation is ignored.
func (q *Queue) Cancel(id common.Hash) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	j, ok := q.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	if j.Status != JobQueued {
		return ErrInvalidTransition
	}
	j.Status = JobCancelled
	for i, oid := range q.order {
		if oid == id {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
	q.releaseSlot()
	return nil
}

// ReadResult implements the at-most-once result consumption contract:
// the first successful read and every subsequent read return the same
// bytes; before fulfillment it returns ErrNoResultYet.
func (q *Queue) ReadResult(id common.Hash) ([]byte, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	j, ok := q.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	if j.Status != JobCompleted {
		return nil, ErrNoResultYet
	}
	j.read = true
	return j.result, nil
}

// String aids debugging/log lines.
func (j *Job) String() string {
	return fmt.Sprintf("Job{id=%s kind=%s status=%s}", j.ID.Hex(), j.Kind, j.Status)
}
