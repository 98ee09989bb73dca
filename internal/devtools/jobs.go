// Package devtools runs a small set of operator commands (tests, git
// inspection, builds) as subprocesses and streams their output. It is wired
// into the router only outside production, behind an explicit enable flag.
package devtools

import (
	"bytes"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobRunning   JobStatus = "RUNNING"
	JobSucceeded JobStatus = "SUCCEEDED"
	JobFailed    JobStatus = "FAILED"
)

const defaultJobTTL = 30 * time.Minute

var ErrJobNotFound = errors.New("job not found")

// Job is one subprocess run and its captured output. ID, Action, and
// StartedAt are immutable after creation; everything else is guarded by mu
// because the run goroutine mutates it. Serve Snapshot() to clients, never
// the Job itself.
type Job struct {
	ID        uuid.UUID
	Action    string
	StartedAt time.Time

	mu         sync.Mutex
	status     JobStatus
	exitCode   int
	errMsg     string
	finishedAt *time.Time
	buf        bytes.Buffer
	subs       map[chan string]struct{}
}

func newJob(action string) *Job {
	return &Job{
		ID:        uuid.New(),
		Action:    action,
		StartedAt: time.Now(),
		status:    JobRunning,
	}
}

// Snapshot is a consistent copy of a job's state, safe to marshal while the
// run goroutine is still appending output or finishing.
type Snapshot struct {
	ID         uuid.UUID  `json:"id"`
	Action     string     `json:"action"`
	Status     JobStatus  `json:"status"`
	ExitCode   int        `json:"exit_code"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

func (j *Job) Snapshot() Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	return Snapshot{
		ID:         j.ID,
		Action:     j.Action,
		Status:     j.status,
		ExitCode:   j.exitCode,
		Error:      j.errMsg,
		StartedAt:  j.StartedAt,
		FinishedAt: j.finishedAt,
	}
}

func (j *Job) finished() *time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.finishedAt
}

func (j *Job) append(line string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.buf.WriteString(line)
	j.buf.WriteByte('\n')
	for ch := range j.subs {
		select {
		case ch <- line:
		default:
		}
	}
}

// Log returns the output captured so far.
func (j *Job) Log() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]byte, j.buf.Len())
	copy(out, j.buf.Bytes())
	return out
}

// Subscribe registers a line channel for live output. The returned cancel
// func must be called when the consumer goes away.
func (j *Job) Subscribe() (<-chan string, func()) {
	ch := make(chan string, 64)
	j.mu.Lock()
	if j.subs == nil {
		j.subs = make(map[chan string]struct{})
	}
	j.subs[ch] = struct{}{}
	j.mu.Unlock()
	return ch, func() {
		j.mu.Lock()
		delete(j.subs, ch)
		j.mu.Unlock()
	}
}

func (j *Job) finish(exitCode int, runErr error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	now := time.Now()
	j.finishedAt = &now
	j.exitCode = exitCode
	if runErr != nil {
		j.status = JobFailed
		j.errMsg = runErr.Error()
	} else {
		j.status = JobSucceeded
	}
	for ch := range j.subs {
		close(ch)
	}
	j.subs = nil
}

// Store is a bounded in-memory job registry. Finished jobs are evicted after
// their TTL; when the cap is reached the oldest finished job makes room.
type Store struct {
	ttl time.Duration
	max int

	mu   sync.Mutex
	jobs map[uuid.UUID]*Job
}

func NewStore(ttl time.Duration, max int) *Store {
	if ttl <= 0 {
		ttl = defaultJobTTL
	}
	if max <= 0 {
		max = 50
	}
	return &Store{ttl: ttl, max: max, jobs: make(map[uuid.UUID]*Job)}
}

func (s *Store) add(job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for id, j := range s.jobs {
		if ft := j.finished(); ft != nil && now.Sub(*ft) > s.ttl {
			delete(s.jobs, id)
		}
	}

	if len(s.jobs) >= s.max {
		if victim := s.oldestFinished(); victim != uuid.Nil {
			delete(s.jobs, victim)
		} else {
			return errors.New("too many running jobs")
		}
	}

	s.jobs[job.ID] = job
	return nil
}

func (s *Store) oldestFinished() uuid.UUID {
	var (
		victim uuid.UUID
		oldest time.Time
	)
	for id, j := range s.jobs {
		ft := j.finished()
		if ft == nil {
			continue
		}
		if victim == uuid.Nil || ft.Before(oldest) {
			victim = id
			oldest = *ft
		}
	}
	return victim
}

// Get returns the job with the given id.
func (s *Store) Get(id uuid.UUID) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return job, nil
}

// List returns snapshots of all retained jobs, newest first.
func (s *Store) List() []Snapshot {
	s.mu.Lock()
	jobs := make([]*Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, j)
	}
	s.mu.Unlock()

	out := make([]Snapshot, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.Snapshot())
	}
	for i := 1; i < len(out); i++ {
		for k := i; k > 0 && out[k].StartedAt.After(out[k-1].StartedAt); k-- {
			out[k], out[k-1] = out[k-1], out[k]
		}
	}
	return out
}
