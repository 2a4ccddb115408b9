package progress

import (
	"log"
	"sync"
	"time"
)

// Job statuses
const (
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusError   = "error"
)

// File statuses
const (
	FilePending    = "pending"
	FileProcessing = "processing"
	FileSuccess    = "success"
	FileError      = "error"
)

// FileState tracks one file of an import job
type FileState struct {
	Path    string   `json:"path"`
	Name    string   `json:"name"`
	Client  string   `json:"client"`
	Status  string   `json:"status"`
	Message string   `json:"message,omitempty"`
	Fields  []string `json:"fields,omitempty"`
}

// Job is the registry's record of one pipeline run
type Job struct {
	ID             string      `json:"id"`
	Total          int         `json:"total"`
	Processed      int         `json:"processed"`
	Errors         int         `json:"errors"`
	Updated        int         `json:"updated"`
	SkippedClients int         `json:"skipped_clients"`
	Status         string      `json:"status"`
	CurrentFile    string      `json:"current_file,omitempty"`
	Message        string      `json:"message,omitempty"`
	StartedAt      time.Time   `json:"started_at"`
	FinishedAt     *time.Time  `json:"finished_at,omitempty"`
	Files          []FileState `json:"files"`
}

// View is a Job with its derived completion ratio
type View struct {
	Job
	Progress float64 `json:"progress"`
}

// Notifier receives one event per registry mutation. The app wires it to the
// frontend event bus; tests pass nil.
type Notifier interface {
	Notify(event string, payload interface{})
}

// Registry is the process-wide, lifecycle-scoped store of active and finished
// import jobs. It holds no network calls; runners write into it and observers
// read from it. Jobs that finish successfully are evicted after successTTL;
// error jobs stay until explicitly dismissed.
type Registry struct {
	mu         sync.RWMutex
	jobs       map[string]*Job
	timers     map[string]*time.Timer
	notifier   Notifier
	successTTL time.Duration
}

// NewRegistry creates a registry with the default 5s success eviction delay
func NewRegistry(notifier Notifier) *Registry {
	return &Registry{
		jobs:       make(map[string]*Job),
		timers:     make(map[string]*time.Timer),
		notifier:   notifier,
		successTTL: 5 * time.Second,
	}
}

// SetSuccessTTL overrides the auto-dismiss delay for successful jobs
func (r *Registry) SetSuccessTTL(ttl time.Duration) {
	r.mu.Lock()
	r.successTTL = ttl
	r.mu.Unlock()
}

// StartJob registers a new running job
func (r *Registry) StartJob(id string, files []FileState) {
	job := &Job{
		ID:        id,
		Total:     len(files),
		Status:    StatusRunning,
		StartedAt: time.Now(),
		Files:     files,
	}

	r.mu.Lock()
	r.jobs[id] = job
	r.mu.Unlock()

	r.notify("import:started", r.viewOf(job))
}

// UpdateJob applies a mutation to a job. Mutations that would break the
// counter invariant (processed+errors ≤ total) or move a terminal job back to
// running are dropped.
func (r *Registry) UpdateJob(id string, mutate func(*Job)) {
	r.mu.Lock()

	job, exists := r.jobs[id]
	if !exists {
		r.mu.Unlock()
		return
	}

	candidate := cloneJob(job)
	mutate(candidate)

	if candidate.Processed+candidate.Errors > candidate.Total {
		r.mu.Unlock()
		log.Printf("[%s] dropped progress update: processed=%d errors=%d exceeds total=%d",
			id, candidate.Processed, candidate.Errors, candidate.Total)
		return
	}

	if job.Status != StatusRunning && candidate.Status != job.Status {
		candidate.Status = job.Status // terminal states never transition back
	}

	*job = *candidate
	view := r.viewOf(job)
	r.mu.Unlock()

	r.notify("import:progress", view)
}

// FinishJob moves a job to a terminal state. Finishing an already-terminal
// job is a no-op, so double finishes cannot flip the outcome.
func (r *Registry) FinishJob(id string, status string, message string) {
	if status != StatusSuccess && status != StatusError {
		log.Printf("[%s] ignored finish with non-terminal status %q", id, status)
		return
	}

	r.mu.Lock()

	job, exists := r.jobs[id]
	if !exists || job.Status != StatusRunning {
		r.mu.Unlock()
		return
	}

	now := time.Now()
	job.Status = status
	job.Message = message
	job.CurrentFile = ""
	job.FinishedAt = &now

	if status == StatusSuccess {
		ttl := r.successTTL
		r.timers[id] = time.AfterFunc(ttl, func() { r.DismissJob(id) })
	}

	view := r.viewOf(job)
	r.mu.Unlock()

	r.notify("import:finished", view)
}

// DismissJob removes a job from the registry
func (r *Registry) DismissJob(id string) {
	r.mu.Lock()

	if timer, exists := r.timers[id]; exists {
		timer.Stop()
		delete(r.timers, id)
	}

	_, exists := r.jobs[id]
	delete(r.jobs, id)
	r.mu.Unlock()

	if exists {
		r.notify("import:dismissed", id)
	}
}

// Job returns a snapshot of one job
func (r *Registry) Job(id string) (View, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, exists := r.jobs[id]
	if !exists {
		return View{}, false
	}

	return r.viewOf(job), true
}

// Jobs returns snapshots of all registered jobs
func (r *Registry) Jobs() []View {
	r.mu.RLock()
	defer r.mu.RUnlock()

	views := make([]View, 0, len(r.jobs))
	for _, job := range r.jobs {
		views = append(views, r.viewOf(job))
	}

	return views
}

// viewOf builds a snapshot with derived progress. Caller holds the lock.
func (r *Registry) viewOf(job *Job) View {
	view := View{Job: *cloneJob(job)}
	if job.Total > 0 {
		view.Progress = float64(job.Processed+job.Errors) / float64(job.Total)
	}
	return view
}

func (r *Registry) notify(event string, payload interface{}) {
	if r.notifier != nil {
		r.notifier.Notify(event, payload)
	}
}

func cloneJob(job *Job) *Job {
	clone := *job
	clone.Files = make([]FileState, len(job.Files))
	copy(clone.Files, job.Files)
	return &clone
}
