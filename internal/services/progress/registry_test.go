package progress

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) Notify(event string, payload interface{}) {
	n.mu.Lock()
	n.events = append(n.events, event)
	n.mu.Unlock()
}

func (n *recordingNotifier) Events() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.events))
	copy(out, n.events)
	return out
}

func twoFiles() []FileState {
	return []FileState{
		{Path: "/tmp/a.pdf", Name: "a.pdf", Client: "João", Status: FilePending},
		{Path: "/tmp/b.pdf", Name: "b.pdf", Client: "João", Status: FilePending},
	}
}

func TestRegistryLifecycle(t *testing.T) {
	t.Run("Should track a job from start to finish", func(t *testing.T) {
		r := NewRegistry(nil)

		r.StartJob("job-1", twoFiles())

		view, exists := r.Job("job-1")
		require.True(t, exists)
		assert.Equal(t, StatusRunning, view.Status)
		assert.Equal(t, 2, view.Total)
		assert.Equal(t, 0.0, view.Progress)

		r.UpdateJob("job-1", func(j *Job) {
			j.Processed = 1
			j.CurrentFile = "b.pdf"
		})

		view, _ = r.Job("job-1")
		assert.Equal(t, 1, view.Processed)
		assert.Equal(t, 0.5, view.Progress)

		r.FinishJob("job-1", StatusError, "1 of 2 failed")

		view, _ = r.Job("job-1")
		assert.Equal(t, StatusError, view.Status)
		assert.NotNil(t, view.FinishedAt)
		assert.Empty(t, view.CurrentFile)
	})

	t.Run("Should drop updates that exceed the total", func(t *testing.T) {
		r := NewRegistry(nil)
		r.StartJob("job-1", twoFiles())

		r.UpdateJob("job-1", func(j *Job) {
			j.Processed = 2
			j.Errors = 1
		})

		view, _ := r.Job("job-1")
		assert.Equal(t, 0, view.Processed, "Invariant-breaking update must be dropped")
		assert.Equal(t, 0, view.Errors)
	})

	t.Run("Should never transition a terminal job back to running", func(t *testing.T) {
		r := NewRegistry(nil)
		r.StartJob("job-1", twoFiles())
		r.FinishJob("job-1", StatusError, "boom")

		r.UpdateJob("job-1", func(j *Job) {
			j.Status = StatusRunning
		})

		view, _ := r.Job("job-1")
		assert.Equal(t, StatusError, view.Status)

		// A second finish with a different outcome is ignored too
		r.FinishJob("job-1", StatusSuccess, "all good")
		view, _ = r.Job("job-1")
		assert.Equal(t, StatusError, view.Status)
	})

	t.Run("Should ignore updates for unknown jobs", func(t *testing.T) {
		r := NewRegistry(nil)
		r.UpdateJob("nope", func(j *Job) { j.Processed = 1 })
		r.FinishJob("nope", StatusSuccess, "")
		assert.Len(t, r.Jobs(), 0)
	})
}

func TestRegistryEviction(t *testing.T) {
	t.Run("Should auto-dismiss successful jobs after the TTL", func(t *testing.T) {
		r := NewRegistry(nil)
		r.SetSuccessTTL(20 * time.Millisecond)

		r.StartJob("job-1", twoFiles())
		r.UpdateJob("job-1", func(j *Job) { j.Processed = 2 })
		r.FinishJob("job-1", StatusSuccess, "done")

		_, exists := r.Job("job-1")
		assert.True(t, exists, "Job should survive until the TTL elapses")

		assert.Eventually(t, func() bool {
			_, exists := r.Job("job-1")
			return !exists
		}, time.Second, 5*time.Millisecond)
	})

	t.Run("Should retain error jobs until explicit dismissal", func(t *testing.T) {
		r := NewRegistry(nil)
		r.SetSuccessTTL(10 * time.Millisecond)

		r.StartJob("job-1", twoFiles())
		r.FinishJob("job-1", StatusError, "failed")

		time.Sleep(50 * time.Millisecond)
		_, exists := r.Job("job-1")
		assert.True(t, exists, "Error jobs must not auto-evict")

		r.DismissJob("job-1")
		_, exists = r.Job("job-1")
		assert.False(t, exists)
	})
}

func TestRegistryConcurrentJobs(t *testing.T) {
	t.Run("Should keep independent jobs isolated", func(t *testing.T) {
		r := NewRegistry(nil)
		r.StartJob("job-a", twoFiles())
		r.StartJob("job-b", twoFiles())

		var wg sync.WaitGroup
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				r.UpdateJob("job-a", func(j *Job) { j.Processed++ })
			}()
		}
		wg.Wait()

		a, _ := r.Job("job-a")
		b, _ := r.Job("job-b")
		assert.Equal(t, 2, a.Processed)
		assert.Equal(t, 0, b.Processed, "Updates to one job must not leak into another")
		assert.Len(t, r.Jobs(), 2)
	})
}

func TestRegistryNotifications(t *testing.T) {
	t.Run("Should emit one event per mutation", func(t *testing.T) {
		n := &recordingNotifier{}
		r := NewRegistry(n)

		r.StartJob("job-1", twoFiles())
		r.UpdateJob("job-1", func(j *Job) { j.Processed = 1 })
		r.FinishJob("job-1", StatusError, "failed")
		r.DismissJob("job-1")

		assert.Equal(t, []string{
			"import:started",
			"import:progress",
			"import:finished",
			"import:dismissed",
		}, n.Events())
	})
}
