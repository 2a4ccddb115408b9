package jobs

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"docflow-desktop/internal/api"

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

type ledgerBackend struct {
	mu        sync.Mutex
	server    *httptest.Server
	jobs      []api.BackgroundJob
	filters   []string
	cancelled []string
	deleted   []string
	cleared   int
}

func newLedgerBackend(t *testing.T, jobs []api.BackgroundJob) *ledgerBackend {
	t.Helper()

	b := &ledgerBackend{jobs: jobs}
	b.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()

		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/background-jobs":
			b.filters = append(b.filters, r.URL.Query().Get("status"))
			counts := map[string]int{}
			for _, j := range b.jobs {
				counts[j.Status]++
			}
			json.NewEncoder(w).Encode(api.BackgroundJobsResponse{Jobs: b.jobs, Counts: counts})

		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/cancel"):
			id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/api/background-jobs/"), "/cancel")
			b.cancelled = append(b.cancelled, id)
			json.NewEncoder(w).Encode(api.MessageResponse{Message: "cancelled"})

		case r.Method == http.MethodDelete && r.URL.Path == "/api/background-jobs":
			b.cleared++
			json.NewEncoder(w).Encode(api.MessageResponse{Message: "cleared"})

		case r.Method == http.MethodDelete:
			b.deleted = append(b.deleted, strings.TrimPrefix(r.URL.Path, "/api/background-jobs/"))
			json.NewEncoder(w).Encode(api.MessageResponse{Message: "deleted"})

		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(b.server.Close)

	return b
}

func testJobs() []api.BackgroundJob {
	return []api.BackgroundJob{
		{ID: "j1", Type: "bulk_import", Status: "running", Total: 10, Processed: 4},
		{ID: "j2", Type: "bulk_import", Status: "success", Total: 5, Processed: 5},
		{ID: "j3", Type: "bulk_import", Status: "error", Total: 3, Processed: 1, Errors: 2},
	}
}

func TestMonitorSnapshot(t *testing.T) {
	backend := newLedgerBackend(t, testJobs())
	notifier := &recordingNotifier{}

	monitor := NewMonitor(notifier)
	monitor.SetClient(api.NewClient(backend.server.URL, "tok"))

	snapshot, err := monitor.Snapshot()
	require.NoError(t, err)
	assert.Len(t, snapshot.Jobs, 3)
	assert.Equal(t, 1, snapshot.Counts["running"])
	assert.Equal(t, 1, snapshot.Counts["error"])

	notifier.mu.Lock()
	assert.Contains(t, notifier.events, "jobs:refreshed")
	notifier.mu.Unlock()
}

func TestMonitorSnapshotWithoutClient(t *testing.T) {
	monitor := NewMonitor(nil)
	_, err := monitor.Snapshot()
	assert.Error(t, err)
}

func TestMonitorStatusFilter(t *testing.T) {
	backend := newLedgerBackend(t, testJobs())
	monitor := NewMonitor(nil)
	monitor.SetClient(api.NewClient(backend.server.URL, "tok"))

	require.NoError(t, monitor.SetStatusFilter("running"))

	backend.mu.Lock()
	filters := append([]string{}, backend.filters...)
	backend.mu.Unlock()
	assert.Contains(t, filters, "running")

	assert.Error(t, monitor.SetStatusFilter("paused"), "unknown statuses are rejected")
}

func TestMonitorCancel(t *testing.T) {
	backend := newLedgerBackend(t, testJobs())
	monitor := NewMonitor(nil)
	monitor.SetClient(api.NewClient(backend.server.URL, "tok"))

	t.Run("running job", func(t *testing.T) {
		require.NoError(t, monitor.Cancel("j1"))
		backend.mu.Lock()
		assert.Equal(t, []string{"j1"}, backend.cancelled)
		backend.mu.Unlock()
	})

	t.Run("terminated job refused", func(t *testing.T) {
		err := monitor.Cancel("j2")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "only running jobs")
	})

	t.Run("unknown job", func(t *testing.T) {
		assert.Error(t, monitor.Cancel("nope"))
	})
}

func TestMonitorDelete(t *testing.T) {
	backend := newLedgerBackend(t, testJobs())
	monitor := NewMonitor(nil)
	monitor.SetClient(api.NewClient(backend.server.URL, "tok"))

	t.Run("terminated job", func(t *testing.T) {
		require.NoError(t, monitor.Delete("j3"))
		backend.mu.Lock()
		assert.Equal(t, []string{"j3"}, backend.deleted)
		backend.mu.Unlock()
	})

	t.Run("running job refused", func(t *testing.T) {
		err := monitor.Delete("j1")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "still running")
	})
}

func TestMonitorClearTerminated(t *testing.T) {
	backend := newLedgerBackend(t, testJobs())
	monitor := NewMonitor(nil)
	monitor.SetClient(api.NewClient(backend.server.URL, "tok"))

	require.NoError(t, monitor.ClearTerminated())

	backend.mu.Lock()
	assert.Equal(t, 1, backend.cleared)
	backend.mu.Unlock()
}

func TestMonitorAutoRefreshToggle(t *testing.T) {
	backend := newLedgerBackend(t, testJobs())
	monitor := NewMonitor(nil)
	monitor.SetClient(api.NewClient(backend.server.URL, "tok"))
	defer monitor.Stop()

	require.NoError(t, monitor.SetAutoRefresh(true))
	require.NoError(t, monitor.SetAutoRefresh(true), "enabling twice is a no-op")
	require.NoError(t, monitor.SetAutoRefresh(false))
	require.NoError(t, monitor.SetAutoRefresh(false))
}
