package jobs

import (
	"fmt"
	"log"
	"sync"

	"docflow-desktop/internal/api"

	"github.com/robfig/cron/v3"
)

// Notifier pushes refreshed ledger snapshots to the frontend
type Notifier interface {
	Notify(event string, payload interface{})
}

// Monitor mirrors the server-side background job ledger. While auto-refresh is
// on it polls the listing every few seconds and emits the snapshot; the
// management actions (cancel, delete, clear) go straight to the server and then
// force a refresh so the mirror never lags a user action.
type Monitor struct {
	mu           sync.RWMutex
	client       *api.Client
	notifier     Notifier
	scheduler    *cron.Cron
	entryID      cron.EntryID
	statusFilter string
	snapshot     *api.BackgroundJobsResponse
}

// NewMonitor creates a stopped monitor; call SetAutoRefresh to start polling
func NewMonitor(notifier Notifier) *Monitor {
	return &Monitor{
		notifier:  notifier,
		scheduler: cron.New(cron.WithSeconds()),
	}
}

// SetClient points the monitor at a backend. Clears the held snapshot, since
// it belongs to the previous backend.
func (m *Monitor) SetClient(client *api.Client) {
	m.mu.Lock()
	m.client = client
	m.snapshot = nil
	m.mu.Unlock()
}

// SetStatusFilter narrows the polled listing to one status ("" for all)
func (m *Monitor) SetStatusFilter(status string) error {
	switch status {
	case "", "running", "success", "error":
	default:
		return fmt.Errorf("unknown job status filter %q", status)
	}

	m.mu.Lock()
	m.statusFilter = status
	m.mu.Unlock()

	return m.Refresh()
}

// SetAutoRefresh starts or stops the 5 second polling loop
func (m *Monitor) SetAutoRefresh(enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if enabled {
		if m.entryID != 0 {
			return nil
		}

		entryID, err := m.scheduler.AddFunc("@every 5s", func() {
			if err := m.Refresh(); err != nil {
				log.Printf("background job refresh failed: %v", err)
			}
		})
		if err != nil {
			return fmt.Errorf("failed to schedule job refresh: %w", err)
		}

		m.entryID = entryID
		m.scheduler.Start()
		return nil
	}

	if m.entryID != 0 {
		m.scheduler.Remove(m.entryID)
		m.entryID = 0
	}
	m.scheduler.Stop()

	return nil
}

// Stop shuts the polling loop down for good
func (m *Monitor) Stop() {
	m.scheduler.Stop()
}

// Refresh fetches the ledger listing and publishes the new snapshot
func (m *Monitor) Refresh() error {
	m.mu.RLock()
	client := m.client
	filter := m.statusFilter
	m.mu.RUnlock()

	if client == nil {
		return fmt.Errorf("no backend connection configured")
	}

	resp, err := client.ListBackgroundJobs(filter)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.snapshot = resp
	m.mu.Unlock()

	if m.notifier != nil {
		m.notifier.Notify("jobs:refreshed", resp)
	}

	return nil
}

// Snapshot returns the last fetched listing, fetching one first if none is held
func (m *Monitor) Snapshot() (*api.BackgroundJobsResponse, error) {
	m.mu.RLock()
	snapshot := m.snapshot
	m.mu.RUnlock()

	if snapshot != nil {
		return snapshot, nil
	}

	if err := m.Refresh(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot, nil
}

// Cancel requests cancellation of a running ledger job
func (m *Monitor) Cancel(jobID string) error {
	job, err := m.find(jobID)
	if err != nil {
		return err
	}

	if job.Status != "running" {
		return fmt.Errorf("job %s is %s, only running jobs can be cancelled", jobID, job.Status)
	}

	m.mu.RLock()
	client := m.client
	m.mu.RUnlock()

	if err := client.CancelBackgroundJob(jobID); err != nil {
		return err
	}

	return m.Refresh()
}

// Delete removes a terminated ledger job
func (m *Monitor) Delete(jobID string) error {
	job, err := m.find(jobID)
	if err != nil {
		return err
	}

	if job.Status == "running" {
		return fmt.Errorf("job %s is still running, cancel it first", jobID)
	}

	m.mu.RLock()
	client := m.client
	m.mu.RUnlock()

	if err := client.DeleteBackgroundJob(jobID); err != nil {
		return err
	}

	return m.Refresh()
}

// ClearTerminated removes every non-running ledger job in one action
func (m *Monitor) ClearTerminated() error {
	m.mu.RLock()
	client := m.client
	m.mu.RUnlock()

	if client == nil {
		return fmt.Errorf("no backend connection configured")
	}

	if err := client.ClearTerminatedJobs(); err != nil {
		return err
	}

	return m.Refresh()
}

// find looks a job up in the current snapshot, refreshing if needed
func (m *Monitor) find(jobID string) (*api.BackgroundJob, error) {
	snapshot, err := m.Snapshot()
	if err != nil {
		return nil, err
	}

	for i := range snapshot.Jobs {
		if snapshot.Jobs[i].ID == jobID {
			return &snapshot.Jobs[i], nil
		}
	}

	return nil, fmt.Errorf("job %s not found on the ledger", jobID)
}
