package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"docflow-desktop/internal/api"
	"docflow-desktop/internal/classifier"
	"docflow-desktop/internal/models"
	"docflow-desktop/internal/services/importerrors"
	"docflow-desktop/internal/services/progress"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service drives bulk import jobs. Each job runs in its own goroutine as a
// strictly sequential chain: one file's upload in flight at a time, a short
// yield between files, progress written into the registry after every file.
// Multiple jobs may run concurrently; they share nothing but the registry.
type Service struct {
	db       *gorm.DB
	registry *progress.Registry
	ledger   *importerrors.Service

	mu      sync.Mutex
	cancels map[string]context.CancelFunc

	debounce  time.Duration // inter-file yield
	pushEvery int           // ledger progress push frequency, in files
}

// NewService creates a new import service
func NewService(db *gorm.DB, registry *progress.Registry, ledger *importerrors.Service) *Service {
	return &Service{
		db:        db,
		registry:  registry,
		ledger:    ledger,
		cancels:   make(map[string]context.CancelFunc),
		debounce:  100 * time.Millisecond,
		pushEvery: 5,
	}
}

// StartImport registers a job for the given selection and launches it in the
// background. Returns the client-generated job id.
func (s *Service) StartImport(client *api.Client, req ImportRequest) (string, error) {
	if len(req.Files) == 0 {
		return "", fmt.Errorf("no files selected")
	}

	jobID := uuid.New().String()
	groups := classifier.GroupByClient(req.Files)

	states := make([]progress.FileState, len(req.Files))
	for i, f := range req.Files {
		states[i] = progress.FileState{
			Path:   fileKey(f),
			Name:   classifier.Filename(f),
			Client: classifier.ClientFor(f),
			Status: progress.FilePending,
		}
	}

	s.registry.StartJob(jobID, states)

	if s.db != nil {
		record := &models.TaskProgress{
			ID:       jobID,
			TaskType: "bulk_import",
			Status:   progress.StatusRunning,
			Total:    len(req.Files),
		}
		if err := s.db.Create(record).Error; err != nil {
			log.Printf("[%s] failed to persist task record: %v", jobID, err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.cancels[jobID] = cancel
	s.mu.Unlock()

	go s.run(ctx, client, jobID, req, groups)

	return jobID, nil
}

// CancelImport requests cancellation of a running job. Takes effect before
// the next file starts and aborts the in-flight upload if one is outstanding.
func (s *Service) CancelImport(jobID string) error {
	s.mu.Lock()
	cancel, exists := s.cancels[jobID]
	s.mu.Unlock()

	if !exists {
		return fmt.Errorf("no running job with id %s", jobID)
	}

	cancel()
	return nil
}

// run executes one import job from session open to commit
func (s *Service) run(ctx context.Context, client *api.Client, jobID string, req ImportRequest, groups []classifier.Group) {
	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("Panic during import: %v", r)
			log.Printf("[%s] import panic recovered: %v", jobID, r)
			s.registry.FinishJob(jobID, progress.StatusError, msg)
			s.persistFinal(jobID, progress.StatusError, msg, nil)
		}
	}()
	defer func() {
		s.mu.Lock()
		delete(s.cancels, jobID)
		s.mu.Unlock()
	}()

	total := len(req.Files)

	session := NewSession(client)
	hintName, hintID := req.ForceClientName, req.ForceClientID
	if hintName == "" && len(groups) == 1 {
		hintName = groups[0].Client
	}
	if err := session.Start(total, hintName, hintID); err != nil {
		log.Printf("[%s] session start failed, switching to immediate-write mode: %v", jobID, err)
	}

	var mappings MappingSource
	if s.ledger != nil {
		mappings = s.ledger
	}
	gate := NewGate(client, mappings)

	var processed, errorCount, updated, skippedClients, attempted int
	cancelled := false

	pushProgress := func() {
		if err := client.PushJobProgress(jobID, processed, errorCount); err != nil {
			log.Printf("[%s] progress push dropped: %v", jobID, err)
		}
	}

groupLoop:
	for _, group := range groups {
		forceID := req.ForceClientID

		// The gate is bypassed entirely when a target client is forced
		if forceID == "" {
			verdict := gate.Check(group.Client)
			if !verdict.Exists {
				skippedClients++
				for _, f := range group.Files {
					errorCount++
					s.setFileState(jobID, f, progress.FileError, "Client not found", nil)
					s.recordError(client, group.Client, f, ErrorClientNotFound,
						fmt.Sprintf("no client named %q", group.Client))
				}
				s.syncCounters(jobID, processed, errorCount, updated, skippedClients, "")
				continue
			}
			forceID = verdict.ClientID
		}

		for _, f := range group.Files {
			// Yield briefly between files to keep the host responsive and
			// stay under platform rate limits
			if attempted > 0 {
				select {
				case <-ctx.Done():
					cancelled = true
					break groupLoop
				case <-time.After(s.debounce):
				}
			}
			attempted++

			if ctx.Err() != nil {
				cancelled = true
				break groupLoop
			}

			filename := classifier.Filename(f)
			s.setFileState(jobID, f, progress.FileProcessing, "", nil)
			s.syncCounters(jobID, processed, errorCount, updated, skippedClients, filename)

			if err := classifier.Validate(f); err != nil {
				errorCount++
				s.setFileState(jobID, f, progress.FileError, err.Error(), nil)
				s.recordError(client, group.Client, f, ErrorInvalidFile, err.Error())
				s.syncCounters(jobID, processed, errorCount, updated, skippedClients, "")
				continue
			}

			// Read once; the file is never buffered more than once per job
			data, err := os.ReadFile(f.Path)
			if err != nil {
				errorCount++
				msg := fmt.Sprintf("failed to read file: %v", err)
				s.setFileState(jobID, f, progress.FileError, msg, nil)
				s.recordError(client, group.Client, f, ErrorInvalidFile, msg)
				s.syncCounters(jobID, processed, errorCount, updated, skippedClients, "")
				continue
			}

			resp, err := session.Analyze(ctx, f, data, forceID)

			switch {
			case err != nil && isCancellation(ctx, err):
				errorCount++
				s.setFileState(jobID, f, progress.FileError, "Cancelled", nil)
				cancelled = true
				s.syncCounters(jobID, processed, errorCount, updated, skippedClients, "")
				break groupLoop

			case err != nil:
				// Transport failure. The upload may have landed server-side;
				// ask the session before declaring an error.
				if session.ConfirmDelivered() {
					processed++
					updated++
					s.setFileState(jobID, f, progress.FileSuccess, "Delivered despite transport error", nil)
					log.Printf("[%s] %s: transport error but delivery confirmed: %v", jobID, filename, err)
				} else {
					errorCount++
					s.setFileState(jobID, f, progress.FileError, err.Error(), nil)
					s.recordError(client, group.Client, f, ErrorNetwork, err.Error())
				}

			case !resp.Success:
				errorCount++
				msg := resp.Error
				if msg == "" {
					msg = "analysis failed"
				}
				s.setFileState(jobID, f, progress.FileError, msg, nil)
				s.recordError(client, group.Client, f, classifyFailure(resp), msg)

			default:
				processed++
				if resp.Aggregated || resp.Updated {
					updated++
				}
				s.setFileState(jobID, f, progress.FileSuccess, "", resp.FieldsExtracted)
			}

			s.syncCounters(jobID, processed, errorCount, updated, skippedClients, "")

			if (processed+errorCount)%s.pushEvery == 0 {
				pushProgress()
			}
		}
	}

	summary := &ImportSummary{
		Processed:      processed,
		Updated:        updated,
		Errors:         errorCount,
		SkippedClients: skippedClients,
		Cancelled:      cancelled,
		Fallback:       !session.Aggregated(),
	}

	s.syncCounters(jobID, processed, errorCount, updated, skippedClients, "")
	pushProgress()

	if cancelled {
		msg := fmt.Sprintf("Cancelled after %d of %d files (%d errors)", processed, total, errorCount)
		s.registry.FinishJob(jobID, progress.StatusError, msg)
		s.persistFinal(jobID, progress.StatusError, msg, summary)
		return
	}

	// Commit the accumulated session data. A failed commit outranks per-file
	// successes: nothing was persisted for aggregated files.
	if session.Aggregated() {
		finishResp, err := session.Finish()
		if err != nil {
			msg := fmt.Sprintf("Import processed %d files but commit failed: %v", processed, err)
			s.registry.FinishJob(jobID, progress.StatusError, msg)
			s.persistFinal(jobID, progress.StatusError, msg, summary)
			return
		}
		summary.Clients = finishResp.Summary.Clients
	}

	status := progress.StatusSuccess
	msg := fmt.Sprintf("Imported %d of %d files (%d updated)", processed, total, updated)
	if errorCount > 0 {
		status = progress.StatusError
		msg = fmt.Sprintf("Imported %d of %d files: %d errors, %d clients skipped",
			processed, total, errorCount, skippedClients)
	}

	s.registry.FinishJob(jobID, status, msg)
	s.persistFinal(jobID, status, msg, summary)
}

// setFileState updates one file's status inside the registry
func (s *Service) setFileState(jobID string, f classifier.File, status, message string, fields []string) {
	key := fileKey(f)
	s.registry.UpdateJob(jobID, func(j *progress.Job) {
		for i := range j.Files {
			if j.Files[i].Path == key {
				j.Files[i].Status = status
				j.Files[i].Message = message
				j.Files[i].Fields = fields
				return
			}
		}
	})
}

// syncCounters mirrors the job's counters into the registry and the local
// task record
func (s *Service) syncCounters(jobID string, processed, errorCount, updated, skippedClients int, currentFile string) {
	s.registry.UpdateJob(jobID, func(j *progress.Job) {
		j.Processed = processed
		j.Errors = errorCount
		j.Updated = updated
		j.SkippedClients = skippedClients
		j.CurrentFile = currentFile
	})

	if s.db == nil {
		return
	}

	var record models.TaskProgress
	if err := s.db.Where("id = ?", jobID).First(&record).Error; err == nil {
		record.Processed = processed
		record.Errors = errorCount
		record.SkippedClients = skippedClients
		record.CurrentFile = currentFile
		s.db.Save(&record)
	}
}

// persistFinal writes the terminal state and summary into the task record
func (s *Service) persistFinal(jobID, status, message string, summary *ImportSummary) {
	if s.db == nil {
		return
	}

	var record models.TaskProgress
	if err := s.db.Where("id = ?", jobID).First(&record).Error; err != nil {
		return
	}

	record.Status = status
	record.Message = message
	record.CurrentFile = ""
	if summary != nil {
		if data, err := json.Marshal(summary); err == nil {
			record.Results = string(data)
		}
	}
	s.db.Save(&record)
}

// recordError files a ledger entry for a failed file. Best-effort: a ledger
// failure never affects the job's own outcome.
func (s *Service) recordError(client *api.Client, folderName string, f classifier.File, errorType, message string) {
	if s.ledger == nil {
		return
	}

	if err := s.ledger.Record(client, folderName, classifier.Filename(f), errorType, message); err != nil {
		log.Printf("WARNING: failed to record import error for %s: %v", classifier.Filename(f), err)
	}
}
