package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"docflow-desktop/internal/api"
	"docflow-desktop/internal/classifier"
	"docflow-desktop/internal/crypto"
	"docflow-desktop/internal/database"
	"docflow-desktop/internal/models"
	"docflow-desktop/internal/services/conflicts"
	"docflow-desktop/internal/services/importer"
	"docflow-desktop/internal/services/importerrors"
	"docflow-desktop/internal/services/jobs"
	"docflow-desktop/internal/services/progress"

	"github.com/wailsapp/wails/v2/pkg/runtime"
	"gorm.io/gorm"
)

// App struct - main application state
type App struct {
	ctx             context.Context
	db              *gorm.DB
	selectedProfile *models.ConnectionProfile
	registry        *progress.Registry
	importerService *importer.Service
	errorLedger     *importerrors.Service
	jobsMonitor     *jobs.Monitor
	conflictService *conflicts.Service
}

// NewApp creates a new App application struct
func NewApp() *App {
	return &App{}
}

// wailsNotifier forwards service events onto the frontend event bus
type wailsNotifier struct {
	app *App
}

func (n *wailsNotifier) Notify(event string, payload interface{}) {
	if n.app.ctx == nil {
		return
	}
	runtime.EventsEmit(n.app.ctx, event, payload)
}

// startup is called when the app starts. The context is saved
// so we can call the runtime methods
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx
	log.Println("Application starting up...")

	// Initialize encryption (FATAL if this fails - we cannot save profiles without it)
	if err := crypto.InitEncryption(); err != nil {
		log.Fatalf("FATAL: Encryption initialization failed: %v\nProfiles cannot be saved without encryption.", err)
	}
	log.Println("Encryption initialized successfully")

	// Initialize database
	db, err := database.Init()
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	a.db = db
	log.Println("Database initialized successfully")

	notifier := &wailsNotifier{app: a}

	a.registry = progress.NewRegistry(notifier)
	a.errorLedger = importerrors.NewService(db)
	a.importerService = importer.NewService(db, a.registry, a.errorLedger)
	log.Println("Importer service initialized")

	a.jobsMonitor = jobs.NewMonitor(notifier)
	log.Println("Background job monitor initialized")

	a.conflictService = conflicts.NewService()

	log.Println("Startup complete")
}

// shutdown is called when the app is closing
func (a *App) shutdown(ctx context.Context) {
	log.Println("Application shutting down...")

	if a.jobsMonitor != nil {
		a.jobsMonitor.Stop()
	}

	if err := database.Close(); err != nil {
		log.Printf("Error closing database: %v", err)
	}

	log.Println("Shutdown complete")
}

// ====================================================================================
// WAILS-BOUND METHODS - Exposed to Frontend
// ====================================================================================

// Profile Management Methods

// ListProfiles returns all connection profiles
func (a *App) ListProfiles() ([]models.ConnectionProfile, error) {
	var profiles []models.ConnectionProfile
	if err := a.db.Find(&profiles).Error; err != nil {
		return nil, err
	}
	return profiles, nil
}

// GetProfile retrieves a specific connection profile by ID
func (a *App) GetProfile(profileID string) (*models.ConnectionProfile, error) {
	var profile models.ConnectionProfile
	if err := a.db.Where("id = ?", profileID).First(&profile).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

// CreateProfile creates a new connection profile
// NOTE: Frontend should call TestConnection() first to validate the URL and
// token before saving to database
func (a *App) CreateProfile(req CreateProfileRequest) error {
	// Validate encryption is initialized
	if !crypto.IsInitialized() {
		return errors.New("encryption system not initialized - cannot save profiles")
	}

	tokenEnc, err := crypto.EncryptToken(req.Token)
	if err != nil {
		return err
	}

	profile := &models.ConnectionProfile{
		Name:     req.Name,
		BaseURL:  req.BaseURL,
		TokenEnc: tokenEnc,
	}

	return a.db.Create(profile).Error
}

// UpdateProfile updates an existing connection profile
func (a *App) UpdateProfile(profileID string, req CreateProfileRequest) error {
	var profile models.ConnectionProfile
	if err := a.db.Where("id = ?", profileID).First(&profile).Error; err != nil {
		return err
	}

	profile.Name = req.Name
	profile.BaseURL = req.BaseURL

	// Re-encrypt the token only if a new one was provided
	if req.Token != "" {
		tokenEnc, err := crypto.EncryptToken(req.Token)
		if err != nil {
			return err
		}
		profile.TokenEnc = tokenEnc
	}

	return a.db.Save(&profile).Error
}

// DeleteProfile deletes a connection profile
func (a *App) DeleteProfile(profileID string) error {
	return a.db.Where("id = ?", profileID).Delete(&models.ConnectionProfile{}).Error
}

// SelectProfile sets the currently selected profile
func (a *App) SelectProfile(profileID string) error {
	var profile models.ConnectionProfile
	if err := a.db.Where("id = ?", profileID).First(&profile).Error; err != nil {
		return err
	}
	a.selectedProfile = &profile
	a.jobsMonitor.SetClient(a.clientFor(&profile))
	log.Printf("Selected profile: %s", profile.Name)
	return nil
}

// GetSelectedProfile returns the currently selected profile
func (a *App) GetSelectedProfile() (*models.ConnectionProfile, error) {
	if a.selectedProfile == nil {
		return nil, nil
	}
	return a.selectedProfile, nil
}

// clientFor builds an API client from a profile's stored credentials
func (a *App) clientFor(profile *models.ConnectionProfile) *api.Client {
	token, err := crypto.DecryptToken(profile.TokenEnc)
	if err != nil {
		log.Printf("Failed to decrypt token for profile %s: %v", profile.Name, err)
		token = ""
	}
	return api.NewClient(profile.BaseURL, token)
}

// clientForSelected returns an API client for the selected profile
func (a *App) clientForSelected() (*api.Client, error) {
	if a.selectedProfile == nil {
		return nil, errors.New("no profile selected")
	}
	return a.clientFor(a.selectedProfile), nil
}

// TestConnectionRequest represents a connection test request
type TestConnectionRequest struct {
	URL   string `json:"url"`
	Token string `json:"token"`
}

// TestConnectionResponse represents the test result
type TestConnectionResponse struct {
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
	UserName string `json:"user_name,omitempty"`
}

// TestConnection tests a dashboard connection without saving to database
func (a *App) TestConnection(req TestConnectionRequest) TestConnectionResponse {
	client := api.NewClient(req.URL, req.Token)

	resp, err := client.Get("api/me", nil)
	if err != nil {
		return TestConnectionResponse{
			Success: false,
			Error:   fmt.Sprintf("Connection failed: %v", err),
		}
	}

	if !resp.IsSuccess() {
		var errorMsg string
		switch resp.StatusCode() {
		case 401:
			errorMsg = "Invalid or expired token"
		case 404:
			errorMsg = "Server not found or invalid URL"
		case 403:
			errorMsg = "Access forbidden (check account permissions)"
		default:
			errorMsg = fmt.Sprintf("HTTP %d: %s", resp.StatusCode(), resp.Status())
		}
		return TestConnectionResponse{
			Success: false,
			Error:   errorMsg,
		}
	}

	var userInfo struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}

	userName := "Connected User"
	if err := json.Unmarshal(resp.Body(), &userInfo); err == nil {
		if userInfo.Name != "" {
			userName = userInfo.Name
		} else if userInfo.Email != "" {
			userName = userInfo.Email
		}
	}

	return TestConnectionResponse{
		Success:  true,
		UserName: userName,
	}
}

// Folder Selection & Import Methods

// SelectImportFolder opens a native directory picker and scans the chosen
// folder tree. Returns nil if the user cancelled the dialog.
func (a *App) SelectImportFolder() ([]classifier.File, error) {
	root, err := runtime.OpenDirectoryDialog(a.ctx, runtime.OpenDialogOptions{
		Title: "Select the document folder to import",
	})
	if err != nil {
		return nil, err
	}
	if root == "" {
		return nil, nil
	}

	return a.ScanFolder(root)
}

// ScanFolder walks a folder tree and returns every regular file it contains.
// Relative paths keep the selected folder's own name as their first segment,
// so the client folders sit at the second segment.
func (a *App) ScanFolder(root string) ([]classifier.File, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("cannot access folder: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a folder", root)
	}

	rootName := filepath.Base(root)
	var files []classifier.File

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		fileInfo, err := d.Info()
		if err != nil {
			return err
		}

		files = append(files, classifier.File{
			Path:    path,
			RelPath: rootName + "/" + filepath.ToSlash(rel),
			Name:    d.Name(),
			Size:    fileInfo.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan folder: %w", err)
	}

	return files, nil
}

// PreviewGroups shows how a selection will be split across clients before the
// import starts. Uses the same rule the import itself uses.
func (a *App) PreviewGroups(files []classifier.File) []classifier.Group {
	return classifier.GroupByClient(files)
}

// StartImport launches a bulk import job for the given selection
func (a *App) StartImport(req importer.ImportRequest) (string, error) {
	client, err := a.clientForSelected()
	if err != nil {
		return "", err
	}
	return a.importerService.StartImport(client, req)
}

// CancelImport requests cancellation of a running import job
func (a *App) CancelImport(jobID string) error {
	return a.importerService.CancelImport(jobID)
}

// GetImportJobs returns snapshots of all registered import jobs
func (a *App) GetImportJobs() []progress.View {
	return a.registry.Jobs()
}

// GetImportJob returns one job's snapshot
func (a *App) GetImportJob(jobID string) (*progress.View, error) {
	view, exists := a.registry.Job(jobID)
	if !exists {
		return nil, fmt.Errorf("no job with id %s", jobID)
	}
	return &view, nil
}

// DismissImportJob removes a finished job from the registry
func (a *App) DismissImportJob(jobID string) {
	a.registry.DismissJob(jobID)
}

// ListJobHistory retrieves recent import job history from the local database
func (a *App) ListJobHistory(limit int) ([]JobHistoryResponse, error) {
	if limit <= 0 {
		limit = 10 // Default to 10 most recent jobs
	}

	var tasks []models.TaskProgress
	if err := a.db.Order("created_at DESC").Limit(limit).Find(&tasks).Error; err != nil {
		return nil, err
	}

	history := make([]JobHistoryResponse, 0, len(tasks))
	for _, task := range tasks {
		entry := JobHistoryResponse{
			TaskID:    task.ID,
			JobType:   task.TaskType,
			Status:    task.Status,
			StartedAt: task.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
			Processed: task.Processed,
			Errors:    task.Errors,
			Total:     task.Total,
			Summary:   jobSummary(&task),
		}

		if task.UpdatedAt.After(task.CreatedAt) {
			completedAt := task.UpdatedAt.Format("2006-01-02T15:04:05Z07:00")
			entry.CompletedAt = &completedAt
		}

		history = append(history, entry)
	}

	return history, nil
}

// jobSummary creates a brief summary of the job result
func jobSummary(task *models.TaskProgress) string {
	switch task.Status {
	case progress.StatusSuccess:
		return fmt.Sprintf("Imported %d of %d files", task.Processed, task.Total)
	case progress.StatusError:
		if task.Message != "" {
			return task.Message
		}
		return fmt.Sprintf("Failed with %d errors", task.Errors)
	case progress.StatusRunning:
		return fmt.Sprintf("In progress (%d/%d)", task.Processed+task.Errors, task.Total)
	default:
		return task.Status
	}
}

// Background Job Ledger Methods

// GetBackgroundJobs returns the current server job ledger snapshot
func (a *App) GetBackgroundJobs() (*api.BackgroundJobsResponse, error) {
	return a.jobsMonitor.Snapshot()
}

// RefreshBackgroundJobs forces an immediate ledger refresh
func (a *App) RefreshBackgroundJobs() error {
	return a.jobsMonitor.Refresh()
}

// SetJobsAutoRefresh toggles the 5 second ledger polling loop
func (a *App) SetJobsAutoRefresh(enabled bool) error {
	return a.jobsMonitor.SetAutoRefresh(enabled)
}

// SetJobsStatusFilter narrows the polled ledger listing to one status
func (a *App) SetJobsStatusFilter(status string) error {
	return a.jobsMonitor.SetStatusFilter(status)
}

// CancelBackgroundJob requests cancellation of a running server-side job
func (a *App) CancelBackgroundJob(jobID string) error {
	return a.jobsMonitor.Cancel(jobID)
}

// DeleteBackgroundJob removes a terminated server-side job
func (a *App) DeleteBackgroundJob(jobID string) error {
	return a.jobsMonitor.Delete(jobID)
}

// ClearTerminatedJobs removes all non-running server-side jobs
func (a *App) ClearTerminatedJobs() error {
	return a.jobsMonitor.ClearTerminated()
}

// Import Error Ledger Methods

// ListImportErrors fetches the durable import error ledger
func (a *App) ListImportErrors() ([]api.ImportErrorRecord, error) {
	client, err := a.clientForSelected()
	if err != nil {
		return nil, err
	}
	return a.errorLedger.List(client)
}

// ResolveImportError marks a ledger entry resolved against a client and saves
// the folder mapping for future imports
func (a *App) ResolveImportError(errorID, folderName, resolvedClientID string) error {
	client, err := a.clientForSelected()
	if err != nil {
		return err
	}
	return a.errorLedger.Resolve(client, errorID, folderName, resolvedClientID)
}

// Conflict Resolution Methods

// GetSuggestions fetches a process's pending conflict suggestions
func (a *App) GetSuggestions(processID string) (*api.SuggestionsResponse, error) {
	client, err := a.clientForSelected()
	if err != nil {
		return nil, err
	}
	return a.conflictService.Suggestions(client, processID)
}

// ResolveConflict applies a keep-current or accept-new decision to one field
func (a *App) ResolveConflict(processID, field, choice, suggestionID string) error {
	client, err := a.clientForSelected()
	if err != nil {
		return err
	}
	return a.conflictService.Resolve(client, processID, field, choice, suggestionID)
}

// ConfirmProcessData toggles a process's data-confirmed flag
func (a *App) ConfirmProcessData(processID string, confirmed bool) error {
	client, err := a.clientForSelected()
	if err != nil {
		return err
	}
	return a.conflictService.SetConfirmed(client, processID, confirmed)
}

// ====================================================================================
// REQUEST/RESPONSE TYPES
// ====================================================================================

// JobHistoryResponse represents a completed job in the history
type JobHistoryResponse struct {
	TaskID      string  `json:"task_id"`
	JobType     string  `json:"job_type"`
	Status      string  `json:"status"` // "running", "success", "error"
	StartedAt   string  `json:"started_at"`
	CompletedAt *string `json:"completed_at"` // ISO 8601 timestamp or null
	Summary     string  `json:"summary"`
	Processed   int     `json:"processed"`
	Errors      int     `json:"errors"`
	Total       int     `json:"total"`
}

// CreateProfileRequest represents a request to create/update a connection profile
type CreateProfileRequest struct {
	Name    string `json:"name"`
	BaseURL string `json:"base_url"`
	Token   string `json:"token"` // Plain text, will be encrypted
}
