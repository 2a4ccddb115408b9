package api

// StartSessionRequest opens a server-side aggregation session for one import job
type StartSessionRequest struct {
	TotalFiles int    `json:"total_files"`
	ClientName string `json:"client_name,omitempty"`
	ClientID   string `json:"client_id,omitempty"`
}

// StartSessionResponse carries the id of the newly opened aggregation session
type StartSessionResponse struct {
	SessionID string `json:"session_id"`
}

// CheckClientResponse is the backend's answer to a client existence check
type CheckClientResponse struct {
	Exists   bool   `json:"exists"`
	ClientID string `json:"client_id,omitempty"`
}

// AnalyzeResponse is returned by both the session analyze endpoint and the
// non-aggregated analyze-single fallback endpoint
type AnalyzeResponse struct {
	Success         bool     `json:"success"`
	Aggregated      bool     `json:"aggregated,omitempty"` // session mode
	Updated         bool     `json:"updated,omitempty"`    // fallback mode
	FieldsExtracted []string `json:"fields_extracted,omitempty"`
	Error           string   `json:"error,omitempty"`
	ErrorCode       string   `json:"error_code,omitempty"` // duplicate, invalid_file, extraction_failed
}

// SessionStatusResponse reports how many files the server has recorded for a
// session. Used to confirm delivery after a transport-level failure.
type SessionStatusResponse struct {
	SessionID      string `json:"session_id"`
	FilesSubmitted int    `json:"files_submitted"`
	Finished       bool   `json:"finished"`
}

// ClientSummary is one client's share of a committed aggregation session
type ClientSummary struct {
	ClientID      string `json:"client_id"`
	ClientName    string `json:"client_name"`
	SalariosCount int    `json:"salarios_count"`
	FieldsUpdated int    `json:"fields_updated"`
}

// FinishSessionResponse is the commit summary returned by session finish
type FinishSessionResponse struct {
	Summary struct {
		Clients []ClientSummary `json:"clients"`
	} `json:"summary"`
}

// BackgroundJob is one entry of the server-side job ledger
type BackgroundJob struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Status     string `json:"status"` // running, success, error
	Total      int    `json:"total"`
	Processed  int    `json:"processed"`
	Errors     int    `json:"errors"`
	Details    string `json:"details,omitempty"`
	StartedAt  string `json:"started_at,omitempty"`
	FinishedAt string `json:"finished_at,omitempty"`
}

// BackgroundJobsResponse is the ledger listing with per-status counts
type BackgroundJobsResponse struct {
	Jobs   []BackgroundJob `json:"jobs"`
	Counts map[string]int  `json:"counts"`
}

// ImportErrorRecord is a durable, categorized import failure
type ImportErrorRecord struct {
	ID               string `json:"id"`
	FolderName       string `json:"folder_name"`
	Filename         string `json:"filename"`
	ErrorType        string `json:"error_type"` // client_not_found, ai_failed, invalid_file, duplicate, unknown
	ErrorMessage     string `json:"error_message"`
	CreatedAt        string `json:"created_at"`
	Resolved         bool   `json:"resolved"`
	ResolvedClientID string `json:"resolved_client_id,omitempty"`
}

// ImportErrorsResponse is the list of recorded import errors
type ImportErrorsResponse struct {
	Errors []ImportErrorRecord `json:"errors"`
}

// RecordImportErrorRequest creates a new ledger entry for a failed file
type RecordImportErrorRequest struct {
	FolderName   string `json:"folder_name"`
	Filename     string `json:"filename"`
	ErrorType    string `json:"error_type"`
	ErrorMessage string `json:"error_message"`
}

// Suggestion is a single divergent field value awaiting a keep/accept decision
type Suggestion struct {
	ID         string `json:"id"`
	Field      string `json:"field"`
	Current    string `json:"current"`
	Suggested  string `json:"suggested"`
	Document   string `json:"document,omitempty"`
	DetectedAt string `json:"detected_at,omitempty"`
}

// SuggestionsResponse lists a process's pending suggestions and its confirmed flag
type SuggestionsResponse struct {
	Suggestions     []Suggestion `json:"suggestions"`
	IsDataConfirmed bool         `json:"is_data_confirmed"`
}

// MessageResponse is the generic acknowledgement body used by write endpoints
type MessageResponse struct {
	Message string `json:"message"`
}
