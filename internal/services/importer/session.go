package importer

import (
	"context"
	"errors"
	"sync"

	"docflow-desktop/internal/api"
	"docflow-desktop/internal/classifier"
)

// ErrAlreadySubmitted is returned when a file is handed to a session twice
var ErrAlreadySubmitted = errors.New("file already submitted to session")

// Session wraps one server-held aggregation session. When opening the session
// fails the wrapper degrades to the non-aggregated fallback endpoint, where
// each file's extraction is persisted immediately instead of being batched.
//
// Submissions are at-most-once per file: a file is marked submitted before
// its request goes out, so a retry can never reach the server twice. Finish
// runs exactly once no matter how many times it is called.
type Session struct {
	client     *api.Client
	id         string
	fallback   bool
	submitted  map[string]bool
	landed     int // files the server has confirmed received
	finishOnce sync.Once
	finishResp *api.FinishSessionResponse
	finishErr  error
}

// NewSession creates an unopened session wrapper
func NewSession(client *api.Client) *Session {
	return &Session{
		client:    client,
		submitted: make(map[string]bool),
	}
}

// Start opens the server-side session. On failure the session switches to
// fallback mode and the error is returned for logging; the caller proceeds
// either way.
func (s *Session) Start(totalFiles int, clientName, clientID string) error {
	resp, err := s.client.StartSession(api.StartSessionRequest{
		TotalFiles: totalFiles,
		ClientName: clientName,
		ClientID:   clientID,
	})
	if err != nil {
		s.fallback = true
		return err
	}

	s.id = resp.SessionID
	return nil
}

// Aggregated reports whether submissions go through the aggregation session
func (s *Session) Aggregated() bool {
	return !s.fallback && s.id != ""
}

// ID returns the server-assigned session id, empty in fallback mode
func (s *Session) ID() string {
	return s.id
}

// Analyze submits one file. In aggregated mode the result is merged into the
// session; in fallback mode it is persisted immediately.
func (s *Session) Analyze(ctx context.Context, f classifier.File, data []byte, forceClientID string) (*api.AnalyzeResponse, error) {
	key := fileKey(f)
	if s.submitted[key] {
		return nil, ErrAlreadySubmitted
	}
	s.submitted[key] = true

	var resp *api.AnalyzeResponse
	var err error
	if s.Aggregated() {
		resp, err = s.client.AnalyzeFile(ctx, s.id, classifier.Filename(f), data, forceClientID)
	} else {
		resp, err = s.client.AnalyzeSingle(ctx, classifier.Filename(f), data, forceClientID)
	}

	if err == nil {
		s.landed++
	}

	return resp, err
}

// ConfirmDelivered re-queries the session after a transport-level failure and
// reports whether the server recorded the submission anyway. This replaces
// guessing from the error text: the server's count is the source of truth.
// In fallback mode there is no session to ask, so nothing can be confirmed.
func (s *Session) ConfirmDelivered() bool {
	if !s.Aggregated() {
		return false
	}

	status, err := s.client.SessionStatus(s.id)
	if err != nil {
		return false
	}

	if status.FilesSubmitted > s.landed {
		s.landed = status.FilesSubmitted
		return true
	}

	return false
}

// Finish commits the session's accumulated data. Safe to call more than once;
// only the first call reaches the server.
func (s *Session) Finish() (*api.FinishSessionResponse, error) {
	if !s.Aggregated() {
		return nil, errors.New("no aggregation session to finish")
	}

	s.finishOnce.Do(func() {
		s.finishResp, s.finishErr = s.client.FinishSession(s.id)
	})

	return s.finishResp, s.finishErr
}

// fileKey identifies a file within one job's selection
func fileKey(f classifier.File) string {
	if f.Path != "" {
		return f.Path
	}
	if f.RelPath != "" {
		return f.RelPath
	}
	return f.Name
}
