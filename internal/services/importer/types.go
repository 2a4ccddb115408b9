package importer

import (
	"docflow-desktop/internal/api"
	"docflow-desktop/internal/classifier"
)

// ImportRequest represents a request to bulk-import a folder selection
type ImportRequest struct {
	ProfileID       string            `json:"profile_id"`
	Files           []classifier.File `json:"files"`
	ForceClientID   string            `json:"force_client_id,omitempty"`   // single-client upload flow; bypasses the gate
	ForceClientName string            `json:"force_client_name,omitempty"` // session hint for the forced client
}

// ImportSummary is the aggregate end-of-job result
type ImportSummary struct {
	Processed      int                 `json:"processed"`
	Updated        int                 `json:"updated"`
	Errors         int                 `json:"errors"`
	SkippedClients int                 `json:"skipped_clients"`
	Cancelled      bool                `json:"cancelled"`
	Fallback       bool                `json:"fallback"` // non-aggregated immediate-write mode was used
	Clients        []api.ClientSummary `json:"clients,omitempty"`
}
