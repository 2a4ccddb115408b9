package importer

import (
	"context"
	"errors"

	"docflow-desktop/internal/api"
)

// Import failure taxonomy. These values end up on the import error ledger
// and drive which failures get a manual resolution path.
const (
	ErrorClientNotFound  = "client_not_found"
	ErrorAIFailed        = "ai_failed"
	ErrorInvalidFile     = "invalid_file"
	ErrorDuplicate       = "duplicate"
	ErrorCancelled       = "cancelled"
	ErrorTransportBenign = "transport_benign"
	ErrorNetwork         = "network"
	ErrorUnknown         = "unknown"
)

// classifyFailure maps a server-reported analyze failure onto the taxonomy
func classifyFailure(resp *api.AnalyzeResponse) string {
	switch resp.ErrorCode {
	case "duplicate":
		return ErrorDuplicate
	case "invalid_file", "unsupported_type":
		return ErrorInvalidFile
	case "extraction_failed":
		return ErrorAIFailed
	}

	if resp.Error != "" {
		return ErrorAIFailed
	}

	return ErrorUnknown
}

// isCancellation reports whether a failed submission was caused by the job's
// cancellation rather than by the network or the server
func isCancellation(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	return errors.Is(err, context.Canceled)
}
