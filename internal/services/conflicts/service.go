package conflicts

import (
	"fmt"
	"sort"

	"docflow-desktop/internal/api"
)

// Conflict resolution choices
const (
	ChoiceKeepCurrent = "current"
	ChoiceAcceptNew   = "ai"
)

// FieldChange is one extracted value that diverges from the stored value and
// needs a human decision
type FieldChange struct {
	Field     string `json:"field"`
	Current   string `json:"current"`
	Suggested string `json:"suggested"`
}

// Service handles the review workflow for extracted process data: listing
// pending suggestions, resolving them field by field, and toggling the
// confirmed flag that freezes a process against further auto-applies.
type Service struct{}

// NewService creates a new conflict service
func NewService() *Service {
	return &Service{}
}

// Suggestions fetches a process's pending suggestions and confirmed flag
func (s *Service) Suggestions(client *api.Client, processID string) (*api.SuggestionsResponse, error) {
	if processID == "" {
		return nil, fmt.Errorf("process id is required")
	}
	return client.ListSuggestions(processID)
}

// Resolve applies one keep-current or accept-new decision. Each field is
// decided independently; resolving one suggestion leaves the others pending.
func (s *Service) Resolve(client *api.Client, processID, field, choice, suggestionID string) error {
	if processID == "" || field == "" {
		return fmt.Errorf("process id and field are required")
	}

	if choice != ChoiceKeepCurrent && choice != ChoiceAcceptNew {
		return fmt.Errorf("invalid choice %q, must be %q or %q", choice, ChoiceKeepCurrent, ChoiceAcceptNew)
	}

	_, err := client.ResolveConflict(processID, field, choice, suggestionID)
	return err
}

// SetConfirmed toggles a process's data-confirmed flag. While confirmed, new
// extractions stop overwriting fields and queue as suggestions instead;
// suggestions already pending stay pending.
func (s *Service) SetConfirmed(client *api.Client, processID string, confirmed bool) error {
	if processID == "" {
		return fmt.Errorf("process id is required")
	}

	_, err := client.ConfirmData(processID, confirmed)
	return err
}

// ApplyExtraction merges newly extracted values into the current field set.
// Empty fields are filled in directly unless the process is confirmed;
// anything that would overwrite a non-empty value becomes a FieldChange for
// manual review. Returned changes are sorted by field name for stable display.
func ApplyExtraction(current, extracted map[string]string, confirmed bool) (map[string]string, []FieldChange) {
	applied := make(map[string]string, len(current))
	for field, value := range current {
		applied[field] = value
	}

	changes := []FieldChange{}
	for field, value := range extracted {
		if value == "" {
			continue
		}

		existing := applied[field]
		if existing == value {
			continue
		}

		if existing == "" && !confirmed {
			applied[field] = value
			continue
		}

		changes = append(changes, FieldChange{
			Field:     field,
			Current:   existing,
			Suggested: value,
		})
	}

	sort.Slice(changes, func(i, j int) bool { return changes[i].Field < changes[j].Field })

	return applied, changes
}
