package importerrors

import (
	"fmt"
	"log"

	"docflow-desktop/internal/api"
	"docflow-desktop/internal/models"

	"gorm.io/gorm"
)

const mappingCacheSize = 256

// Service is the client side of the import error ledger. Failures are
// recorded on the backend's durable ledger; manual resolution additionally
// persists a local folder→client mapping that the client gate consults on
// future runs.
type Service struct {
	db    *gorm.DB
	cache *mappingCache
}

// NewService creates a new import error ledger service
func NewService(db *gorm.DB) *Service {
	return &Service{
		db:    db,
		cache: newMappingCache(mappingCacheSize),
	}
}

// Record creates a ledger entry for a failed file. Best-effort from the
// runner's perspective; the caller logs and continues on failure.
func (s *Service) Record(client *api.Client, folderName, filename, errorType, message string) error {
	return client.RecordImportError(api.RecordImportErrorRequest{
		FolderName:   folderName,
		Filename:     filename,
		ErrorType:    errorType,
		ErrorMessage: message,
	})
}

// List fetches all recorded import errors from the ledger
func (s *Service) List(client *api.Client) ([]api.ImportErrorRecord, error) {
	resp, err := client.ListImportErrors()
	if err != nil {
		return nil, err
	}
	return resp.Errors, nil
}

// Resolve marks a ledger entry resolved against a client and persists the
// standing folder→client mapping. Resolution is one-way.
func (s *Service) Resolve(client *api.Client, errorID, folderName, resolvedClientID string) error {
	if errorID == "" || resolvedClientID == "" {
		return fmt.Errorf("error id and client id are required")
	}

	if err := client.ResolveImportError(errorID, resolvedClientID); err != nil {
		return err
	}

	if folderName != "" {
		if err := s.saveMapping(folderName, resolvedClientID); err != nil {
			// The server-side resolution already happened; a local mapping
			// failure only costs a redundant check next run.
			log.Printf("WARNING: failed to save folder mapping %q: %v", folderName, err)
		}
	}

	return nil
}

// MappingFor returns the client id previously mapped to a folder name, if any
func (s *Service) MappingFor(folderName string) (string, bool) {
	if clientID, hit := s.cache.Get(folderName); hit {
		return clientID, true
	}

	if s.db == nil {
		return "", false
	}

	var mapping models.FolderMapping
	if err := s.db.Where("folder_name = ?", folderName).First(&mapping).Error; err != nil {
		return "", false
	}

	s.cache.Put(folderName, mapping.ClientID)
	return mapping.ClientID, true
}

// saveMapping upserts a folder→client mapping locally and refreshes the cache
func (s *Service) saveMapping(folderName, clientID string) error {
	s.cache.Put(folderName, clientID)

	if s.db == nil {
		return nil
	}

	var existing models.FolderMapping
	err := s.db.Where("folder_name = ?", folderName).First(&existing).Error
	if err == nil {
		existing.ClientID = clientID
		return s.db.Save(&existing).Error
	}
	if err != gorm.ErrRecordNotFound {
		return err
	}

	return s.db.Create(&models.FolderMapping{
		FolderName: folderName,
		ClientID:   clientID,
	}).Error
}
