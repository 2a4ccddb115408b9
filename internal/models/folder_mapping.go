package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// FolderMapping is a standing folder-name → client mapping created when a
// client_not_found import error is manually resolved. The client gate consults
// it before asking the backend, so the same folder name is never misclassified
// twice.
type FolderMapping struct {
	ID         string    `gorm:"primaryKey" json:"id"`
	FolderName string    `gorm:"unique;not null;column:folder_name" json:"folder_name"`
	ClientID   string    `gorm:"not null;column:client_id" json:"client_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// BeforeCreate hook to generate UUID before creating record
func (fm *FolderMapping) BeforeCreate(tx *gorm.DB) error {
	if fm.ID == "" {
		fm.ID = uuid.New().String()
	}
	return nil
}

// TableName specifies the table name for GORM
func (FolderMapping) TableName() string {
	return "folder_mappings"
}
