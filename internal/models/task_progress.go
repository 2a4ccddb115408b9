package models

import (
	"time"
)

// TaskProgress is the durable record of an import job, so progress survives
// app restarts and can be reopened from the jobs screen.
type TaskProgress struct {
	ID             string    `gorm:"primaryKey" json:"id"` // UUID job ID
	TaskType       string    `gorm:"not null;column:task_type" json:"task_type"` // bulk_import
	Status         string    `gorm:"not null;default:running" json:"status"`     // running, success, error
	Total          int       `gorm:"not null;default:0" json:"total"`
	Processed      int       `gorm:"not null;default:0" json:"processed"`
	Errors         int       `gorm:"not null;default:0" json:"errors"`
	SkippedClients int       `gorm:"not null;default:0;column:skipped_clients" json:"skipped_clients"`
	CurrentFile    string    `gorm:"column:current_file" json:"current_file"`
	Message        string    `gorm:"type:text" json:"message"`
	Results        string    `gorm:"type:text" json:"results"` // JSON import summary
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (TaskProgress) TableName() string {
	return "task_progress"
}
