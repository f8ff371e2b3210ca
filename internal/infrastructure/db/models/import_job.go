package models

import "time"

type ImportJob struct {
	ID                 string  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	TenantID           string  `gorm:"type:text;not null"`
	UserID             string  `gorm:"type:text;not null"`
	FileName           string  `gorm:"type:text;not null"`
	FilePath           string  `gorm:"type:text;not null"`
	FileType           string  `gorm:"type:text;not null"`
	FileSize           int64   `gorm:"not null;default:0"`
	Status             string  `gorm:"type:text;not null"`
	Priority           int     `gorm:"not null;default:0"`
	TotalRecords       int64   `gorm:"not null;default:0"`
	ProcessedRecords   int64   `gorm:"not null;default:0"`
	FailedRecords      int64   `gorm:"not null;default:0"`
	ProgressPercentage float64 `gorm:"not null;default:0"`
	RetryCount         int     `gorm:"not null;default:0"`
	MaxRetries         int     `gorm:"not null;default:3"`
	ErrorDetails       *string `gorm:"type:text"`
	HeartbeatAt        *time.Time
	StartedAt          *time.Time
	CompletedAt        *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (ImportJob) TableName() string {
	return "import_jobs"
}
