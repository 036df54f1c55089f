package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ArchiveType represents the query protocol of an archive server
type ArchiveType string

const (
	ArchiveTypeDICOMWeb ArchiveType = "dicomweb"
	ArchiveTypeOrthanc  ArchiveType = "orthanc"
)

// ArchiveServer describes one imaging archive (PACS) known to the service.
// Only active servers participate in a federation round. The aggregation
// engine references descriptors, it never mutates them.
type ArchiveServer struct {
	ID       uuid.UUID   `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Name     string      `gorm:"type:varchar(255);not null" json:"name"`
	Type     ArchiveType `gorm:"type:varchar(50);not null" json:"type"`
	Endpoint string      `gorm:"type:varchar(500);not null" json:"endpoint"`
	Port     int         `gorm:"not null" json:"port"`
	Username string      `gorm:"type:varchar(255)" json:"username,omitempty"`
	Password string      `gorm:"type:text" json:"-"`
	APIKey   string      `gorm:"type:text" json:"-"`
	IsActive bool        `gorm:"default:true" json:"is_active"`

	LastConnectionTest   time.Time `gorm:"index" json:"last_connection_test,omitempty"`
	LastConnectionStatus bool      `json:"last_connection_status,omitempty"`
	LastError            string    `gorm:"type:text" json:"last_error,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName overrides the table name
func (ArchiveServer) TableName() string {
	return "archive_servers"
}

// BeforeCreate hook
func (a *ArchiveServer) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// ConnectionStatus represents the status of an archive connection probe
type ConnectionStatus struct {
	IsConnected  bool      `json:"is_connected"`
	LastChecked  time.Time `json:"last_checked"`
	ResponseTime int64     `json:"response_time_ms"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// ConnectionTestRequest represents a request to probe an archive server.
// ArchiveID is set when the descriptor is already persisted, so the probe
// outcome can be recorded on it.
type ConnectionTestRequest struct {
	ArchiveID *uuid.UUID  `json:"archive_id,omitempty"`
	Type      ArchiveType `json:"type"`
	Endpoint  string      `json:"endpoint"`
	Port      int         `json:"port"`
	Username  string      `json:"username,omitempty"`
	Password  string      `json:"password,omitempty"`
	APIKey    string      `json:"api_key,omitempty"`
}

// ArchiveServerRequest represents a request to create/update an archive server
type ArchiveServerRequest struct {
	Name     string      `json:"name"`
	Type     ArchiveType `json:"type"`
	Endpoint string      `json:"endpoint"`
	Port     int         `json:"port"`
	Username string      `json:"username,omitempty"`
	Password string      `json:"password,omitempty"`
	APIKey   string      `json:"api_key,omitempty"`
	IsActive *bool       `json:"is_active,omitempty"`
}
