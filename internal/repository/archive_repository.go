package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/otcheredev/ris-study-browser/internal/database"
	"github.com/otcheredev/ris-study-browser/internal/models"
)

// ArchiveRepository handles archive server directory operations
type ArchiveRepository interface {
	Create(ctx context.Context, server *models.ArchiveServer) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.ArchiveServer, error)
	List(ctx context.Context) ([]models.ArchiveServer, error)
	ListActive(ctx context.Context) ([]models.ArchiveServer, error)
	Update(ctx context.Context, server *models.ArchiveServer) error
	Deactivate(ctx context.Context, id uuid.UUID) error
	UpdateConnectionStatus(ctx context.Context, id uuid.UUID, status *models.ConnectionStatus) error
}

// GormArchiveRepository is the PostgreSQL-backed archive directory
type GormArchiveRepository struct{}

// NewArchiveRepository creates a new archive repository
func NewArchiveRepository() *GormArchiveRepository {
	return &GormArchiveRepository{}
}

// Create creates a new archive server descriptor
func (r *GormArchiveRepository) Create(ctx context.Context, server *models.ArchiveServer) error {
	if err := database.DB.WithContext(ctx).Create(server).Error; err != nil {
		return fmt.Errorf("failed to create archive server: %w", err)
	}
	return nil
}

// GetByID retrieves an archive server by ID
func (r *GormArchiveRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ArchiveServer, error) {
	var server models.ArchiveServer
	if err := database.DB.WithContext(ctx).Where("id = ?", id).First(&server).Error; err != nil {
		return nil, fmt.Errorf("failed to get archive server: %w", err)
	}
	return &server, nil
}

// List retrieves all archive servers, active first
func (r *GormArchiveRepository) List(ctx context.Context) ([]models.ArchiveServer, error) {
	var servers []models.ArchiveServer
	if err := database.DB.WithContext(ctx).
		Order("is_active DESC, created_at ASC").
		Find(&servers).Error; err != nil {
		return nil, fmt.Errorf("failed to list archive servers: %w", err)
	}
	return servers, nil
}

// ListActive retrieves the archive servers participating in federation rounds
func (r *GormArchiveRepository) ListActive(ctx context.Context) ([]models.ArchiveServer, error) {
	var servers []models.ArchiveServer
	if err := database.DB.WithContext(ctx).
		Where("is_active = ?", true).
		Order("created_at ASC").
		Find(&servers).Error; err != nil {
		return nil, fmt.Errorf("failed to list active archive servers: %w", err)
	}
	return servers, nil
}

// Update updates an archive server descriptor
func (r *GormArchiveRepository) Update(ctx context.Context, server *models.ArchiveServer) error {
	if err := database.DB.WithContext(ctx).Save(server).Error; err != nil {
		return fmt.Errorf("failed to update archive server: %w", err)
	}
	return nil
}

// Deactivate removes an archive server from federation rounds without
// deleting its descriptor
func (r *GormArchiveRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	if err := database.DB.WithContext(ctx).
		Model(&models.ArchiveServer{}).
		Where("id = ?", id).
		Update("is_active", false).Error; err != nil {
		return fmt.Errorf("failed to deactivate archive server: %w", err)
	}
	return nil
}

// UpdateConnectionStatus records the outcome of a connection probe
func (r *GormArchiveRepository) UpdateConnectionStatus(ctx context.Context, id uuid.UUID, status *models.ConnectionStatus) error {
	updates := map[string]interface{}{
		"last_connection_test":   status.LastChecked,
		"last_connection_status": status.IsConnected,
		"last_error":             status.ErrorMessage,
	}

	if err := database.DB.WithContext(ctx).
		Model(&models.ArchiveServer{}).
		Where("id = ?", id).
		Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update connection status: %w", err)
	}

	return nil
}
