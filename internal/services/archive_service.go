package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/otcheredev/ris-study-browser/internal/adapters"
	"github.com/otcheredev/ris-study-browser/internal/cache"
	"github.com/otcheredev/ris-study-browser/internal/models"
	"github.com/otcheredev/ris-study-browser/internal/repository"
	"github.com/rs/zerolog/log"
)

// ArchiveService manages the archive server directory
type ArchiveService struct {
	archiveRepo repository.ArchiveRepository
	factory     *adapters.AdapterFactory
	roundCache  cache.Cache
	timeout     time.Duration
}

// NewArchiveService creates a new archive directory service
func NewArchiveService(archiveRepo repository.ArchiveRepository, factory *adapters.AdapterFactory, roundCache cache.Cache, timeout time.Duration) *ArchiveService {
	return &ArchiveService{
		archiveRepo: archiveRepo,
		factory:     factory,
		roundCache:  roundCache,
		timeout:     timeout,
	}
}

// Create registers a new archive server descriptor
func (s *ArchiveService) Create(ctx context.Context, req *models.ArchiveServerRequest) (*models.ArchiveServer, error) {
	server := &models.ArchiveServer{
		Name:     req.Name,
		Type:     req.Type,
		Endpoint: req.Endpoint,
		Port:     req.Port,
		Username: req.Username,
		Password: req.Password,
		APIKey:   req.APIKey,
		IsActive: true,
	}
	if req.IsActive != nil {
		server.IsActive = *req.IsActive
	}

	if err := s.archiveRepo.Create(ctx, server); err != nil {
		return nil, fmt.Errorf("failed to create archive server: %w", err)
	}
	return server, nil
}

// List retrieves all archive server descriptors
func (s *ArchiveService) List(ctx context.Context) ([]models.ArchiveServer, error) {
	return s.archiveRepo.List(ctx)
}

// Get retrieves one archive server descriptor
func (s *ArchiveService) Get(ctx context.Context, id uuid.UUID) (*models.ArchiveServer, error) {
	return s.archiveRepo.GetByID(ctx, id)
}

// Update edits an archive server descriptor. The cached adapter is dropped
// so the next federation round sees the new connection settings.
func (s *ArchiveService) Update(ctx context.Context, id uuid.UUID, req *models.ArchiveServerRequest) (*models.ArchiveServer, error) {
	server, err := s.archiveRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != "" {
		server.Name = req.Name
	}
	if req.Type != "" {
		server.Type = req.Type
	}
	if req.Endpoint != "" {
		server.Endpoint = req.Endpoint
	}
	if req.Port != 0 {
		server.Port = req.Port
	}
	if req.Username != "" {
		server.Username = req.Username
	}
	if req.Password != "" {
		server.Password = req.Password
	}
	if req.APIKey != "" {
		server.APIKey = req.APIKey
	}
	if req.IsActive != nil {
		server.IsActive = *req.IsActive
	}

	if err := s.archiveRepo.Update(ctx, server); err != nil {
		return nil, err
	}

	if err := s.factory.RemoveAdapter(id); err != nil {
		return nil, err
	}
	s.invalidateRounds(ctx)

	return server, nil
}

// Deactivate removes an archive server from future federation rounds.
// Sessions opened earlier keep their directory snapshot.
func (s *ArchiveService) Deactivate(ctx context.Context, id uuid.UUID) error {
	if err := s.archiveRepo.Deactivate(ctx, id); err != nil {
		return err
	}
	if err := s.factory.RemoveAdapter(id); err != nil {
		return err
	}
	s.invalidateRounds(ctx)
	return nil
}

// invalidateRounds drops all cached federation rounds. Round keys include the
// server set, but a directory edit also changes connection settings behind
// unchanged keys, so stale rounds must not be replayed.
func (s *ArchiveService) invalidateRounds(ctx context.Context) {
	if s.roundCache == nil {
		return
	}
	if err := s.roundCache.Clear(ctx, "round:*"); err != nil {
		log.Warn().Err(err).Msg("Failed to invalidate cached federation rounds")
	}
}

// TestConnection probes an archive with a throwaway adapter and records the
// outcome when the descriptor is already persisted
func (s *ArchiveService) TestConnection(ctx context.Context, req *models.ConnectionTestRequest) (*models.ConnectionStatus, error) {
	server := models.ArchiveServer{
		Type:     req.Type,
		Endpoint: req.Endpoint,
		Port:     req.Port,
		Username: req.Username,
		Password: req.Password,
		APIKey:   req.APIKey,
	}

	adapter, err := adapters.NewAdapter(server, s.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to create adapter: %w", err)
	}
	defer adapter.Close()

	status, err := adapter.TestConnection(ctx)

	// Persisted descriptors keep a record of their last probe, success or not.
	if req.ArchiveID != nil && status != nil {
		if updateErr := s.archiveRepo.UpdateConnectionStatus(ctx, *req.ArchiveID, status); updateErr != nil {
			log.Warn().
				Err(updateErr).
				Str("archive_id", req.ArchiveID.String()).
				Msg("Failed to record connection test outcome")
		}
	}

	return status, err
}
