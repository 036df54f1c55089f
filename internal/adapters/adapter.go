package adapters

import (
	"context"

	"github.com/otcheredev/ris-study-browser/internal/models"
)

// ArchiveAdapter is implemented once per archive query protocol. An adapter
// translates one archive server's native study attributes into the canonical
// study shape. Failures are returned as values; adapters never panic past
// this boundary.
type ArchiveAdapter interface {
	// SearchStudies queries the archive and returns canonical studies.
	// Origin-archive tagging is done by the federation coordinator, not here.
	SearchStudies(ctx context.Context, criteria models.SearchCriteria) ([]models.Study, error)

	// TestConnection probes the archive with a minimal query
	TestConnection(ctx context.Context) (*models.ConnectionStatus, error)

	Close() error
	Type() models.ArchiveType
}

// BaseAdapter provides common functionality for all adapters
type BaseAdapter struct {
	server models.ArchiveServer
}

func (b *BaseAdapter) Type() models.ArchiveType {
	return b.server.Type
}

func (b *BaseAdapter) Server() models.ArchiveServer {
	return b.server
}
