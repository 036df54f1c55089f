package federation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/otcheredev/ris-study-browser/internal/adapters"
	"github.com/otcheredev/ris-study-browser/internal/models"
	"github.com/rs/zerolog/log"
)

// ErrNoActiveServers distinguishes "there was nothing to search" from a
// round that ran and matched zero studies
var ErrNoActiveServers = errors.New("no active archive servers configured")

// AdapterProvider yields an adapter for an archive server descriptor
type AdapterProvider interface {
	GetAdapter(server models.ArchiveServer) (adapters.ArchiveAdapter, error)
}

// Coordinator fans a search out to every active archive server in parallel
// and merges the per-server outcomes into one federation result. A failing
// or slow server contributes an error entry, never a failed round.
type Coordinator struct {
	provider AdapterProvider
	timeout  time.Duration
}

// NewCoordinator creates a federation coordinator. timeout bounds each
// per-server query independently.
func NewCoordinator(provider AdapterProvider, timeout time.Duration) *Coordinator {
	return &Coordinator{
		provider: provider,
		timeout:  timeout,
	}
}

// serverOutcome is one settled per-server task
type serverOutcome struct {
	server  models.ArchiveServer
	studies []models.Study
	err     error
}

// SearchAll queries all given servers concurrently and waits for every task
// to settle. Studies are tagged with their origin server at merge time and
// de-duplicated by study instance UID within each server's result set; the
// same UID coming from two different servers stays two distinct records.
func (c *Coordinator) SearchAll(ctx context.Context, criteria models.SearchCriteria, servers []models.ArchiveServer) (models.FederationResult, error) {
	result := models.FederationResult{
		PerServerErrors: make(map[string]string),
	}

	if len(servers) == 0 {
		return result, ErrNoActiveServers
	}

	outcomes := make([]serverOutcome, len(servers))

	var wg sync.WaitGroup
	for i, server := range servers {
		wg.Add(1)
		go func(i int, server models.ArchiveServer) {
			defer wg.Done()
			outcomes[i] = c.searchOne(ctx, criteria, server)
		}(i, server)
	}
	wg.Wait()

	// Merge in configured server order so the merged ordering is stable
	// across rounds with identical inputs.
	for _, out := range outcomes {
		if out.err != nil {
			log.Warn().
				Err(out.err).
				Str("archive_id", out.server.ID.String()).
				Str("archive", out.server.Name).
				Msg("Archive search failed")
			result.PerServerErrors[out.server.ID.String()] = out.err.Error()
			continue
		}

		result.ServersSearched++

		seen := make(map[string]struct{}, len(out.studies))
		for _, study := range out.studies {
			if study.StudyInstanceUID != "" {
				if _, dup := seen[study.StudyInstanceUID]; dup {
					continue
				}
				seen[study.StudyInstanceUID] = struct{}{}
			}

			study.ArchiveID = out.server.ID.String()
			study.ArchiveName = out.server.Name
			if study.InstitutionName == "" {
				// Keep the clinic facet usable for archives that never
				// populate the institution attribute.
				study.InstitutionName = out.server.Name
			}
			result.Studies = append(result.Studies, study)
		}
	}

	return result, nil
}

// searchOne runs a single server's query under its own timeout
func (c *Coordinator) searchOne(ctx context.Context, criteria models.SearchCriteria, server models.ArchiveServer) serverOutcome {
	adapter, err := c.provider.GetAdapter(server)
	if err != nil {
		return serverOutcome{server: server, err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	studies, err := adapter.SearchStudies(ctx, criteria)
	return serverOutcome{server: server, studies: studies, err: err}
}
