package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/otcheredev/ris-study-browser/internal/browse"
	"github.com/otcheredev/ris-study-browser/internal/cache"
	"github.com/otcheredev/ris-study-browser/internal/federation"
	"github.com/otcheredev/ris-study-browser/internal/metrics"
	"github.com/otcheredev/ris-study-browser/internal/models"
	"github.com/otcheredev/ris-study-browser/internal/repository"
	"github.com/rs/zerolog/log"
)

// StudyService orchestrates the browse flow: session lifecycle, federation
// rounds, batch registration-status resolution, and the derived views.
type StudyService struct {
	archiveRepo  repository.ArchiveRepository
	regRepo      repository.RegistrationRepository
	coordinator  *federation.Coordinator
	sessions     *browse.SessionManager
	cache        cache.Cache
	cacheTTL     time.Duration
	defaultLimit int
}

// NewStudyService creates a new study service
func NewStudyService(
	archiveRepo repository.ArchiveRepository,
	regRepo repository.RegistrationRepository,
	coordinator *federation.Coordinator,
	sessions *browse.SessionManager,
	roundCache cache.Cache,
	cacheTTL time.Duration,
	defaultLimit int,
) *StudyService {
	return &StudyService{
		archiveRepo:  archiveRepo,
		regRepo:      regRepo,
		coordinator:  coordinator,
		sessions:     sessions,
		cache:        roundCache,
		cacheTTL:     cacheTTL,
		defaultLimit: defaultLimit,
	}
}

// OpenSession starts a browse session over a snapshot of the currently
// active archive directory
func (s *StudyService) OpenSession(ctx context.Context) (*browse.Session, error) {
	servers, err := s.archiveRepo.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	return s.sessions.Create(servers), nil
}

// GetSession returns a live session by id
func (s *StudyService) GetSession(id uuid.UUID) (*browse.Session, bool) {
	return s.sessions.Get(id)
}

// Search runs one federation round for the session and enriches the merged
// studies with their registration status in a single batch lookup. A round
// that completes after a newer one has been applied is discarded
// (last-request-wins); the returned summary always reflects the newest
// applied round. Returns federation.ErrNoActiveServers when the session's
// directory snapshot is empty.
func (s *StudyService) Search(ctx context.Context, session *browse.Session, criteria models.SearchCriteria) (browse.RoundSummary, error) {
	if criteria.Limit <= 0 {
		criteria.Limit = s.defaultLimit
	}

	servers := session.Servers()
	if len(servers) == 0 {
		return browse.RoundSummary{}, federation.ErrNoActiveServers
	}

	generation := session.BeginRound()

	result, err := s.runRound(ctx, criteria, servers)
	if err != nil {
		return browse.RoundSummary{}, err
	}

	metrics.FederationRounds.Inc()
	metrics.StudiesMerged.Observe(float64(len(result.Studies)))
	for serverID := range result.PerServerErrors {
		metrics.FederationServerErrors.WithLabelValues(serverID).Inc()
	}

	// Resolution runs after the round settles: it needs the complete UID set
	// to build one batch request. Always fresh, even for cached rounds.
	s.resolveRegistrations(ctx, result.Studies)

	if !session.ApplyRound(generation, result) {
		log.Debug().
			Uint64("generation", generation).
			Str("session_id", session.ID.String()).
			Msg("Discarded stale federation round")
	}

	return session.Summary(), nil
}

// runRound executes the fan-out, short-circuiting through the round cache
// when an identical round completed recently
func (s *StudyService) runRound(ctx context.Context, criteria models.SearchCriteria, servers []models.ArchiveServer) (models.FederationResult, error) {
	var key string
	if s.cache != nil {
		key = cache.RoundKey(criteria, servers)
		if data, err := s.cache.Get(ctx, key); err == nil {
			var cached models.FederationResult
			if err := json.Unmarshal(data, &cached); err == nil {
				return cached, nil
			}
		}
	}

	start := time.Now()
	result, err := s.coordinator.SearchAll(ctx, criteria, servers)
	if err != nil {
		return result, err
	}
	metrics.FederationRoundDuration.Observe(time.Since(start).Seconds())

	// Only fully clean rounds are cached; a round with per-server errors
	// should be retried against the archives, not replayed.
	if s.cache != nil && len(result.PerServerErrors) == 0 {
		if data, err := json.Marshal(result); err == nil {
			if err := s.cache.Set(ctx, key, data, s.cacheTTL); err != nil {
				log.Warn().Err(err).Msg("Failed to cache federation round")
			}
		}
	}

	return result, nil
}

// resolveRegistrations marks each study already present in the system-of-
// record. Blank study UIDs cannot be matched and stay unregistered without
// a lookup; an empty batch never touches the database. A failed resolution
// degrades to "nothing registered" so browsing keeps working.
func (s *StudyService) resolveRegistrations(ctx context.Context, studies []models.Study) {
	uids := make([]string, 0, len(studies))
	seen := make(map[string]struct{}, len(studies))
	for _, study := range studies {
		if study.StudyInstanceUID == "" {
			continue
		}
		if _, dup := seen[study.StudyInstanceUID]; dup {
			continue
		}
		seen[study.StudyInstanceUID] = struct{}{}
		uids = append(uids, study.StudyInstanceUID)
	}

	if len(uids) == 0 {
		return
	}

	refs, err := s.regRepo.FindByStudyUIDs(ctx, uids)
	if err != nil {
		log.Warn().Err(err).Msg("Registration status resolution degraded")
		return
	}

	for i := range studies {
		if ref, ok := refs[studies[i].StudyInstanceUID]; ok {
			studies[i].IsRegistered = true
			id := ref.RegistrationID
			studies[i].RegistrationID = &id
		}
	}
}
