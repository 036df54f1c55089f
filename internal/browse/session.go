package browse

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/otcheredev/ris-study-browser/internal/models"
)

// RoundSummary describes the last federation round applied to a session
type RoundSummary struct {
	ServersSearched int               `json:"servers_searched"`
	PerServerErrors map[string]string `json:"per_server_errors,omitempty"`
	TotalStudies    int               `json:"total_studies"`
}

// Session is one user's browsing state: the active-server snapshot taken at
// session start, the most recent merged result set, the append-only facet
// index, the filter predicate set, and the page cursor. All methods are safe
// for concurrent use.
type Session struct {
	ID uuid.UUID

	mu       sync.Mutex
	servers  []models.ArchiveServer
	studies  []models.Study
	facets   *FacetIndex
	filters  FilterSet
	page     int
	pageSize int
	summary  RoundSummary

	issued   uint64 // rounds started
	applied  uint64 // newest round merged in
	lastUsed time.Time
}

// NewSession opens a browsing session over a snapshot of the active archive
// directory. Directory changes after this point are not live-reloaded.
func NewSession(servers []models.ArchiveServer) *Session {
	return &Session{
		ID:       uuid.New(),
		servers:  servers,
		facets:   NewFacetIndex(),
		page:     1,
		pageSize: DefaultPageSize,
		lastUsed: time.Now(),
	}
}

// Servers returns the session's active-server snapshot
func (s *Session) Servers() []models.ArchiveServer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastUsed = time.Now()
	return s.servers
}

// BeginRound reserves a generation number for a new federation round.
// Rounds are applied last-request-wins: a round that finishes after a newer
// one has been applied is discarded.
func (s *Session) BeginRound() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued++
	return s.issued
}

// ApplyRound merges a completed round into the session unless a newer round
// already landed. Reports whether the round was applied. The merged set is
// replaced wholesale; facet options accumulate and the page resets to 1.
func (s *Session) ApplyRound(generation uint64, result models.FederationResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastUsed = time.Now()

	if generation <= s.applied {
		return false
	}
	s.applied = generation

	s.studies = result.Studies
	s.facets.Add(result.Studies)
	s.page = 1
	s.summary = RoundSummary{
		ServersSearched: result.ServersSearched,
		PerServerErrors: result.PerServerErrors,
		TotalStudies:    len(result.Studies),
	}
	return true
}

// Summary returns the last applied round's summary
func (s *Session) Summary() RoundSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary
}

// SetFilters replaces the filter predicate set. Any filter change returns
// the user to page 1 of the new result set.
func (s *Session) SetFilters(filters FilterSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastUsed = time.Now()
	s.filters = filters
	s.page = 1
}

// Filters returns the current filter predicate set
func (s *Session) Filters() FilterSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filters
}

// SetPage moves the page cursor; bounds are enforced at view time
func (s *Session) SetPage(page int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastUsed = time.Now()
	if page >= 1 {
		s.page = page
	}
}

// SetPageSize changes the page size and returns to page 1. Writing the
// current size back is a no-op and keeps the cursor, so a client echoing
// page_size on every request can still page forward.
func (s *Session) SetPageSize(size int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastUsed = time.Now()
	if size < 1 || size == s.pageSize {
		return
	}
	s.pageSize = size
	s.page = 1
}

// View computes the current page of the filtered subset. If the active page
// fell outside the recomputed bounds it is clamped to 1 and the session
// cursor updated accordingly.
func (s *Session) View() PageView {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastUsed = time.Now()

	filtered := s.filters.Apply(s.studies)
	view := Paginate(filtered, s.page, s.pageSize)
	s.page = view.Page
	return view
}

// Facets returns the accumulated facet option sets
func (s *Session) Facets() FacetOptions {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastUsed = time.Now()
	return s.facets.Options()
}

// FindStudy looks a study up in the merged set by its study instance UID
func (s *Session) FindStudy(studyUID string) (models.Study, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, study := range s.studies {
		if study.StudyInstanceUID == studyUID {
			return study, true
		}
	}
	return models.Study{}, false
}

// MarkImported patches every merged record carrying the study UID with its
// registration, so the UI reflects the import without a full re-query
func (s *Session) MarkImported(studyUID string, registrationID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastUsed = time.Now()
	for i := range s.studies {
		if s.studies[i].StudyInstanceUID == studyUID {
			s.studies[i].IsRegistered = true
			id := registrationID
			s.studies[i].RegistrationID = &id
		}
	}
}

// idle reports how long the session has been untouched
func (s *Session) idle(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastUsed)
}

// SessionManager owns the live browse sessions and evicts idle ones
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
	ttl      time.Duration
	done     chan struct{}
}

// NewSessionManager creates a session manager evicting sessions idle
// longer than ttl
func NewSessionManager(ttl time.Duration) *SessionManager {
	m := &SessionManager{
		sessions: make(map[uuid.UUID]*Session),
		ttl:      ttl,
		done:     make(chan struct{}),
	}

	go m.cleanup()

	return m
}

// Create opens and registers a new session
func (m *SessionManager) Create(servers []models.ArchiveServer) *Session {
	session := NewSession(servers)

	m.mu.Lock()
	m.sessions[session.ID] = session
	m.mu.Unlock()

	return session
}

// Get returns a live session by id
func (m *SessionManager) Get(id uuid.UUID) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[id]
	return session, ok
}

// cleanup periodically evicts idle sessions
func (m *SessionManager) cleanup() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			m.mu.Lock()
			for id, session := range m.sessions {
				if session.idle(now) > m.ttl {
					delete(m.sessions, id)
				}
			}
			m.mu.Unlock()
		case <-m.done:
			return
		}
	}
}

// Close stops the eviction loop
func (m *SessionManager) Close() error {
	close(m.done)
	return nil
}
