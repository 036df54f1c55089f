package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/otcheredev/ris-study-browser/internal/adapters"
	"github.com/otcheredev/ris-study-browser/internal/browse"
	"github.com/otcheredev/ris-study-browser/internal/federation"
	"github.com/otcheredev/ris-study-browser/internal/models"
)

// fakeArchiveRepository serves a static active-server directory
type fakeArchiveRepository struct {
	active []models.ArchiveServer

	statusCalls  int
	lastStatusID uuid.UUID
	lastStatus   *models.ConnectionStatus
}

func (f *fakeArchiveRepository) Create(ctx context.Context, server *models.ArchiveServer) error {
	return nil
}

func (f *fakeArchiveRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ArchiveServer, error) {
	for i := range f.active {
		if f.active[i].ID == id {
			return &f.active[i], nil
		}
	}
	return nil, errors.New("not found")
}

func (f *fakeArchiveRepository) List(ctx context.Context) ([]models.ArchiveServer, error) {
	return f.active, nil
}

func (f *fakeArchiveRepository) ListActive(ctx context.Context) ([]models.ArchiveServer, error) {
	return f.active, nil
}

func (f *fakeArchiveRepository) Update(ctx context.Context, server *models.ArchiveServer) error {
	return nil
}

func (f *fakeArchiveRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	return nil
}

func (f *fakeArchiveRepository) UpdateConnectionStatus(ctx context.Context, id uuid.UUID, status *models.ConnectionStatus) error {
	f.statusCalls++
	f.lastStatusID = id
	f.lastStatus = status
	return nil
}

// scriptedAdapter returns a fixed result set for one archive
type scriptedAdapter struct {
	studies []models.Study
	err     error
}

func (a *scriptedAdapter) SearchStudies(ctx context.Context, criteria models.SearchCriteria) ([]models.Study, error) {
	return a.studies, a.err
}

func (a *scriptedAdapter) TestConnection(ctx context.Context) (*models.ConnectionStatus, error) {
	return &models.ConnectionStatus{IsConnected: true}, nil
}

func (a *scriptedAdapter) Close() error             { return nil }
func (a *scriptedAdapter) Type() models.ArchiveType { return models.ArchiveTypeDICOMWeb }

// scriptedProvider maps server ids onto scripted adapters
type scriptedProvider struct {
	adapters map[uuid.UUID]*scriptedAdapter
}

func (p *scriptedProvider) GetAdapter(server models.ArchiveServer) (adapters.ArchiveAdapter, error) {
	adapter, ok := p.adapters[server.ID]
	if !ok {
		return nil, errors.New("no adapter for server")
	}
	return adapter, nil
}

func newStudyServiceForTest(t *testing.T, provider *scriptedProvider, active []models.ArchiveServer, regRepo *fakeRegistrationRepository) (*StudyService, *browse.SessionManager) {
	t.Helper()
	sessions := browse.NewSessionManager(30 * time.Minute)
	t.Cleanup(func() { sessions.Close() })

	coordinator := federation.NewCoordinator(provider, time.Second)
	service := NewStudyService(&fakeArchiveRepository{active: active}, regRepo, coordinator, sessions, nil, 0, 100)
	return service, sessions
}

func TestSearchEnrichesRegistrationStatus(t *testing.T) {
	server := models.ArchiveServer{ID: uuid.New(), Name: "Alpha PACS", IsActive: true}
	regID := uuid.New()

	provider := &scriptedProvider{adapters: map[uuid.UUID]*scriptedAdapter{
		server.ID: {studies: []models.Study{
			{StudyInstanceUID: "1.1", PatientID: "S1"},
			{StudyInstanceUID: "1.2", PatientID: "S2"},
		}},
	}}
	regRepo := &fakeRegistrationRepository{
		refs: map[string]models.RegistrationRef{"1.2": {RegistrationID: regID}},
	}

	service, _ := newStudyServiceForTest(t, provider, []models.ArchiveServer{server}, regRepo)

	session, err := service.OpenSession(context.Background())
	if err != nil {
		t.Fatalf("OpenSession failed: %v", err)
	}

	summary, err := service.Search(context.Background(), session, models.SearchCriteria{PatientName: "Tan"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if summary.ServersSearched != 1 || summary.TotalStudies != 2 {
		t.Errorf("Unexpected summary: %+v", summary)
	}
	if regRepo.findCalls != 1 {
		t.Errorf("Expected one batch status lookup, got %d", regRepo.findCalls)
	}

	view := session.View()
	for _, study := range view.Studies {
		switch study.StudyInstanceUID {
		case "1.1":
			if study.IsRegistered {
				t.Error("Study 1.1 should not be registered")
			}
		case "1.2":
			if !study.IsRegistered || study.RegistrationID == nil || *study.RegistrationID != regID {
				t.Errorf("Study 1.2 not enriched: %+v", study)
			}
		}
	}
}

func TestSearchBatchesStatusLookup(t *testing.T) {
	server := models.ArchiveServer{ID: uuid.New(), Name: "Alpha"}
	provider := &scriptedProvider{adapters: map[uuid.UUID]*scriptedAdapter{
		server.ID: {studies: []models.Study{
			{StudyInstanceUID: "1.1"},
			{StudyInstanceUID: "1.1"}, // cross-copy of the same study
			{StudyInstanceUID: "1.2"},
			{StudyInstanceUID: ""}, // blank UID never reaches the lookup
		}},
	}}
	regRepo := &fakeRegistrationRepository{}

	service, _ := newStudyServiceForTest(t, provider, []models.ArchiveServer{server}, regRepo)
	session, _ := service.OpenSession(context.Background())

	if _, err := service.Search(context.Background(), session, models.SearchCriteria{}); err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if regRepo.findCalls != 1 {
		t.Fatalf("Expected exactly one lookup, got %d", regRepo.findCalls)
	}
	if len(regRepo.lastUIDs) != 2 {
		t.Errorf("Expected 2 deduplicated non-blank UIDs, got %v", regRepo.lastUIDs)
	}
}

func TestSearchEmptyRoundSkipsStatusLookup(t *testing.T) {
	server := models.ArchiveServer{ID: uuid.New(), Name: "Alpha"}
	provider := &scriptedProvider{adapters: map[uuid.UUID]*scriptedAdapter{
		server.ID: {},
	}}
	regRepo := &fakeRegistrationRepository{}

	service, _ := newStudyServiceForTest(t, provider, []models.ArchiveServer{server}, regRepo)
	session, _ := service.OpenSession(context.Background())

	summary, err := service.Search(context.Background(), session, models.SearchCriteria{})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if summary.TotalStudies != 0 {
		t.Errorf("Expected an empty round, got %d studies", summary.TotalStudies)
	}
	if regRepo.findCalls != 0 {
		t.Errorf("Empty round must not touch the system-of-record, got %d calls", regRepo.findCalls)
	}
}

func TestSearchDegradedStatusResolution(t *testing.T) {
	// A failed status lookup degrades to "nothing registered" instead of
	// failing the round.
	server := models.ArchiveServer{ID: uuid.New(), Name: "Alpha"}
	provider := &scriptedProvider{adapters: map[uuid.UUID]*scriptedAdapter{
		server.ID: {studies: []models.Study{{StudyInstanceUID: "1.1"}}},
	}}
	regRepo := &fakeRegistrationRepository{findErr: errors.New("connection refused")}

	service, _ := newStudyServiceForTest(t, provider, []models.ArchiveServer{server}, regRepo)
	session, _ := service.OpenSession(context.Background())

	summary, err := service.Search(context.Background(), session, models.SearchCriteria{})
	if err != nil {
		t.Fatalf("Search should survive a degraded status lookup: %v", err)
	}
	if summary.TotalStudies != 1 {
		t.Errorf("Expected the round to apply, got %d studies", summary.TotalStudies)
	}

	view := session.View()
	if view.Studies[0].IsRegistered {
		t.Error("Degraded resolution must leave studies unregistered")
	}
}

func TestSearchNoActiveServers(t *testing.T) {
	service, _ := newStudyServiceForTest(t, &scriptedProvider{}, nil, &fakeRegistrationRepository{})

	session, err := service.OpenSession(context.Background())
	if err != nil {
		t.Fatalf("OpenSession failed: %v", err)
	}

	_, err = service.Search(context.Background(), session, models.SearchCriteria{})
	if !errors.Is(err, federation.ErrNoActiveServers) {
		t.Errorf("Expected ErrNoActiveServers, got %v", err)
	}
}

func TestSearchPartialOutageSummary(t *testing.T) {
	alpha := models.ArchiveServer{ID: uuid.New(), Name: "Alpha"}
	beta := models.ArchiveServer{ID: uuid.New(), Name: "Beta"}
	provider := &scriptedProvider{adapters: map[uuid.UUID]*scriptedAdapter{
		alpha.ID: {studies: []models.Study{{StudyInstanceUID: "1.1"}}},
		beta.ID:  {err: errors.New("connection refused")},
	}}

	service, _ := newStudyServiceForTest(t, provider, []models.ArchiveServer{alpha, beta}, &fakeRegistrationRepository{})
	session, _ := service.OpenSession(context.Background())

	summary, err := service.Search(context.Background(), session, models.SearchCriteria{})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if summary.ServersSearched != 1 {
		t.Errorf("ServersSearched = %d, want 1", summary.ServersSearched)
	}
	if len(summary.PerServerErrors) != 1 {
		t.Errorf("Expected 1 per-server error in the summary, got %v", summary.PerServerErrors)
	}
	if summary.TotalStudies != 1 {
		t.Errorf("Expected the healthy server's study, got %d", summary.TotalStudies)
	}
}

func TestGetSession(t *testing.T) {
	service, _ := newStudyServiceForTest(t, &scriptedProvider{}, nil, &fakeRegistrationRepository{})

	session, err := service.OpenSession(context.Background())
	if err != nil {
		t.Fatalf("OpenSession failed: %v", err)
	}

	got, ok := service.GetSession(session.ID)
	if !ok || got.ID != session.ID {
		t.Error("Expected to retrieve the opened session")
	}
	if _, ok := service.GetSession(uuid.New()); ok {
		t.Error("Expected miss for unknown session id")
	}
}
