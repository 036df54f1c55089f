package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/otcheredev/ris-study-browser/internal/browse"
	"github.com/otcheredev/ris-study-browser/internal/federation"
	"github.com/otcheredev/ris-study-browser/internal/middleware"
	"github.com/otcheredev/ris-study-browser/internal/models"
	"github.com/otcheredev/ris-study-browser/internal/services"
	"github.com/rs/zerolog/log"
)

// SessionHandler serves the browse flow: sessions, searches, filters,
// paging, facets, and imports
type SessionHandler struct {
	studyService  *services.StudyService
	importService *services.ImportService
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(studyService *services.StudyService, importService *services.ImportService) *SessionHandler {
	return &SessionHandler{
		studyService:  studyService,
		importService: importService,
	}
}

type sessionResponse struct {
	SessionID string                 `json:"session_id"`
	Servers   []models.ArchiveServer `json:"servers"`
}

type searchResponse struct {
	browse.RoundSummary
	NoActiveServers bool   `json:"no_active_servers,omitempty"`
	Message         string `json:"message,omitempty"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

// CreateSession opens a browse session over the active archive directory
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.studyService.OpenSession(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to open browse session")
		http.Error(w, "Failed to open browse session", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(sessionResponse{
		SessionID: session.ID.String(),
		Servers:   session.Servers(),
	})
}

// Search runs a federation round for the session
func (h *SessionHandler) Search(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	var criteria models.SearchCriteria
	if err := json.NewDecoder(r.Body).Decode(&criteria); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	summary, err := h.studyService.Search(r.Context(), session, criteria)
	if err != nil {
		if errors.Is(err, federation.ErrNoActiveServers) {
			// Not the same as "search ran, zero matches": the caller shows
			// a different empty state for an unconfigured directory.
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(searchResponse{
				NoActiveServers: true,
				Message:         "no active archive servers configured",
			})
			return
		}
		log.Error().Err(err).Msg("Federation round failed")
		http.Error(w, "Search failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(searchResponse{RoundSummary: summary})
}

// GetStudies returns the current page of the filtered subset
func (h *SessionHandler) GetStudies(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	// Page size first: a size change resets the cursor, so applying the
	// page afterwards lets ?page=3&page_size=20 land on page 3.
	if sizeStr := r.URL.Query().Get("page_size"); sizeStr != "" {
		if size, err := strconv.Atoi(sizeStr); err == nil {
			session.SetPageSize(size)
		}
	}
	if pageStr := r.URL.Query().Get("page"); pageStr != "" {
		if page, err := strconv.Atoi(pageStr); err == nil {
			session.SetPage(page)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(session.View())
}

// SetFilters replaces the session's filter predicate set and returns the
// recomputed first page
func (h *SessionHandler) SetFilters(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	var filters browse.FilterSet
	if err := json.NewDecoder(r.Body).Decode(&filters); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	session.SetFilters(filters)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(session.View())
}

// GetFacets returns the session's accumulated facet option sets
func (h *SessionHandler) GetFacets(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(session.Facets())
}

// ImportStudy imports one study from the session's merged result set
func (h *SessionHandler) ImportStudy(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	user, ok := middleware.GetUser(r.Context())
	if !ok {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	var body struct {
		StudyInstanceUID string `json:"study_instance_uid"`
		CreatePatient    *bool  `json:"create_patient,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	req := models.ImportRequest{
		StudyInstanceUID: body.StudyInstanceUID,
		CreatePatient:    true,
	}
	if body.CreatePatient != nil {
		req.CreatePatient = *body.CreatePatient
	}

	record, err := h.importService.ImportStudy(r.Context(), user, session, req)
	if err != nil {
		h.writeImportError(w, body.StudyInstanceUID, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if !record.AlreadyImported {
		w.WriteHeader(http.StatusCreated)
	}
	json.NewEncoder(w).Encode(record)
}

// writeImportError maps import failures onto machine-distinguishable reasons
func (h *SessionHandler) writeImportError(w http.ResponseWriter, studyUID string, err error) {
	w.Header().Set("Content-Type", "application/json")

	var validationErr *services.ValidationError
	switch {
	case errors.Is(err, services.ErrPermissionDenied):
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(errorResponse{Error: err.Error(), Reason: "permission"})
	case errors.As(err, &validationErr):
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(errorResponse{Error: err.Error(), Reason: "validation"})
	default:
		log.Error().Err(err).Str("study_uid", studyUID).Msg("Import failed")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errorResponse{Error: "import failed", Reason: "storage"})
	}
}

// session resolves the {sessionID} route parameter to a live session
func (h *SessionHandler) session(w http.ResponseWriter, r *http.Request) (*browse.Session, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		http.Error(w, "Invalid session ID", http.StatusBadRequest)
		return nil, false
	}

	session, ok := h.studyService.GetSession(id)
	if !ok {
		http.Error(w, "Session not found or expired", http.StatusNotFound)
		return nil, false
	}

	return session, true
}
