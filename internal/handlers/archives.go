package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/otcheredev/ris-study-browser/internal/models"
	"github.com/otcheredev/ris-study-browser/internal/services"
	"github.com/rs/zerolog/log"
)

// ArchiveHandler serves archive server directory management
type ArchiveHandler struct {
	archiveService *services.ArchiveService
}

// NewArchiveHandler creates a new archive handler
func NewArchiveHandler(archiveService *services.ArchiveService) *ArchiveHandler {
	return &ArchiveHandler{archiveService: archiveService}
}

// CreateArchive registers a new archive server
func (h *ArchiveHandler) CreateArchive(w http.ResponseWriter, r *http.Request) {
	var req models.ArchiveServerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Name == "" || req.Endpoint == "" || req.Port == 0 || req.Type == "" {
		http.Error(w, "name, type, endpoint and port are required", http.StatusBadRequest)
		return
	}

	server, err := h.archiveService.Create(r.Context(), &req)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create archive server")
		http.Error(w, "Failed to create archive server", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(server)
}

// ListArchives retrieves all archive servers
func (h *ArchiveHandler) ListArchives(w http.ResponseWriter, r *http.Request) {
	servers, err := h.archiveService.List(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list archive servers")
		http.Error(w, "Failed to list archive servers", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(servers)
}

// GetArchive retrieves one archive server
func (h *ArchiveHandler) GetArchive(w http.ResponseWriter, r *http.Request) {
	id, ok := h.archiveID(w, r)
	if !ok {
		return
	}

	server, err := h.archiveService.Get(r.Context(), id)
	if err != nil {
		log.Error().Err(err).Str("archive_id", id.String()).Msg("Failed to get archive server")
		http.Error(w, "Archive server not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(server)
}

// UpdateArchive edits an archive server descriptor
func (h *ArchiveHandler) UpdateArchive(w http.ResponseWriter, r *http.Request) {
	id, ok := h.archiveID(w, r)
	if !ok {
		return
	}

	var req models.ArchiveServerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	server, err := h.archiveService.Update(r.Context(), id, &req)
	if err != nil {
		log.Error().Err(err).Str("archive_id", id.String()).Msg("Failed to update archive server")
		http.Error(w, "Failed to update archive server", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(server)
}

// DeactivateArchive removes an archive server from future federation rounds
func (h *ArchiveHandler) DeactivateArchive(w http.ResponseWriter, r *http.Request) {
	id, ok := h.archiveID(w, r)
	if !ok {
		return
	}

	if err := h.archiveService.Deactivate(r.Context(), id); err != nil {
		log.Error().Err(err).Str("archive_id", id.String()).Msg("Failed to deactivate archive server")
		http.Error(w, "Failed to deactivate archive server", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// TestConnection probes an archive server
func (h *ArchiveHandler) TestConnection(w http.ResponseWriter, r *http.Request) {
	var req models.ConnectionTestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	status, err := h.archiveService.TestConnection(r.Context(), &req)
	if err != nil {
		log.Warn().Err(err).Msg("Connection test failed")
		// Still return the status with error info
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

func (h *ArchiveHandler) archiveID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid archive ID", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}
