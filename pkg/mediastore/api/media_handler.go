// Package api exposes the media catalog over HTTP using chi.
package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/wavecms/mediastore/pkg/mediastore"
	"github.com/wavecms/mediastore/pkg/mediastore/scan"
)

// maxUploadMemory bounds the in-memory part of multipart parsing; larger
// files spill to disk.
const maxUploadMemory = 32 << 20

// MediaResponse is the response body for a media record.
type MediaResponse struct {
	ID          string    `json:"id"`
	ContentHash string    `json:"content_hash"`
	StorageKey  string    `json:"storage_key"`
	Title       string    `json:"title"`
	UploadedAt  time.Time `json:"uploaded_at"`
	IsUsed      bool      `json:"is_used"`
	URL         string    `json:"url"`
}

// UsageResponse is the response body for a usage listing.
type UsageResponse struct {
	MediaID string             `json:"media_id"`
	IsUsed  bool               `json:"is_used"`
	Usage   []mediastore.Usage `json:"usage"`
}

// MediaHandler handles HTTP requests for media records.
type MediaHandler struct {
	service mediastore.Service
	scanner *scan.Scanner
}

// NewMediaHandler creates a new media handler.
func NewMediaHandler(service mediastore.Service, scanner *scan.Scanner) *MediaHandler {
	return &MediaHandler{service: service, scanner: scanner}
}

// Routes returns the routes for media records.
func (h *MediaHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.UploadMedia)
	r.Get("/", h.ListMedia)
	r.Get("/{id}", h.GetMedia)
	r.Put("/{id}/file", h.ReplaceFile)
	r.Put("/{id}/title", h.UpdateTitle)
	r.Delete("/{id}", h.DeleteMedia)
	r.Get("/{id}/usage", h.GetUsage)

	return r
}

// UploadMedia ingests a multipart upload. An upload whose content
// already exists answers 200 with the existing record instead of 201.
func (h *MediaHandler) UploadMedia(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		http.Error(w, "invalid multipart request", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing 'file' part", http.StatusBadRequest)
		return
	}
	defer file.Close()

	record, created, err := h.service.Ingest(r.Context(), mediastore.IngestRequest{
		Reader:   file,
		FileName: header.Filename,
		Title:    r.FormValue("title"),
	})
	if err != nil {
		if errors.Is(err, mediastore.ErrEmptyContent) {
			http.Error(w, "empty upload", http.StatusBadRequest)
			return
		}
		slog.Error("media upload failed", "filename", header.Filename, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	slog.Info("media uploaded", "media_id", record.ID, "created", created)
	render.Status(r, status)
	render.JSON(w, r, h.toResponse(record))
}

// GetMedia retrieves a media record by ID.
func (h *MediaHandler) GetMedia(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	record, err := h.service.GetMedia(r.Context(), id)
	if err != nil {
		h.renderError(w, "get media", id, err)
		return
	}
	render.JSON(w, r, h.toResponse(record))
}

// ListMedia lists media records, optionally filtered by the cached usage
// flag via ?used=true|false.
func (h *MediaHandler) ListMedia(w http.ResponseWriter, r *http.Request) {
	var filters mediastore.MediaListFilters

	if usedStr := r.URL.Query().Get("used"); usedStr != "" {
		used, err := strconv.ParseBool(usedStr)
		if err != nil {
			http.Error(w, "invalid 'used' parameter", http.StatusBadRequest)
			return
		}
		filters.Used = mediastore.UsedFilter(used)
	}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 0 {
			http.Error(w, "invalid 'limit' parameter", http.StatusBadRequest)
			return
		}
		filters.Limit = &limit
	}
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil || offset < 0 {
			http.Error(w, "invalid 'offset' parameter", http.StatusBadRequest)
			return
		}
		filters.Offset = &offset
	}

	records, err := h.service.ListMedia(r.Context(), filters)
	if err != nil {
		slog.Error("media list failed", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	responses := make([]MediaResponse, 0, len(records))
	for _, record := range records {
		responses = append(responses, h.toResponse(record))
	}
	render.JSON(w, r, responses)
}

// ReplaceFile swaps the blob behind an existing record while keeping its
// identity.
func (h *MediaHandler) ReplaceFile(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		http.Error(w, "invalid multipart request", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing 'file' part", http.StatusBadRequest)
		return
	}
	defer file.Close()

	record, err := h.service.ReplaceFile(r.Context(), id, file, header.Filename)
	if err != nil {
		if errors.Is(err, mediastore.ErrEmptyContent) {
			http.Error(w, "empty upload", http.StatusBadRequest)
			return
		}
		h.renderError(w, "replace file", id, err)
		return
	}

	slog.Info("media file replaced", "media_id", id, "record_id", record.ID)
	render.JSON(w, r, h.toResponse(record))
}

// UpdateTitleRequest is the request body for a title update.
type UpdateTitleRequest struct {
	Title string `json:"title"`
}

// Bind implements render.Binder.
func (req *UpdateTitleRequest) Bind(r *http.Request) error {
	return nil
}

// UpdateTitle sets the display title of a record.
func (h *MediaHandler) UpdateTitle(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	var req UpdateTitleRequest
	if err := render.Bind(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	record, err := h.service.UpdateTitle(r.Context(), id, req.Title)
	if err != nil {
		h.renderError(w, "update title", id, err)
		return
	}
	render.JSON(w, r, h.toResponse(record))
}

// DeleteMedia deletes a record and its blob regardless of usage. This is
// the operator override; routine cleanup runs through the admin routes.
func (h *MediaHandler) DeleteMedia(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteMedia(r.Context(), id); err != nil {
		slog.Error("media delete failed", "media_id", id, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	slog.Info("media deleted", "media_id", id)
	render.NoContent(w, r)
}

// GetUsage lists every place the record is referenced from, computed
// live rather than from the cached flag.
func (h *MediaHandler) GetUsage(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	usage, err := h.scanner.UsageDetails(r.Context(), id)
	if err != nil {
		h.renderError(w, "get usage", id, err)
		return
	}

	render.JSON(w, r, UsageResponse{
		MediaID: id.String(),
		IsUsed:  len(usage) > 0,
		Usage:   usage,
	})
}

func (h *MediaHandler) toResponse(record *mediastore.MediaRecord) MediaResponse {
	return MediaResponse{
		ID:          record.ID.String(),
		ContentHash: record.ContentHash,
		StorageKey:  record.StorageKey,
		Title:       record.Title,
		UploadedAt:  record.UploadedAt,
		IsUsed:      record.IsUsedCached,
		URL:         h.service.URLFor(record),
	}
}

func (h *MediaHandler) parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	idStr := chi.URLParam(r, "id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		http.Error(w, "invalid media ID", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func (h *MediaHandler) renderError(w http.ResponseWriter, op string, id uuid.UUID, err error) {
	if errors.Is(err, mediastore.ErrMediaNotFound) {
		http.Error(w, "media not found", http.StatusNotFound)
		return
	}
	slog.Error("media request failed", "op", op, "media_id", id, "error", err)
	http.Error(w, err.Error(), http.StatusInternalServerError)
}
