package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/wavecms/mediastore/pkg/mediastore/dispatch"
	"github.com/wavecms/mediastore/pkg/mediastore/gc"
	"github.com/wavecms/mediastore/pkg/mediastore/usage"
)

// JobResponse acknowledges an accepted background job.
type JobResponse struct {
	JobID  string `json:"job_id"`
	Job    string `json:"job"`
	Status string `json:"status"`
}

// AdminHandler exposes maintenance operations. Both endpoints enqueue
// work and answer 202; results land in the logs and the catalog.
type AdminHandler struct {
	dispatcher dispatch.Dispatcher
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(dispatcher dispatch.Dispatcher) *AdminHandler {
	return &AdminHandler{dispatcher: dispatcher}
}

// Routes returns the admin routes.
func (h *AdminHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/usage/recompute", h.RecomputeUsage)
	r.Post("/media/clean", h.CleanUnused)

	return r
}

// RecomputeUsage enqueues a full usage-cache recompute.
func (h *AdminHandler) RecomputeUsage(w http.ResponseWriter, r *http.Request) {
	h.enqueue(w, r, usage.JobRecomputeAll)
}

// CleanUnused enqueues a recompute-then-delete cleanup run.
func (h *AdminHandler) CleanUnused(w http.ResponseWriter, r *http.Request) {
	h.enqueue(w, r, gc.JobCleanUnused)
}

func (h *AdminHandler) enqueue(w http.ResponseWriter, r *http.Request, name string) {
	job := dispatch.NewJob(name, nil)
	if err := h.dispatcher.Enqueue(r.Context(), job); err != nil {
		slog.Error("failed to enqueue admin job", "job", name, "error", err)
		http.Error(w, "failed to enqueue job", http.StatusInternalServerError)
		return
	}

	slog.Info("admin job enqueued", "job", name, "job_id", job.ID)
	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, JobResponse{
		JobID:  job.ID.String(),
		Job:    name,
		Status: "queued",
	})
}
