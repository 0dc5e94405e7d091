package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"eventcraft/internal/generation"
	"eventcraft/internal/models"
)

// List paging bounds, matching the store's.
const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// CreateGeneration handles POST /api/v1/generations.
func (a *API) CreateGeneration(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req generation.ImageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := a.gens.GenerateImage(r.Context(), user, req)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// generationList is the body of GET /api/v1/generations.
type generationList struct {
	Generations []models.Generation `json:"generations"`
	Total       int                 `json:"total"`
	Limit       int                 `json:"limit"`
	Offset      int                 `json:"offset"`
}

// ListGenerations handles GET /api/v1/generations. Query parameters:
// status, kind, limit, offset and, for admins, all=1.
func (a *API) ListGenerations(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	opts := generation.ListOptions{
		Status:   q.Get("status"),
		Kind:     q.Get("kind"),
		AllUsers: q.Get("all") == "1" || q.Get("all") == "true",
	}
	switch opts.Status {
	case "", models.StatusCompleted, models.StatusFailed:
	default:
		writeError(w, http.StatusBadRequest, "status must be completed or failed")
		return
	}
	switch opts.Kind {
	case "", models.KindImage, models.KindSlide:
	default:
		writeError(w, http.StatusBadRequest, "kind must be image or slide")
		return
	}

	var err error
	if opts.Limit, err = queryInt(r, "limit", defaultPageSize); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if opts.Offset, err = queryInt(r, "offset", 0); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if opts.Limit == 0 || opts.Limit > maxPageSize {
		opts.Limit = defaultPageSize
	}

	gens, total, err := a.gens.List(r.Context(), user, opts)
	if err != nil {
		fail(w, r, err)
		return
	}
	if gens == nil {
		gens = []models.Generation{}
	}
	writeJSON(w, http.StatusOK, generationList{
		Generations: gens,
		Total:       total,
		Limit:       opts.Limit,
		Offset:      opts.Offset,
	})
}

// GetGeneration handles GET /api/v1/generations/{id}.
func (a *API) GetGeneration(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	g, err := a.gens.Get(r.Context(), user, id)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// DeleteGeneration handles DELETE /api/v1/generations/{id}.
func (a *API) DeleteGeneration(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if err := a.gens.Delete(r.Context(), user, id); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateCarousel handles POST /api/v1/carousels.
func (a *API) CreateCarousel(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req generation.CarouselRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := a.gens.GenerateCarousel(r.Context(), user, req)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// GetCarousel handles GET /api/v1/carousels/{id}.
func (a *API) GetCarousel(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	c, err := a.gens.GetCarousel(r.Context(), user, id)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}
