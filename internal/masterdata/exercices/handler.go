package exercices

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/pacioli-erp/pacioli/internal/platform/httpx"
)

// Handler serves fiscal period endpoints.
type Handler struct {
	logger   *slog.Logger
	repo     Repository
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, repo Repository) *Handler {
	return &Handler{logger: logger, repo: repo, validate: validator.New()}
}

// MountRoutes registers HTTP routes for the exercices module.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/exercices", h.List)
	r.Get("/exercices/{id}", h.Get)
	r.Post("/exercices", h.Create)
	r.Post("/exercices/{id}/close", h.Close)
	r.Post("/exercices/{id}/reopen", h.Reopen)
}

type createPayload struct {
	ClientID  int64  `json:"client_id" validate:"required"`
	Label     string `json:"label" validate:"required,max=100"`
	DateStart string `json:"date_start" validate:"required"`
	DateEnd   string `json:"date_end" validate:"required"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	clientID, _ := strconv.ParseInt(r.URL.Query().Get("client_id"), 10, 64)
	if clientID == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "client_id is required")
		return
	}
	out, err := h.repo.ListByClient(r.Context(), clientID)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"exercices": out})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid exercice id")
		return
	}
	e, err := h.repo.Get(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, e)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var payload createPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	start, err1 := time.Parse("2006-01-02", payload.DateStart)
	end, err2 := time.Parse("2006-01-02", payload.DateEnd)
	if err1 != nil || err2 != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "dates must be yyyy-mm-dd")
		return
	}
	if end.Before(start) {
		h.fail(w, ErrInvalidRange)
		return
	}
	overlap, err := h.repo.Overlapping(r.Context(), payload.ClientID, start, end)
	if err != nil {
		h.fail(w, err)
		return
	}
	if overlap {
		h.fail(w, ErrOverlap)
		return
	}
	e, err := h.repo.Create(r.Context(), Exercice{
		ClientID:  payload.ClientID,
		Label:     payload.Label,
		DateStart: start,
		DateEnd:   end,
		Status:    StatusOpen,
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, e)
}

func (h *Handler) Close(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, StatusClosed)
}

func (h *Handler) Reopen(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, StatusOpen)
}

func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request, status Status) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid exercice id")
		return
	}
	if err := h.repo.SetStatus(r.Context(), id, status); err != nil {
		h.fail(w, err)
		return
	}
	e, err := h.repo.Get(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, e)
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidRange), errors.Is(err, ErrOverlap):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("exercices request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
