package journals

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/pacioli-erp/pacioli/internal/platform/httpx"
)

// Handler serves journal endpoints.
type Handler struct {
	logger   *slog.Logger
	repo     Repository
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, repo Repository) *Handler {
	return &Handler{logger: logger, repo: repo, validate: validator.New()}
}

// MountRoutes registers HTTP routes for the journals module.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/journals", h.List)
	r.Post("/journals", h.Create)
	r.Patch("/journals/{id}", h.Rename)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	clientID, _ := strconv.ParseInt(r.URL.Query().Get("client_id"), 10, 64)
	if clientID == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "client_id is required")
		return
	}
	out, err := h.repo.List(r.Context(), clientID)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"journals": out})
}

type journalPayload struct {
	ClientID int64  `json:"client_id" validate:"required"`
	Code     string `json:"jnl" validate:"required,min=1,max=10"`
	Label    string `json:"jnl_lib" validate:"max=100"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var payload journalPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	code := strings.ToUpper(strings.TrimSpace(payload.Code))
	label := strings.TrimSpace(payload.Label)
	if label == "" {
		label = code
	}
	j, err := h.repo.Create(r.Context(), Journal{ClientID: payload.ClientID, Code: code, Label: label})
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, j)
}

func (h *Handler) Rename(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid journal id")
		return
	}
	var body struct {
		Label string `json:"jnl_lib"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil || strings.TrimSpace(body.Label) == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "jnl_lib is required")
		return
	}
	if err := h.repo.Rename(r.Context(), id, strings.TrimSpace(body.Label)); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicate):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	default:
		h.logger.Error("journals request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
