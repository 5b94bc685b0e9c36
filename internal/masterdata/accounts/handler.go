package accounts

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

// Handler serves chart of accounts endpoints.
type Handler struct {
	logger   *slog.Logger
	repo     Repository
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, repo Repository) *Handler {
	return &Handler{logger: logger, repo: repo, validate: validator.New()}
}

// MountRoutes registers HTTP routes for the accounts module.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/accounts", h.List)
	r.Get("/accounts/suggest", h.Suggest)
	r.Post("/accounts", h.Create)
	r.Patch("/accounts/{id}", h.Rename)
	r.Delete("/accounts/{id}", h.Delete)
}

func clientID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(r.URL.Query().Get("client_id"), 10, 64)
	return id
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	cid := clientID(r)
	if cid == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "client_id is required")
		return
	}
	out, err := h.repo.List(r.Context(), cid, r.URL.Query().Get("search"))
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"accounts": out})
}

func (h *Handler) Suggest(w http.ResponseWriter, r *http.Request) {
	cid := clientID(r)
	if cid == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "client_id is required")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	out, err := h.repo.Suggest(r.Context(), cid, r.URL.Query().Get("prefix"), limit)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"accounts": out})
}

type accountPayload struct {
	ClientID int64  `json:"client_id" validate:"required"`
	AccNum   string `json:"accnum" validate:"required,min=1,max=20"`
	AccLib   string `json:"acclib" validate:"max=200"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var payload accountPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	accNum := strings.TrimSpace(payload.AccNum)
	accLib := strings.TrimSpace(payload.AccLib)
	if accLib == "" {
		accLib = accNum
	}
	a, err := h.repo.Create(r.Context(), Account{ClientID: payload.ClientID, AccNum: accNum, AccLib: accLib})
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, a)
}

func (h *Handler) Rename(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid account id")
		return
	}
	var body struct {
		AccLib string `json:"acclib"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil || strings.TrimSpace(body.AccLib) == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "acclib is required")
		return
	}
	if err := h.repo.Rename(r.Context(), id, strings.TrimSpace(body.AccLib)); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Delete refuses to drop an account that still has postings.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid account id")
		return
	}
	n, err := h.repo.EntryCount(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	if n > 0 {
		h.fail(w, ErrInUse)
		return
	}
	if err := h.repo.Delete(r.Context(), id); err != nil {
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
	case errors.Is(err, ErrInUse):
		httpx.Problem(w, http.StatusConflict, "Account In Use", err.Error())
	default:
		h.logger.Error("accounts request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
