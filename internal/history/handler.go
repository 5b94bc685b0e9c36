package history

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pacioli-erp/pacioli/internal/platform/httpx"
)

// Handler serves the mutation log endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers HTTP routes for the history module.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/history", h.List)
	r.Patch("/history/{id}", h.UpdateDescription)
	r.Get("/history/export", h.Export)
}

type eventPayload struct {
	ID          int64  `json:"id"`
	CreatedAt   string `json:"created_at"`
	Description string `json:"description"`
	Counts      Counts `json:"counts"`
	CountsHuman string `json:"counts_human"`
}

func toPayload(ev Event) eventPayload {
	return eventPayload{
		ID:          ev.ID,
		CreatedAt:   ev.CreatedAt.Format("02/01/2006 15:04"),
		Description: ev.Description,
		Counts:      ev.Counts,
		CountsHuman: CountsHuman(ev.Counts),
	}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	exerciceID, _ := strconv.ParseInt(r.URL.Query().Get("exercice_id"), 10, 64)
	if exerciceID == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "exercice_id is required")
		return
	}
	events, err := h.service.List(r.Context(), exerciceID, r.URL.Query().Get("order"))
	if err != nil {
		h.logger.Error("history listing failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	rows := make([]eventPayload, 0, len(events))
	for _, ev := range events {
		rows = append(rows, toPayload(ev))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"rows": rows, "total": len(rows)})
}

func (h *Handler) UpdateDescription(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid event id")
		return
	}
	var body struct {
		Description string `json:"description"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	ev, err := h.service.UpdateDescription(r.Context(), id, body.Description)
	if err != nil {
		if errors.Is(err, ErrEventNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
			return
		}
		h.logger.Error("history update failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, toPayload(ev))
}

func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	exerciceID, _ := strconv.ParseInt(r.URL.Query().Get("exercice_id"), 10, 64)
	if exerciceID == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "exercice_id is required")
		return
	}
	data, err := h.service.ExportText(r.Context(), exerciceID, r.URL.Query().Get("order"))
	if err != nil {
		h.logger.Error("history export failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="history.txt"`)
	_, _ = w.Write(data)
}
