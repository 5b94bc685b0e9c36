package reports

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pacioli-erp/pacioli/internal/platform/httpx"
)

// Handler serves the report endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers HTTP routes for the reports module.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/reports/balance", h.TrialBalance)
	r.Get("/reports/balance.tab", h.TrialBalanceTab)
	r.Get("/reports/centralisateur", h.Centralisateur)
	r.Get("/reports/centralisateur.csv", h.CentralisateurCSV)
	r.Get("/reports/unbalanced/pieces", h.UnbalancedPieces)
	r.Get("/reports/unbalanced/pieces.csv", h.UnbalancedPiecesCSV)
	r.Get("/reports/unbalanced/journals", h.UnbalancedJournals)
	r.Delete("/reports/centralisateur/entries", h.DeleteMonth)
}

func exerciceID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(r.URL.Query().Get("exercice_id"), 10, 64)
	return id
}

func (h *Handler) TrialBalance(w http.ResponseWriter, r *http.Request) {
	id := exerciceID(r)
	if id == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "exercice_id is required")
		return
	}
	tb, err := h.service.TrialBalance(r.Context(), id)
	if err != nil {
		h.fail(w, "trial balance", err)
		return
	}
	httpx.JSON(w, http.StatusOK, tb)
}

func (h *Handler) TrialBalanceTab(w http.ResponseWriter, r *http.Request) {
	id := exerciceID(r)
	if id == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "exercice_id is required")
		return
	}
	tb, err := h.service.TrialBalance(r.Context(), id)
	if err != nil {
		h.fail(w, "trial balance export", err)
		return
	}
	w.Header().Set("Content-Type", "text/tab-separated-values; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="balance.tab"`)
	_, _ = w.Write(TrialBalanceTab(tb))
}

func (h *Handler) Centralisateur(w http.ResponseWriter, r *http.Request) {
	id := exerciceID(r)
	if id == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "exercice_id is required")
		return
	}
	cells, err := h.service.Centralisateur(r.Context(), id)
	if err != nil {
		h.fail(w, "centralisateur", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"cells": cells})
}

func (h *Handler) CentralisateurCSV(w http.ResponseWriter, r *http.Request) {
	id := exerciceID(r)
	if id == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "exercice_id is required")
		return
	}
	cells, err := h.service.Centralisateur(r.Context(), id)
	if err != nil {
		h.fail(w, "centralisateur export", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="centralisateur.csv"`)
	_, _ = w.Write(CentralisateurCSV(cells))
}

func (h *Handler) UnbalancedPieces(w http.ResponseWriter, r *http.Request) {
	id := exerciceID(r)
	if id == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "exercice_id is required")
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	res, err := h.service.UnbalancedPieces(r.Context(), id, page, perPage)
	if err != nil {
		h.fail(w, "unbalanced pieces", err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) UnbalancedPiecesCSV(w http.ResponseWriter, r *http.Request) {
	id := exerciceID(r)
	if id == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "exercice_id is required")
		return
	}
	// the CSV variant dumps everything, not one page
	res, err := h.service.UnbalancedPieces(r.Context(), id, 1, 100000)
	if err != nil {
		h.fail(w, "unbalanced pieces export", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="pieces_desequilibrees.csv"`)
	_, _ = w.Write(UnbalancedPiecesCSV(res.Pieces))
}

func (h *Handler) UnbalancedJournals(w http.ResponseWriter, r *http.Request) {
	id := exerciceID(r)
	if id == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "exercice_id is required")
		return
	}
	rows, err := h.service.UnbalancedJournals(r.Context(), id)
	if err != nil {
		h.fail(w, "unbalanced journals", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"journals": rows})
}

func (h *Handler) DeleteMonth(w http.ResponseWriter, r *http.Request) {
	id := exerciceID(r)
	jnl := r.URL.Query().Get("jnl")
	month := r.URL.Query().Get("month")
	if id == 0 || jnl == "" || month == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "exercice_id, jnl and month are required")
		return
	}
	deleted, err := h.service.DeleteMonth(r.Context(), id, jnl, month)
	switch {
	case errors.Is(err, ErrBadMonth):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "month must be YYYY-MM")
		return
	case errors.Is(err, ErrExerciceNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "exercice not found")
		return
	case err != nil:
		h.fail(w, "delete month", err)
		return
	}
	h.logger.Info("centralisateur month purged",
		slog.Int64("exercice_id", id),
		slog.String("jnl", jnl),
		slog.String("month", month),
		slog.Int64("deleted", deleted))
	httpx.JSON(w, http.StatusOK, map[string]any{"deleted_count": deleted})
}

func (h *Handler) fail(w http.ResponseWriter, what string, err error) {
	h.logger.Error(what+" failed", slog.Any("error", err))
	httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
}
