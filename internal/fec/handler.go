package fec

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/singleflight"

	"github.com/pacioli-erp/pacioli/internal/ledger"
	"github.com/pacioli-erp/pacioli/internal/observability"
	"github.com/pacioli-erp/pacioli/internal/platform/httpx"
)

// Handler serves the export endpoint. Concurrent requests for the same
// exercice share one export run through the singleflight group.
type Handler struct {
	logger   *slog.Logger
	exporter *Exporter
	metrics  *observability.Metrics
	group    singleflight.Group
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, exporter *Exporter, metrics *observability.Metrics) *Handler {
	return &Handler{logger: logger, exporter: exporter, metrics: metrics}
}

// MountRoutes registers HTTP routes for the export module.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/exercices/{id}/fec", h.Export)
}

func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid exercice id")
		return
	}

	v, err, _ := h.group.Do(strconv.FormatInt(id, 10), func() (any, error) {
		return h.exporter.Export(r.Context(), id)
	})
	if err != nil {
		h.metrics.ObserveExport("error")
		switch {
		case errors.Is(err, ledger.ErrExerciceNotFound):
			httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
		case errors.Is(err, ErrEmptyPeriod):
			httpx.Problem(w, http.StatusNotFound, "Empty Period", err.Error())
		default:
			h.logger.Error("fec export failed", slog.Int64("exercice_id", id), slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		}
		return
	}
	archive := v.(Archive)
	h.metrics.ObserveExport("ok")
	h.logger.Info("fec export produced",
		slog.Int64("exercice_id", id),
		slog.String("file", archive.FileName),
		slog.Int("warnings", archive.Warnings))

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+archive.FileName+`"`)
	_, _ = w.Write(archive.Data)
}
