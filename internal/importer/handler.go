package importer

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pacioli-erp/pacioli/internal/ledger"
	"github.com/pacioli-erp/pacioli/internal/money"
	"github.com/pacioli-erp/pacioli/internal/platform/httpx"
)

// maxUploadBytes bounds a single CSV upload.
const maxUploadBytes = 32 << 20

// Handler serves the CSV upload endpoint.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers HTTP routes for the importer module.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/imports/csv", h.ImportCSV)
}

func (h *Handler) ImportCSV(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid multipart body")
		return
	}
	clientID, _ := strconv.ParseInt(r.FormValue("client_id"), 10, 64)
	exerciceID, _ := strconv.ParseInt(r.FormValue("exercice_id"), 10, 64)
	if clientID == 0 || exerciceID == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "client_id and exercice_id are required")
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "file is required")
		return
	}
	defer file.Close()
	raw, err := io.ReadAll(file)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "unreadable upload")
		return
	}

	res, err := h.service.Import(r.Context(), clientID, exerciceID, raw)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.logger.Info("csv import applied",
		slog.String("batch_id", res.BatchID),
		slog.Int64("exercice_id", exerciceID),
		slog.Int("added", res.Added))
	httpx.JSON(w, http.StatusOK, map[string]any{
		"batch_id": res.BatchID,
		"added":    res.Added,
		"warnings": map[string]any{
			"unbalanced_pieces": imbalanceRows(res.UnbalancedPieces),
		},
	})
}

func imbalanceRows(in []ledger.PieceImbalance) []map[string]any {
	out := make([]map[string]any, 0, len(in))
	for _, p := range in {
		out = append(out, map[string]any{
			"jnl":       p.Journal,
			"piece_ref": p.PieceRef,
			"count":     p.Count,
			"debit":     money.Format(p.DebitMinor),
			"credit":    money.Format(p.CreditMinor),
			"diff":      money.Format(p.DiffMinor),
		})
	}
	return out
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var pe *ParseError
	var ub *ledger.UnbalancedBatchError
	var oob *ledger.DateOutOfPeriodError
	switch {
	case errors.Is(err, ErrEmptyFile), errors.As(err, &pe), errors.As(err, &oob), errors.Is(err, money.ErrInvalidAmount):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.As(err, &ub):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Unbalanced File", err.Error())
	case errors.Is(err, ledger.ErrExerciceNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	default:
		h.logger.Error("csv import failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
