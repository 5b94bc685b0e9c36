package entries

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pacioli-erp/pacioli/internal/money"
	"github.com/pacioli-erp/pacioli/internal/platform/httpx"
	"github.com/pacioli-erp/pacioli/internal/shared"
)

// Handler serves the paginated entries listing.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers HTTP routes for the entries module.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/entries", h.List)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	clientID, _ := strconv.ParseInt(q.Get("client_id"), 10, 64)
	exerciceID, _ := strconv.ParseInt(q.Get("exercice_id"), 10, 64)
	if exerciceID == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "exercice_id is required")
		return
	}

	filters := Filters{
		ClientID:   clientID,
		ExerciceID: exerciceID,
		Journal:    q.Get("jnl"),
		PieceRef:   q.Get("piece_ref"),
		Account:    q.Get("account"),
		Label:      q.Get("lib"),
	}
	var err error
	if filters.DateFrom, err = parseDate(q.Get("date_from")); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "bad date_from")
		return
	}
	if filters.DateTo, err = parseDate(q.Get("date_to")); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "bad date_to")
		return
	}
	if filters.MinAmount, err = parseAmount(q.Get("min_amt")); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "bad min_amt")
		return
	}
	if filters.MaxAmount, err = parseAmount(q.Get("max_amt")); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "bad max_amt")
		return
	}
	pageSize, _ := strconv.Atoi(q.Get("page_size"))

	page, err := h.service.List(r.Context(), ListRequest{
		Filters:  filters,
		Sort:     q.Get("sort"),
		PageSize: pageSize,
		After:    q.Get("after"),
		Before:   q.Get("before"),
	})
	if err != nil {
		switch {
		case errors.Is(err, shared.ErrStaleCursor), errors.Is(err, shared.ErrInvalidPagination):
			httpx.Problem(w, http.StatusBadRequest, "Invalid Cursor", err.Error())
		default:
			h.logger.Error("entries listing failed", slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		}
		return
	}

	rows := make([]entryRow, 0, len(page.Entries))
	for _, e := range page.Entries {
		rows = append(rows, toRow(e))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"entries": rows,
		"page":    page.Info,
	})
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseAmount(s string) (*money.Minor, error) {
	if s == "" {
		return nil, nil
	}
	m, err := money.Parse(s)
	if err != nil {
		return nil, err
	}
	return &m, nil
}
