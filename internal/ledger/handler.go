package ledger

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/pacioli-erp/pacioli/internal/money"
	"github.com/pacioli-erp/pacioli/internal/observability"
	"github.com/pacioli-erp/pacioli/internal/platform/httpx"
)

// Handler wires piece mutation and allocation endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	metrics  *observability.Metrics
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, metrics *observability.Metrics) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(),
		metrics:  metrics,
	}
}

// MountRoutes registers HTTP routes for the ledger module.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/piece", h.GetPiece)
	r.Post("/piece/commit", h.Commit)
	r.Get("/piece/next_ref", h.NextRef)
	r.Post("/closing/an", h.OpeningBalances)
}

const dateLayout = "2006-01-02"

type changePayload struct {
	Op        string  `json:"op" validate:"required,oneof=add modify delete"`
	EntryID   int64   `json:"entry_id,omitempty"`
	Date      string  `json:"date,omitempty"`
	AccNum    string  `json:"accnum,omitempty"`
	AccLib    string  `json:"acclib,omitempty"`
	Label     *string `json:"lib,omitempty"`
	Debit     *string `json:"debit,omitempty"`
	Credit    *string `json:"credit,omitempty"`
	PieceDate string  `json:"piece_date,omitempty"`
	ValidDate string  `json:"valid_date,omitempty"`
	AmountDev *string `json:"montant_devise,omitempty"`
	Devise    *string `json:"idevise,omitempty"`
}

type commitPayload struct {
	ClientID    int64           `json:"client_id" validate:"required"`
	ExerciceID  int64           `json:"exercice_id" validate:"required"`
	Journal     string          `json:"jnl" validate:"required"`
	PieceRef    string          `json:"piece_ref" validate:"required"`
	Description string          `json:"description"`
	Changes     []changePayload `json:"changes" validate:"required,min=1,dive"`
}

func parseDatePtr(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseAmountPtr(s *string) (*money.Minor, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	v, err := money.Parse(*s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (p commitPayload) toInput() (CommitInput, error) {
	in := CommitInput{
		ClientID:    p.ClientID,
		ExerciceID:  p.ExerciceID,
		Journal:     p.Journal,
		PieceRef:    p.PieceRef,
		Description: p.Description,
	}
	for idx, cp := range p.Changes {
		ch := Change{Op: ChangeOp(cp.Op), EntryID: cp.EntryID, AccNum: cp.AccNum, AccLib: cp.AccLib, Label: cp.Label, Devise: cp.Devise}
		var err error
		if ch.Date, err = parseDatePtr(cp.Date); err != nil {
			return CommitInput{}, validationf("change %d: bad date %q", idx, cp.Date)
		}
		if ch.PieceDate, err = parseDatePtr(cp.PieceDate); err != nil {
			return CommitInput{}, validationf("change %d: bad piece date %q", idx, cp.PieceDate)
		}
		if ch.ValidDate, err = parseDatePtr(cp.ValidDate); err != nil {
			return CommitInput{}, validationf("change %d: bad valid date %q", idx, cp.ValidDate)
		}
		if ch.DebitMinor, err = parseAmountPtr(cp.Debit); err != nil {
			return CommitInput{}, validationf("change %d: bad debit %q", idx, *cp.Debit)
		}
		if ch.CreditMinor, err = parseAmountPtr(cp.Credit); err != nil {
			return CommitInput{}, validationf("change %d: bad credit %q", idx, *cp.Credit)
		}
		if ch.AmountDeviseMinor, err = parseAmountPtr(cp.AmountDev); err != nil {
			return CommitInput{}, validationf("change %d: bad currency amount %q", idx, *cp.AmountDev)
		}
		in.Changes = append(in.Changes, ch)
	}
	return in, nil
}

type entryPayload struct {
	ID        int64  `json:"id"`
	Date      string `json:"date"`
	Journal   string `json:"jnl"`
	PieceRef  string `json:"piece_ref"`
	AccNum    string `json:"accnum"`
	AccLib    string `json:"acclib"`
	Label     string `json:"lib"`
	Debit     string `json:"debit"`
	Credit    string `json:"credit"`
	PieceDate string `json:"piece_date,omitempty"`
	ValidDate string `json:"valid_date,omitempty"`
	AmountDev string `json:"montant_devise,omitempty"`
	Devise    string `json:"idevise,omitempty"`
}

// EntryPayload converts a stored entry to its wire shape with formatted
// amounts.
func EntryPayload(e Entry) entryPayload {
	p := entryPayload{
		ID:       e.ID,
		Date:     e.Date.Format(dateLayout),
		Journal:  e.Journal,
		PieceRef: e.PieceRef,
		AccNum:   e.AccNum,
		AccLib:   e.AccLib,
		Label:    e.Label,
		Debit:    money.Format(e.DebitMinor),
		Credit:   money.Format(e.CreditMinor),
		Devise:   e.Devise,
	}
	if e.PieceDate != nil {
		p.PieceDate = e.PieceDate.Format(dateLayout)
	}
	if e.ValidDate != nil {
		p.ValidDate = e.ValidDate.Format(dateLayout)
	}
	if e.AmountDeviseMinor != nil {
		p.AmountDev = money.Format(*e.AmountDeviseMinor)
	}
	return p
}

type imbalancePayload struct {
	Journal  string `json:"jnl"`
	PieceRef string `json:"piece_ref"`
	Count    int    `json:"count"`
	Debit    string `json:"debit"`
	Credit   string `json:"credit"`
	Diff     string `json:"diff"`
}

func imbalancePayloads(in []PieceImbalance) []imbalancePayload {
	out := make([]imbalancePayload, 0, len(in))
	for _, p := range in {
		out = append(out, imbalancePayload{
			Journal:  p.Journal,
			PieceRef: p.PieceRef,
			Count:    p.Count,
			Debit:    money.Format(p.DebitMinor),
			Credit:   money.Format(p.CreditMinor),
			Diff:     money.Format(p.DiffMinor),
		})
	}
	return out
}

func (h *Handler) GetPiece(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	clientID, _ := strconv.ParseInt(q.Get("client_id"), 10, 64)
	exerciceID, _ := strconv.ParseInt(q.Get("exercice_id"), 10, 64)
	journal := q.Get("jnl")
	pieceRef := q.Get("piece_ref")
	if exerciceID == 0 || journal == "" || pieceRef == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "exercice_id, jnl and piece_ref are required")
		return
	}
	entries, err := h.service.GetPiece(r.Context(), clientID, exerciceID, journal, pieceRef)
	if err != nil {
		h.respondError(w, err)
		return
	}
	payload := make([]entryPayload, 0, len(entries))
	for _, e := range entries {
		payload = append(payload, EntryPayload(e))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": payload})
}

func (h *Handler) Commit(w http.ResponseWriter, r *http.Request) {
	var payload commitPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	in, err := payload.toInput()
	if err != nil {
		h.respondError(w, err)
		return
	}
	res, err := h.service.CommitPiece(r.Context(), in)
	if err != nil {
		h.metrics.ObserveCommit(commitOutcome(err))
		h.logger.Warn("piece commit failed",
			slog.String("jnl", in.Journal),
			slog.String("piece_ref", in.PieceRef),
			slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	h.metrics.ObserveCommit("ok")
	httpx.JSON(w, http.StatusOK, map[string]any{
		"added":             res.Added,
		"modified":          res.Modified,
		"deleted":           res.Deleted,
		"unbalanced_pieces": imbalancePayloads(res.UnbalancedPieces),
	})
}

func (h *Handler) NextRef(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	exerciceID, _ := strconv.ParseInt(q.Get("exercice_id"), 10, 64)
	journal := q.Get("jnl")
	if exerciceID == 0 || journal == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "exercice_id and jnl are required")
		return
	}
	width, _ := strconv.Atoi(q.Get("width"))
	ref, err := h.service.NextPieceRef(r.Context(), exerciceID, journal, width)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ref)
}

type anPayload struct {
	SourceExerciceID int64  `json:"source_exercice_id" validate:"required"`
	TargetExerciceID int64  `json:"target_exercice_id" validate:"required"`
	Journal          string `json:"jnl"`
	Overwrite        bool   `json:"overwrite"`
}

func (h *Handler) OpeningBalances(w http.ResponseWriter, r *http.Request) {
	var payload anPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	res, err := h.service.GenerateOpeningBalances(r.Context(), ANInput{
		SourceExerciceID: payload.SourceExerciceID,
		TargetExerciceID: payload.TargetExerciceID,
		Journal:          payload.Journal,
		Overwrite:        payload.Overwrite,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"piece_ref":      res.PieceRef,
		"lines":          res.Lines,
		"total_debit":    money.Format(res.TotalDebitMinor),
		"total_credit":   money.Format(res.TotalCreditMinor),
		"result_account": res.ResultAccount,
	})
}

// commitOutcome classifies a failed commit for the ledger commit counter.
// Rejections the caller can correct keep the "rejected" label; anything else
// counts as "error" and feeds the failure-spike alert.
func commitOutcome(err error) string {
	var ve *ValidationError
	var ub *UnbalancedBatchError
	var oob *DateOutOfPeriodError
	switch {
	case errors.As(err, &ve), errors.As(err, &ub), errors.As(err, &oob),
		errors.Is(err, money.ErrInvalidAmount),
		errors.Is(err, ErrExerciceNotFound),
		errors.Is(err, ErrEntryNotFound),
		errors.Is(err, ErrExerciceClosed):
		return "rejected"
	default:
		return "error"
	}
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var ve *ValidationError
	var ub *UnbalancedBatchError
	var oob *DateOutOfPeriodError
	switch {
	case errors.Is(err, ErrExerciceNotFound), errors.Is(err, ErrEntryNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrExerciceClosed):
		httpx.Problem(w, http.StatusConflict, "Exercice Closed", err.Error())
	case errors.Is(err, ErrOpeningExists):
		httpx.Problem(w, http.StatusConflict, "Opening Balances Exist", err.Error())
	case errors.Is(err, ErrNoOpeningBalance):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Nothing To Carry Forward", err.Error())
	case errors.As(err, &ve), errors.As(err, &oob), errors.Is(err, money.ErrInvalidAmount):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.As(err, &ub):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Unbalanced Batch", err.Error())
	default:
		h.logger.Error("ledger request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
