package history

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrEventNotFound indicates an unknown history event id.
var ErrEventNotFound = errors.New("history: event not found")

// RepositoryPort abstracts history storage.
type RepositoryPort interface {
	List(ctx context.Context, exerciceID int64, desc bool) ([]Event, error)
	UpdateDescription(ctx context.Context, id int64, description string) (Event, error)
}

// Service reads and amends the mutation log. Events are only ever created by
// the ledger's commit transaction, never from here.
type Service struct {
	repo RepositoryPort
}

// NewService constructs the history service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, exerciceID int64, order string) ([]Event, error) {
	return s.repo.List(ctx, exerciceID, order == "desc")
}

func (s *Service) UpdateDescription(ctx context.Context, id int64, description string) (Event, error) {
	return s.repo.UpdateDescription(ctx, id, description)
}

// CountsHuman renders a counts triple as the display string the journal view
// shows, e.g. "Ajoutee(s): 3 | Supprimee(s): 1". Zero counts are omitted; an
// all-zero triple renders empty.
func CountsHuman(c Counts) string {
	type part struct {
		label string
		n     int
	}
	parts := []part{
		{"Ajoutée", c.Added},
		{"Modifiée", c.Modified},
		{"Supprimée", c.Deleted},
	}
	var out []string
	for _, p := range parts {
		if p.n == 0 {
			continue
		}
		label := p.label
		if p.n > 1 {
			label += "s"
		}
		out = append(out, fmt.Sprintf("%s: %d", label, p.n))
	}
	return strings.Join(out, " | ")
}

// ExportText renders the full log as the plain-text document handed to the
// accountant alongside the fiscal export.
func (s *Service) ExportText(ctx context.Context, exerciceID int64, order string) ([]byte, error) {
	events, err := s.List(ctx, exerciceID, order)
	if err != nil {
		return nil, err
	}
	var b strings.Builder
	for _, ev := range events {
		b.WriteString("- " + ev.CreatedAt.Format("02/01/2006 15:04") + "\n")
		b.WriteString("- " + CountsHuman(ev.Counts) + "\n")
		b.WriteString("- " + ev.Description + "\n\n")
	}
	return []byte(b.String()), nil
}
