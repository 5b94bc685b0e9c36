package ledger

import (
	"context"
	"fmt"
)

// DefaultRefWidth is the zero-padded width of generated piece references.
const DefaultRefWidth = 5

// FormatPieceRef builds the sequential candidate "<journal>-<zero-padded n>".
func FormatPieceRef(journal string, n int64, width int) string {
	if width <= 0 {
		width = DefaultRefWidth
	}
	return fmt.Sprintf("%s-%0*d", journal, width, n)
}

// nextFree walks candidates starting after the last allocated number until
// one has no stored posting. Manually entered references that collide with
// the sequential scheme are skipped, and a number once issued is never
// reused.
func nextFree(ctx context.Context, last int64, journal string, width int, exists func(context.Context, string) (bool, error)) (NextRef, error) {
	for n := last + 1; ; n++ {
		candidate := FormatPieceRef(journal, n, width)
		taken, err := exists(ctx, candidate)
		if err != nil {
			return NextRef{}, err
		}
		if !taken {
			return NextRef{PieceRef: candidate, Number: n}, nil
		}
	}
}

// NextPieceRef predicts the next free piece reference for (exercice,
// journal). The lookup is read-only: it never advances the journal sequence
// counter, so abandoned drafts leave no permanent gap.
func (s *Service) NextPieceRef(ctx context.Context, exerciceID int64, journal string, width int) (NextRef, error) {
	if journal == "" {
		return NextRef{}, validationf("journal required")
	}
	if _, err := s.repo.GetExercice(ctx, exerciceID); err != nil {
		return NextRef{}, err
	}
	last, err := s.repo.GetJournalSequence(ctx, exerciceID, journal)
	if err != nil {
		return NextRef{}, err
	}
	return nextFree(ctx, last, journal, width, func(ctx context.Context, ref string) (bool, error) {
		return s.repo.PieceExists(ctx, exerciceID, journal, ref)
	})
}
