package history

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCountsHuman(t *testing.T) {
	cases := []struct {
		counts Counts
		want   string
	}{
		{Counts{Added: 3}, "Ajoutées: 3"},
		{Counts{Added: 1}, "Ajoutée: 1"},
		{Counts{Added: 2, Deleted: 1}, "Ajoutées: 2 | Supprimée: 1"},
		{Counts{Added: 1, Modified: 2, Deleted: 3}, "Ajoutée: 1 | Modifiées: 2 | Supprimées: 3"},
		{Counts{}, ""},
	}
	for _, c := range cases {
		require.Equal(t, c.want, CountsHuman(c.counts))
	}
}

type stubHistoryRepo struct {
	events []Event
}

func (r stubHistoryRepo) List(_ context.Context, exerciceID int64, desc bool) ([]Event, error) {
	out := make([]Event, 0, len(r.events))
	for _, ev := range r.events {
		if ev.ExerciceID == exerciceID {
			out = append(out, ev)
		}
	}
	if desc {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out, nil
}

func (r stubHistoryRepo) UpdateDescription(_ context.Context, id int64, description string) (Event, error) {
	for _, ev := range r.events {
		if ev.ID == id {
			ev.Description = description
			return ev, nil
		}
	}
	return Event{}, ErrEventNotFound
}

func TestExportText(t *testing.T) {
	repo := stubHistoryRepo{events: []Event{
		{ID: 1, ExerciceID: 1, CreatedAt: time.Date(2025, time.March, 10, 14, 30, 0, 0, time.UTC),
			Description: "Facture 42", Counts: Counts{Added: 3}},
		{ID: 2, ExerciceID: 1, CreatedAt: time.Date(2025, time.March, 11, 9, 0, 0, 0, time.UTC),
			Description: "", Counts: Counts{Deleted: 1}},
	}}
	svc := NewService(repo)

	out, err := svc.ExportText(context.Background(), 1, "asc")
	require.NoError(t, err)
	text := string(out)
	require.Contains(t, text, "- 10/03/2025 14:30\n- Ajoutées: 3\n- Facture 42\n\n")
	require.Contains(t, text, "- 11/03/2025 09:00\n- Supprimée: 1\n- \n\n")

	descOut, err := svc.ExportText(context.Background(), 1, "desc")
	require.NoError(t, err)
	require.Less(t,
		strings.Index(string(descOut), "11/03/2025"),
		strings.Index(string(descOut), "10/03/2025"))
}

func TestUpdateDescriptionUnknownEvent(t *testing.T) {
	svc := NewService(stubHistoryRepo{})
	_, err := svc.UpdateDescription(context.Background(), 99, "x")
	require.ErrorIs(t, err, ErrEventNotFound)
}
