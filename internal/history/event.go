package history

import "time"

// Counts summarises the line-level outcome of one committed mutation batch.
type Counts struct {
	Added    int `json:"added"`
	Modified int `json:"modified"`
	Deleted  int `json:"deleted"`
}

// Event is one row of the per-exercice mutation log.
type Event struct {
	ID          int64
	CreatedAt   time.Time
	ClientID    int64
	ExerciceID  int64
	Description string
	Counts      Counts
}
