// Package clients manages the accounting dossiers postings belong to.
package clients

import "errors"

// Client is one accounting dossier. Siren is the 9-digit company identifier
// stamped into export file names.
type Client struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Siren string `json:"siren"`
}

var (
	// ErrNotFound indicates an unknown client id.
	ErrNotFound = errors.New("clients: not found")
	// ErrDuplicateName indicates a name collision.
	ErrDuplicateName = errors.New("clients: name already exists")
)
