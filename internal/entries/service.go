package entries

import (
	"context"
	"fmt"

	"github.com/pacioli-erp/pacioli/internal/ledger"
	"github.com/pacioli-erp/pacioli/internal/shared"
)

// ListerPort abstracts the listing repository.
type ListerPort interface {
	List(ctx context.Context, q Query) ([]ledger.Entry, error)
}

// Service resolves listing requests into pages with resumption cursors.
type Service struct {
	repo ListerPort
}

// NewService constructs the entries service.
func NewService(repo ListerPort) *Service {
	return &Service{repo: repo}
}

const (
	defaultPageSize = 100
	maxPageSize     = 500
)

// ListRequest is the raw paging request before cursor decoding.
type ListRequest struct {
	Filters  Filters
	Sort     string
	PageSize int
	After    string
	Before   string
}

// Page is one resolved window of the listing.
type Page struct {
	Entries []ledger.Entry
	Info    shared.PageInfo
}

// List resolves a page. At most one of After and Before may be set; both
// cursors are checked against the request's sort and filter fingerprint.
func (s *Service) List(ctx context.Context, req ListRequest) (Page, error) {
	if req.After != "" && req.Before != "" {
		return Page{}, fmt.Errorf("%w: after and before are mutually exclusive", shared.ErrInvalidPagination)
	}
	size := req.PageSize
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}

	sortField, desc := shared.ParseSort(req.Sort, SortAllowed, DefaultSort)
	fingerprint := req.Filters.Fingerprint()

	q := Query{Filters: req.Filters, SortField: sortField, Desc: desc, PageSize: size}
	backward := false
	if req.After != "" {
		c, err := shared.DecodeCursor(req.After)
		if err != nil {
			return Page{}, err
		}
		if err := c.Validate(sortField, desc, fingerprint); err != nil {
			return Page{}, err
		}
		q.After = &c
	} else if req.Before != "" {
		c, err := shared.DecodeCursor(req.Before)
		if err != nil {
			return Page{}, err
		}
		if err := c.Validate(sortField, desc, fingerprint); err != nil {
			return Page{}, err
		}
		q.Before = &c
		backward = true
	}

	rows, err := s.repo.List(ctx, q)
	if err != nil {
		return Page{}, err
	}

	more := len(rows) > size
	if more {
		rows = rows[:size]
	}
	if backward {
		reverse(rows)
	}

	var page Page
	page.Entries = rows
	if len(rows) == 0 {
		// An empty window past the data still lets the caller turn around.
		page.Info.HasPrev = q.After != nil
		page.Info.HasNext = backward
		return page, nil
	}

	first, last := rows[0], rows[len(rows)-1]
	nextCursor := shared.Cursor{SortField: sortField, Desc: desc, Fingerprint: fingerprint,
		LastValue: encodeSortValue(last, sortField), LastID: last.ID}
	prevCursor := shared.Cursor{SortField: sortField, Desc: desc, Fingerprint: fingerprint,
		LastValue: encodeSortValue(first, sortField), LastID: first.ID}

	if backward {
		page.Info.HasPrev = more
		page.Info.HasNext = true
	} else {
		page.Info.HasNext = more
		page.Info.HasPrev = q.After != nil
	}
	page.Info.Next = nextCursor.Encode()
	page.Info.Prev = prevCursor.Encode()
	return page, nil
}

func reverse(rows []ledger.Entry) {
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
}
