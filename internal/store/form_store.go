package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/formdesk/formdesk/internal/models"
)

// Sentinel errors for common error conditions
var (
	ErrFormNotFound     = errors.New("form not found")
	ErrInvalidSortField = errors.New("invalid sort field")
)

// SortField is the closed set of fields a listing may be sorted by.
// Unknown request values are rejected up front rather than silently ignored.
type SortField string

const (
	SortUnspecified SortField = ""
	SortTitle       SortField = "title"
	SortCreatedDate SortField = "createdDate"
	SortDeadline    SortField = "deadline"
	SortOwnerName   SortField = "ownerName"
)

// ParseSortField validates a request-supplied sort field name.
// An empty value means store-default order.
func ParseSortField(s string) (SortField, error) {
	switch SortField(s) {
	case SortUnspecified, SortTitle, SortCreatedDate, SortDeadline, SortOwnerName:
		return SortField(s), nil
	}
	return SortUnspecified, fmt.Errorf("%w: %q", ErrInvalidSortField, s)
}

// SortOrder is the direction of an explicit sort.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// Query describes one filtered, sorted, paginated read over the forms
// collection. The visibility predicate (owner match OR shared-organisation
// intersection) is always applied; the remaining filters are optional and
// composed with AND.
type Query struct {
	CallerID string
	OrgIDs   []string

	// CreatedDate range: start inclusive, end exclusive.
	StartDate *time.Time
	EndDate   *time.Time

	// Case-insensitive substring match over title, owner name and
	// description.
	Search string

	// Lower-cased tags; a form matches when its tag set intersects.
	Tags []string

	Sort  SortField
	Order SortOrder

	// Pagination applies only when both values are set:
	// skip = Page*PerPage, take = PerPage.
	Page    *int
	PerPage *int
}

// Paginated reports whether the query carries a complete pagination pair.
func (q *Query) Paginated() bool {
	return q.Page != nil && q.PerPage != nil
}

// FormStore is the document-store contract for forms. Implementations must
// keep the total returned by Find consistent with the filtered but
// unpaginated predicate, and treat Upsert as a single-document atomic write
// keyed by (id, owner partition).
type FormStore interface {
	// Upsert inserts or replaces a form document, assigning an id when the
	// form has none. Returns the document id.
	Upsert(ctx context.Context, form *models.Form) (string, error)

	// GetByID fetches a form by id across all owner partitions.
	// Returns ErrFormNotFound if no document exists.
	GetByID(ctx context.Context, id string) (*models.Form, error)

	// Delete removes the form scoped by its owner partition.
	// Returns ErrFormNotFound if no such document exists for that owner.
	Delete(ctx context.Context, id, ownerID string) error

	// Find runs the query and returns one page of forms plus the total
	// count over the same predicate before pagination.
	Find(ctx context.Context, q *Query) ([]*models.Form, int64, error)

	// FindPinned returns all visible forms that are pinned and not expired
	// at the given instant, sorted by createdDate descending, unpaginated.
	FindPinned(ctx context.Context, callerID string, orgIDs []string, now time.Time) ([]*models.Form, error)
}
