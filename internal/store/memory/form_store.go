package memory

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/formdesk/formdesk/internal/models"
	"github.com/formdesk/formdesk/internal/store"
)

// FormStore implements store.FormStore using in-memory storage.
// This implementation is for testing and development only - data is lost
// on restart.
type FormStore struct {
	mu sync.RWMutex

	forms map[string]*models.Form // form id -> Form
}

// NewFormStore creates a new in-memory form store.
func NewFormStore() *FormStore {
	return &FormStore{
		forms: make(map[string]*models.Form),
	}
}

// Upsert inserts or replaces a form, assigning an id when missing.
func (s *FormStore) Upsert(ctx context.Context, form *models.Form) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if form.ID == "" {
		form.ID = uuid.NewString()
	}

	// Clone to avoid external modifications
	s.forms[form.ID] = form.Clone()

	return form.ID, nil
}

// GetByID fetches a form by id, ignoring the owner partition.
func (s *FormStore) GetByID(ctx context.Context, id string) (*models.Form, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	form, exists := s.forms[id]
	if !exists {
		return nil, store.ErrFormNotFound
	}

	return form.Clone(), nil
}

// Delete removes a form scoped by owner.
func (s *FormStore) Delete(ctx context.Context, id, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	form, exists := s.forms[id]
	if !exists || form.OwnerID != ownerID {
		return store.ErrFormNotFound
	}

	delete(s.forms, id)

	return nil
}

// Find runs the query predicate over all forms, sorts and paginates the
// matches, and returns the unpaginated total alongside the page.
func (s *FormStore) Find(ctx context.Context, q *store.Query) ([]*models.Form, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*models.Form
	for _, form := range s.forms {
		if matches(q, form) {
			matched = append(matched, form)
		}
	}

	sortForms(matched, q.Sort, q.Order)

	total := int64(len(matched))

	if q.Paginated() {
		skip := *q.Page * *q.PerPage
		if skip >= len(matched) {
			return []*models.Form{}, total, nil
		}
		end := skip + *q.PerPage
		if end > len(matched) {
			end = len(matched)
		}
		matched = matched[skip:end]
	}

	out := make([]*models.Form, len(matched))
	for i, form := range matched {
		out[i] = form.Clone()
	}

	return out, total, nil
}

// FindPinned returns visible, unexpired pinned forms sorted by createdDate
// descending.
func (s *FormStore) FindPinned(ctx context.Context, callerID string, orgIDs []string, now time.Time) ([]*models.Form, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*models.Form
	for _, form := range s.forms {
		if !visible(form, callerID, orgIDs) {
			continue
		}
		if !form.IsPinned {
			continue
		}
		if form.PinnedUntilDate != nil && !form.PinnedUntilDate.After(now) {
			continue
		}
		matched = append(matched, form)
	}

	sortForms(matched, store.SortUnspecified, "")

	out := make([]*models.Form, len(matched))
	for i, form := range matched {
		out[i] = form.Clone()
	}

	return out, nil
}

// visible applies the always-on visibility predicate: owner match or a
// shared-organisation intersection.
func visible(form *models.Form, callerID string, orgIDs []string) bool {
	if form.OwnerID == callerID {
		return true
	}
	return len(form.FormAccesses) > 0 && form.SharedWith(orgIDs)
}

func matches(q *store.Query, form *models.Form) bool {
	if !visible(form, q.CallerID, q.OrgIDs) {
		return false
	}

	if q.StartDate != nil && form.CreatedDate.Before(*q.StartDate) {
		return false
	}
	if q.EndDate != nil && !form.CreatedDate.Before(*q.EndDate) {
		return false
	}

	if q.Search != "" {
		needle := strings.ToLower(q.Search)
		if !strings.Contains(strings.ToLower(form.Title), needle) &&
			!strings.Contains(strings.ToLower(form.OwnerName), needle) &&
			!strings.Contains(strings.ToLower(form.Description), needle) {
			return false
		}
	}

	if len(q.Tags) > 0 {
		found := false
		for _, tag := range form.Tags {
			if slices.Contains(q.Tags, tag) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	return true
}

// sortForms orders the result set. Without an explicit sort the store
// default is createdDate descending with an id tiebreak, which keeps
// pagination deterministic over map iteration.
func sortForms(forms []*models.Form, field store.SortField, order store.SortOrder) {
	cmp := func(a, b *models.Form) int {
		var c int
		switch field {
		case store.SortTitle:
			c = strings.Compare(a.Title, b.Title)
		case store.SortOwnerName:
			c = strings.Compare(a.OwnerName, b.OwnerName)
		case store.SortDeadline:
			c = compareTimePtr(a.Deadline, b.Deadline)
		case store.SortCreatedDate:
			c = a.CreatedDate.Compare(b.CreatedDate)
		default:
			// Store-default: newest first.
			c = b.CreatedDate.Compare(a.CreatedDate)
		}
		if c == 0 {
			c = strings.Compare(a.ID, b.ID)
		}
		return c
	}

	sort.SliceStable(forms, func(i, j int) bool {
		c := cmp(forms[i], forms[j])
		if field != store.SortUnspecified && order == store.SortDesc {
			return c > 0
		}
		return c < 0
	})
}

func compareTimePtr(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return a.Compare(*b)
}
