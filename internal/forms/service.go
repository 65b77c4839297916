package forms

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/formdesk/formdesk/internal/access"
	"github.com/formdesk/formdesk/internal/auth"
	"github.com/formdesk/formdesk/internal/models"
	"github.com/formdesk/formdesk/internal/notify"
	"github.com/formdesk/formdesk/internal/store"
	"github.com/formdesk/formdesk/internal/telemetry"
)

// ServiceConfig wires the lifecycle service's collaborators.
type ServiceConfig struct {
	Store    store.FormStore
	Resolver *access.Resolver
	Fanout   *notify.Fanout

	// Now overrides the clock, for tests. Defaults to time.Now.
	Now func() time.Time
}

// Service owns the form lifecycle: create, read, list, update, delete.
// Mutations require an elevated role and strict ownership; sharing grants
// read, never write.
type Service struct {
	store     store.FormStore
	resolver  *access.Resolver
	fanout    *notify.Fanout
	validator *Validator
	now       func() time.Time
}

// NewService creates the lifecycle service.
func NewService(cfg ServiceConfig) *Service {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:     cfg.Store,
		resolver:  cfg.Resolver,
		fanout:    cfg.Fanout,
		validator: NewValidator(now),
		now:       now,
	}
}

// Create validates and persists a new form owned by the caller, then fans
// out FormCreated notifications. Returns the persisted form with its
// assigned id and creation timestamp.
func (s *Service) Create(ctx context.Context, caller *auth.Principal, payload *models.Form) (*models.Form, error) {
	if !caller.HasElevatedRole() {
		return nil, ErrForbidden
	}

	if err := s.validator.Validate(payload); err != nil {
		return nil, err
	}

	if err := s.validateAccessTargets(ctx, caller.ID, payload.FormAccesses); err != nil {
		return nil, err
	}

	form := payload.Clone()
	form.ID = ""
	form.OwnerID = caller.ID
	form.OwnerName = caller.Name
	form.CreatedDate = s.now().UTC()
	form.ModifiedDate = nil
	form.NormalizeTags()

	id, err := s.store.Upsert(ctx, form)
	if err != nil {
		return nil, fmt.Errorf("failed to persist form: %w", err)
	}
	form.ID = id

	telemetry.GetMetrics().FormsCreatedTotal.Add(ctx, 1)
	log.Info().Str("form_id", id).Str("owner_id", caller.ID).Msg("Created form")

	s.fanout.Notify(ctx, caller.ID, form, notify.TemplateFormCreated, payload.SendEmailNotifications)

	return form, nil
}

// Update replaces the mutable fields of an existing form owned by the
// caller, refreshes the modified timestamp and fans out FormUpdated
// notifications. Id, owner and creation date are never overwritten.
func (s *Service) Update(ctx context.Context, caller *auth.Principal, id string, payload *models.Form) (*models.Form, error) {
	if !caller.HasElevatedRole() {
		return nil, ErrForbidden
	}

	existing, err := s.getExisting(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.OwnerID != caller.ID {
		return nil, ErrForbidden
	}

	if err := s.validator.Validate(payload); err != nil {
		return nil, err
	}

	if err := s.validateAccessTargets(ctx, caller.ID, payload.FormAccesses); err != nil {
		return nil, err
	}

	form := payload.Clone()
	form.ID = existing.ID
	form.OwnerID = existing.OwnerID
	form.OwnerName = existing.OwnerName
	form.CreatedDate = existing.CreatedDate
	modified := s.now().UTC()
	form.ModifiedDate = &modified
	form.NormalizeTags()

	if _, err := s.store.Upsert(ctx, form); err != nil {
		return nil, fmt.Errorf("failed to persist form: %w", err)
	}

	telemetry.GetMetrics().FormsUpdatedTotal.Add(ctx, 1)
	log.Info().Str("form_id", id).Str("owner_id", caller.ID).Msg("Updated form")

	s.fanout.Notify(ctx, caller.ID, form, notify.TemplateFormUpdated, payload.SendEmailNotifications)

	return form, nil
}

// Delete removes a form owned by the caller. Deletion is immediate and
// final; there are no soft-delete semantics.
func (s *Service) Delete(ctx context.Context, caller *auth.Principal, id string) error {
	if !caller.HasElevatedRole() {
		return ErrForbidden
	}

	existing, err := s.getExisting(ctx, id)
	if err != nil {
		return err
	}
	if existing.OwnerID != caller.ID {
		return ErrForbidden
	}

	if err := s.store.Delete(ctx, id, caller.ID); err != nil {
		if errors.Is(err, store.ErrFormNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete form: %w", err)
	}

	telemetry.GetMetrics().FormsDeletedTotal.Add(ctx, 1)
	log.Info().Str("form_id", id).Str("owner_id", caller.ID).Msg("Deleted form")

	return nil
}

// Get fetches a single form by id. The store read ignores partitions; the
// authorization check runs in-process after the fetch. Owners always pass;
// other callers need an accessible organisation matching one of the form's
// accesses.
func (s *Service) Get(ctx context.Context, caller *auth.Principal, id string) (*models.Form, error) {
	form, err := s.getExisting(ctx, id)
	if err != nil {
		return nil, err
	}

	if form.OwnerID == caller.ID {
		return form, nil
	}

	orgIDs, err := s.resolver.AccessibleOrgIDs(ctx, caller.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: organisation directory: %v", ErrUpstream, err)
	}

	if len(form.FormAccesses) == 0 || !form.SharedWith(orgIDs) {
		return nil, ErrForbidden
	}

	return form, nil
}

// ListFilters are the optional listing filters; each is applied only when
// present.
type ListFilters struct {
	StartDate *time.Time
	EndDate   *time.Time
	Search    string
	Tags      []string
	SortBy    string
	SortOrder string
	Page      *int
	PerPage   *int
}

// ListResult is one page of forms plus the total over the unpaginated
// predicate.
type ListResult struct {
	Forms []*models.Form `json:"forms"`
	Total int64          `json:"total"`
}

// List returns the forms visible to the caller, filtered, sorted and
// paginated per the request.
func (s *Service) List(ctx context.Context, caller *auth.Principal, filters ListFilters) (*ListResult, error) {
	sortField := store.SortUnspecified
	if filters.SortBy != "" {
		var err error
		sortField, err = store.ParseSortField(filters.SortBy)
		if err != nil {
			return nil, &ValidationError{Fields: []FieldError{
				{Field: "sortBy", MessageKey: "forms.getForms.invalidSortColumn"},
			}}
		}
	}

	order := store.SortDesc
	if filters.SortOrder == string(store.SortAsc) {
		order = store.SortAsc
	}
	// Sort applies only when both sortBy and sortOrder are present.
	if filters.SortOrder == "" {
		sortField = store.SortUnspecified
	}

	tags := make([]string, len(filters.Tags))
	for i, t := range filters.Tags {
		tags[i] = strings.ToLower(t)
	}
	if len(tags) == 0 {
		tags = nil
	}

	orgIDs, err := s.resolver.AccessibleOrgIDs(ctx, caller.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: organisation directory: %v", ErrUpstream, err)
	}

	formsPage, total, err := s.store.Find(ctx, &store.Query{
		CallerID:  caller.ID,
		OrgIDs:    orgIDs,
		StartDate: filters.StartDate,
		EndDate:   filters.EndDate,
		Search:    filters.Search,
		Tags:      tags,
		Sort:      sortField,
		Order:     order,
		Page:      filters.Page,
		PerPage:   filters.PerPage,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query forms: %w", err)
	}
	if formsPage == nil {
		formsPage = []*models.Form{}
	}

	return &ListResult{Forms: formsPage, Total: total}, nil
}

// Pinned returns the caller's visible, unexpired pinned forms, newest
// first, never paginated.
func (s *Service) Pinned(ctx context.Context, caller *auth.Principal) ([]*models.Form, error) {
	orgIDs, err := s.resolver.AccessibleOrgIDs(ctx, caller.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: organisation directory: %v", ErrUpstream, err)
	}

	formsPinned, err := s.store.FindPinned(ctx, caller.ID, orgIDs, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query pinned forms: %w", err)
	}
	if formsPinned == nil {
		formsPinned = []*models.Form{}
	}

	return formsPinned, nil
}

func (s *Service) getExisting(ctx context.Context, id string) (*models.Form, error) {
	form, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrFormNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch form: %w", err)
	}
	return form, nil
}

// validateAccessTargets checks every sharing target against the caller's
// full organisation tree. Any unmatched organisation fails the whole
// mutation; partial acceptance is not allowed.
func (s *Service) validateAccessTargets(ctx context.Context, callerID string, accesses []models.FormAccess) error {
	if len(accesses) == 0 {
		return nil
	}

	tree, err := s.resolver.FullTree(ctx, callerID)
	if err != nil {
		return fmt.Errorf("%w: organisation directory: %v", ErrUpstream, err)
	}

	known := make(map[string]struct{}, len(tree))
	for _, org := range tree {
		known[org.ID] = struct{}{}
	}

	for _, fa := range accesses {
		if _, ok := known[fa.OrganisationID]; !ok {
			return ErrForbidden
		}
	}

	return nil
}
