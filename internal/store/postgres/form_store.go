package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/formdesk/formdesk/internal/models"
	"github.com/formdesk/formdesk/internal/store"
)

// FormStore implements store.FormStore on PostgreSQL. The full form is kept
// as a JSONB document; the columns the query paths filter and sort on are
// denormalised alongside it and rewritten on every upsert.
type FormStore struct {
	pool *pgxpool.Pool
}

var _ store.FormStore = (*FormStore)(nil)

// NewFormStore creates a PostgreSQL-backed form store and runs any pending
// migrations.
func NewFormStore(ctx context.Context, poolCfg *PoolConfig) (*FormStore, error) {
	pool, err := NewPool(ctx, poolCfg)
	if err != nil {
		return nil, err
	}

	if err := runMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &FormStore{pool: pool}, nil
}

// NewFormStoreWithPool wraps an existing pool without running migrations.
// Used by tests that manage schema setup themselves.
func NewFormStoreWithPool(pool *pgxpool.Pool) *FormStore {
	return &FormStore{pool: pool}
}

// Close releases the connection pool.
func (s *FormStore) Close() {
	s.pool.Close()
}

// Upsert inserts or replaces a form, assigning an id when the form has none.
func (s *FormStore) Upsert(ctx context.Context, form *models.Form) (string, error) {
	if form.ID == "" {
		form.ID = uuid.NewString()
	}

	doc, err := json.Marshal(form)
	if err != nil {
		return "", fmt.Errorf("failed to marshal form: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO forms (
			id, owner_id, owner_name, title, description,
			created_date, modified_date, deadline,
			is_pinned, pinned_until_date, tags, access_org_ids, doc
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			owner_id = EXCLUDED.owner_id,
			owner_name = EXCLUDED.owner_name,
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			created_date = EXCLUDED.created_date,
			modified_date = EXCLUDED.modified_date,
			deadline = EXCLUDED.deadline,
			is_pinned = EXCLUDED.is_pinned,
			pinned_until_date = EXCLUDED.pinned_until_date,
			tags = EXCLUDED.tags,
			access_org_ids = EXCLUDED.access_org_ids,
			doc = EXCLUDED.doc
	`,
		form.ID, form.OwnerID, form.OwnerName, form.Title, form.Description,
		form.CreatedDate, form.ModifiedDate, form.Deadline,
		form.IsPinned, form.PinnedUntilDate, tagsOf(form), accessOrgIDs(form), doc,
	)
	if err != nil {
		return "", mapPostgresError(err)
	}

	return form.ID, nil
}

// GetByID fetches a form by id across all owner partitions.
func (s *FormStore) GetByID(ctx context.Context, id string) (*models.Form, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx, `SELECT doc FROM forms WHERE id = $1`, id).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrFormNotFound
		}
		return nil, mapPostgresError(err)
	}

	return decodeForm(doc)
}

// Delete removes a form scoped by its owner.
func (s *FormStore) Delete(ctx context.Context, id, ownerID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM forms WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return mapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrFormNotFound
	}
	return nil
}

// Find runs the query and returns one page plus the total count computed
// over the same predicate before skip/take.
func (s *FormStore) Find(ctx context.Context, q *store.Query) ([]*models.Form, int64, error) {
	where, args := buildWhere(q)

	var total int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM forms`+where, args...).Scan(&total); err != nil {
		return nil, 0, mapPostgresError(err)
	}

	query := `SELECT doc FROM forms` + where + orderBy(q.Sort, q.Order)

	argIdx := len(args) + 1
	if q.Paginated() {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
		args = append(args, *q.PerPage, *q.Page**q.PerPage)
	}

	formsPage, err := s.queryForms(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}

	return formsPage, total, nil
}

// FindPinned returns visible, unexpired pinned forms, newest first.
func (s *FormStore) FindPinned(ctx context.Context, callerID string, orgIDs []string, now time.Time) ([]*models.Form, error) {
	return s.queryForms(ctx, `
		SELECT doc FROM forms
		WHERE (owner_id = $1 OR access_org_ids && $2)
		  AND is_pinned
		  AND (pinned_until_date IS NULL OR pinned_until_date > $3)
		ORDER BY created_date DESC, id
	`, callerID, orgSlice(orgIDs), now)
}

func (s *FormStore) queryForms(ctx context.Context, query string, args ...any) ([]*models.Form, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapPostgresError(err)
	}
	defer rows.Close()

	var out []*models.Form
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, mapPostgresError(err)
		}
		form, err := decodeForm(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, form)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPostgresError(err)
	}

	return out, nil
}

func buildWhere(q *store.Query) (string, []any) {
	where := " WHERE (owner_id = $1 OR access_org_ids && $2)"
	args := []any{q.CallerID, orgSlice(q.OrgIDs)}
	argIdx := 3

	if q.StartDate != nil {
		where += fmt.Sprintf(" AND created_date >= $%d", argIdx)
		args = append(args, *q.StartDate)
		argIdx++
	}
	if q.EndDate != nil {
		where += fmt.Sprintf(" AND created_date < $%d", argIdx)
		args = append(args, *q.EndDate)
		argIdx++
	}

	if q.Search != "" {
		where += fmt.Sprintf(" AND (title ILIKE $%d OR owner_name ILIKE $%d OR description ILIKE $%d)",
			argIdx, argIdx, argIdx)
		args = append(args, "%"+escapeLike(q.Search)+"%")
		argIdx++
	}

	if len(q.Tags) > 0 {
		where += fmt.Sprintf(" AND tags && $%d", argIdx)
		args = append(args, q.Tags)
	}

	return where, args
}

// orderBy maps the closed sort enum onto columns. Without an explicit sort
// the default is created_date descending, which keeps pagination stable.
func orderBy(field store.SortField, order store.SortOrder) string {
	direction := "ASC"
	if order == store.SortDesc {
		direction = "DESC"
	}

	switch field {
	case store.SortTitle:
		return fmt.Sprintf(" ORDER BY title %s, id", direction)
	case store.SortOwnerName:
		return fmt.Sprintf(" ORDER BY owner_name %s, id", direction)
	case store.SortDeadline:
		return fmt.Sprintf(" ORDER BY deadline %s, id", direction)
	case store.SortCreatedDate:
		return fmt.Sprintf(" ORDER BY created_date %s, id", direction)
	default:
		return " ORDER BY created_date DESC, id"
	}
}

func decodeForm(doc []byte) (*models.Form, error) {
	var form models.Form
	if err := json.Unmarshal(doc, &form); err != nil {
		return nil, fmt.Errorf("failed to unmarshal form: %w", err)
	}
	return &form, nil
}

func tagsOf(form *models.Form) []string {
	if form.Tags == nil {
		return []string{}
	}
	return form.Tags
}

func accessOrgIDs(form *models.Form) []string {
	ids := make([]string, 0, len(form.FormAccesses))
	for _, fa := range form.FormAccesses {
		ids = append(ids, fa.OrganisationID)
	}
	return ids
}

func orgSlice(orgIDs []string) []string {
	if orgIDs == nil {
		return []string{}
	}
	return orgIDs
}

func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
