//go:build integration

package mongo

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/formdesk/formdesk/internal/models"
	"github.com/formdesk/formdesk/internal/store"
)

// setupFormStore starts a throwaway mongo container and returns a store bound
// to a fresh database. The container is torn down with the test.
func setupFormStore(t *testing.T, ctx context.Context) *FormStore {
	t.Helper()

	req := testcontainers.ContainerRequest{
		Image:        "mongo:7",
		ExposedPorts: []string{"27017/tcp"},
		WaitingFor:   wait.ForLog("Waiting for connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "27017")
	require.NoError(t, err)

	uri := fmt.Sprintf("mongodb://%s:%s", host, port.Port())

	s, err := NewFormStore(ctx, Config{URI: uri, Database: "forms_test"})
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = s.Close(ctx)
		_ = container.Terminate(ctx)
	})

	return s
}

func TestFormStore_Integration_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := setupFormStore(t, ctx)

	form := &models.Form{
		OwnerID:     "u1",
		OwnerName:   "Dana",
		Title:       "Weekly Report",
		CreatedDate: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
		Tags:        []string{"finance"},
		Rows: [][]models.CellValue{
			{models.NumberValue(42)},
		},
		FormAccesses: []models.FormAccess{
			{OrganisationID: "org-a", FullOrganisationID: "root_org-a"},
		},
	}

	id, err := s.Upsert(ctx, form)
	require.NoError(t, err)

	got, err := s.GetByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, form.Title, got.Title)
	require.Equal(t, form.FormAccesses, got.FormAccesses)
	require.Equal(t, form.Rows, got.Rows)
}

func TestFormStore_Integration_VisibilityAndCount(t *testing.T) {
	ctx := context.Background()
	s := setupFormStore(t, ctx)

	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	seed := []*models.Form{
		{OwnerID: "caller", Title: "Owned Budget", CreatedDate: base},
		{OwnerID: "other", Title: "Shared Survey", CreatedDate: base.Add(time.Hour),
			FormAccesses: []models.FormAccess{{OrganisationID: "org-a", FullOrganisationID: "root_org-a"}}},
		{OwnerID: "other", Title: "Hidden Doc", CreatedDate: base.Add(2 * time.Hour)},
	}
	for _, f := range seed {
		_, err := s.Upsert(ctx, f)
		require.NoError(t, err)
	}

	page, perPage := 0, 1
	results, total, err := s.Find(ctx, &store.Query{
		CallerID: "caller",
		OrgIDs:   []string{"org-a"},
		Page:     &page,
		PerPage:  &perPage,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.EqualValues(t, 2, total)
}

func TestFormStore_Integration_Delete(t *testing.T) {
	ctx := context.Background()
	s := setupFormStore(t, ctx)

	id, err := s.Upsert(ctx, &models.Form{OwnerID: "u1", Title: "Weekly Report", CreatedDate: time.Now().UTC()})
	require.NoError(t, err)

	require.ErrorIs(t, s.Delete(ctx, id, "intruder"), store.ErrFormNotFound)
	require.NoError(t, s.Delete(ctx, id, "u1"))
}
