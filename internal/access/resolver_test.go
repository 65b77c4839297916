package access

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFlattenOrgIDs(t *testing.T) {
	t.Run("drops the root segment of each path", func(t *testing.T) {
		ids := FlattenOrgIDs([]Organisation{
			{ID: "b", FullID: "root_a_b"},
		})
		require.Equal(t, []string{"a", "b"}, ids)
	})

	t.Run("unions segments across organisations without duplicates", func(t *testing.T) {
		ids := FlattenOrgIDs([]Organisation{
			{ID: "b", FullID: "root_a_b"},
			{ID: "c", FullID: "root_a_c"},
		})
		require.Equal(t, []string{"a", "b", "c"}, ids)
	})

	t.Run("skips paths with a single segment", func(t *testing.T) {
		ids := FlattenOrgIDs([]Organisation{
			{ID: "root", FullID: "root"},
		})
		require.Empty(t, ids)
	})

	t.Run("preserves first-seen order", func(t *testing.T) {
		ids := FlattenOrgIDs([]Organisation{
			{ID: "z", FullID: "root_z"},
			{ID: "a", FullID: "root_a_z"},
		})
		require.Equal(t, []string{"z", "a"}, ids)
	})

	t.Run("empty input yields no ids", func(t *testing.T) {
		require.Empty(t, FlattenOrgIDs(nil))
	})
}

type fakeDirectory struct {
	orgs []Organisation
	tree []Organisation
	err  error
}

func (f *fakeDirectory) AccessibleOrganisations(ctx context.Context, userID string) ([]Organisation, error) {
	return f.orgs, f.err
}

func (f *fakeDirectory) FullOrganisationsTree(ctx context.Context, userID string) ([]Organisation, error) {
	return f.tree, f.err
}

func (f *fakeDirectory) UsersByOrganisationID(ctx context.Context, orgID string, includeDetails bool) ([]User, error) {
	return nil, f.err
}

func TestResolver_AccessibleOrgIDs(t *testing.T) {
	t.Run("flattens directory organisations", func(t *testing.T) {
		resolver := NewResolver(&fakeDirectory{orgs: []Organisation{
			{ID: "team-a", FullID: "acme_dept_team-a"},
		}})

		ids, err := resolver.AccessibleOrgIDs(context.Background(), "user-1")
		require.NoError(t, err)
		require.Equal(t, []string{"dept", "team-a"}, ids)
	})

	t.Run("propagates directory errors", func(t *testing.T) {
		dirErr := errors.New("directory unavailable")
		resolver := NewResolver(&fakeDirectory{err: dirErr})

		_, err := resolver.AccessibleOrgIDs(context.Background(), "user-1")
		require.ErrorIs(t, err, dirErr)
	})
}
