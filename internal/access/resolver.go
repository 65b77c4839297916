package access

import (
	"context"
	"strings"
)

// Resolver turns a caller identity into the set of organisation ids whose
// shared forms they may see. Failures from the directory propagate to the
// caller untouched; no caching or retry happens at this layer.
type Resolver struct {
	dir Directory
}

// NewResolver creates a resolver over the given directory.
func NewResolver(dir Directory) *Resolver {
	return &Resolver{dir: dir}
}

// AccessibleOrgIDs resolves the flattened organisation-id set for reads.
func (r *Resolver) AccessibleOrgIDs(ctx context.Context, userID string) ([]string, error) {
	orgs, err := r.dir.AccessibleOrganisations(ctx, userID)
	if err != nil {
		return nil, err
	}
	return FlattenOrgIDs(orgs), nil
}

// FullTree returns the caller's full organisation tree, used to validate
// sharing targets on create and update.
func (r *Resolver) FullTree(ctx context.Context, userID string) ([]Organisation, error) {
	return r.dir.FullOrganisationsTree(ctx, userID)
}

// FlattenOrgIDs splits each organisation's FullID path on "_", drops the
// root segment and unions the rest, de-duplicated in first-seen order.
// Membership in an org grants visibility into its ancestor-qualified
// descendant scopes, never the path root itself.
func FlattenOrgIDs(orgs []Organisation) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, org := range orgs {
		segments := strings.Split(org.FullID, "_")
		if len(segments) < 2 {
			continue
		}
		for _, segment := range segments[1:] {
			if _, ok := seen[segment]; ok {
				continue
			}
			seen[segment] = struct{}{}
			ids = append(ids, segment)
		}
	}
	return ids
}
