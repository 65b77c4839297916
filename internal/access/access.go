package access

import "context"

// Organisation is one node of the organisation directory. FullID is the
// hierarchical path of ancestor ids joined by underscores, e.g.
// "root_dept_team".
type Organisation struct {
	ID     string `json:"id"`
	FullID string `json:"fullId"`
}

// User is a directory member record with contact details.
type User struct {
	ID                string `json:"id"`
	Email             string `json:"email"`
	PreferredLanguage string `json:"preferredLanguage"`
}

// Directory is the organisation directory consumed by the forms service.
// The two organisation queries are deliberately distinct: accessible
// organisations drive read visibility, the full tree drives mutation-time
// sharing validation. They must not be conflated.
type Directory interface {
	AccessibleOrganisations(ctx context.Context, userID string) ([]Organisation, error)
	FullOrganisationsTree(ctx context.Context, userID string) ([]Organisation, error)
	UsersByOrganisationID(ctx context.Context, orgID string, includeDetails bool) ([]User, error)
}
