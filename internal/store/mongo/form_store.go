package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"github.com/formdesk/formdesk/internal/models"
	"github.com/formdesk/formdesk/internal/store"
)

// Config holds MongoDB store configuration.
type Config struct {
	URI        string
	Database   string
	Collection string
}

// ApplyDefaults applies default values to unset configuration fields.
func (c *Config) ApplyDefaults() {
	if c.Database == "" {
		c.Database = "forms"
	}
	if c.Collection == "" {
		c.Collection = "Forms"
	}
}

// FormStore implements store.FormStore on a MongoDB collection. Documents
// are keyed by id with ownerId as the partition attribute; all writes are
// single-document and rely on the store's per-document atomicity.
type FormStore struct {
	client *mongo.Client
	col    *mongo.Collection
}

var _ store.FormStore = (*FormStore)(nil)

// NewFormStore connects to MongoDB and verifies connectivity.
func NewFormStore(ctx context.Context, cfg Config) (*FormStore, error) {
	if cfg.URI == "" {
		return nil, errors.New("mongo URI is required")
	}
	cfg.ApplyDefaults()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	return &FormStore{
		client: client,
		col:    client.Database(cfg.Database).Collection(cfg.Collection),
	}, nil
}

// Close disconnects the underlying client.
func (s *FormStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Upsert inserts or replaces a form document, assigning an id when the
// form has none.
func (s *FormStore) Upsert(ctx context.Context, form *models.Form) (string, error) {
	if form.ID == "" {
		form.ID = primitive.NewObjectID().Hex()
	}

	_, err := s.col.ReplaceOne(ctx,
		bson.M{"_id": form.ID},
		form,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return "", fmt.Errorf("failed to upsert form: %w", err)
	}

	return form.ID, nil
}

// GetByID fetches a form by id across all owner partitions.
func (s *FormStore) GetByID(ctx context.Context, id string) (*models.Form, error) {
	var form models.Form
	err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&form)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrFormNotFound
		}
		return nil, fmt.Errorf("failed to fetch form: %w", err)
	}
	return &form, nil
}

// Delete removes a form scoped by its owner partition.
func (s *FormStore) Delete(ctx context.Context, id, ownerID string) error {
	res, err := s.col.DeleteOne(ctx, bson.M{"_id": id, "ownerId": ownerID})
	if err != nil {
		return fmt.Errorf("failed to delete form: %w", err)
	}
	if res.DeletedCount == 0 {
		return store.ErrFormNotFound
	}
	return nil
}

// Find runs the query and returns one page plus the total count computed
// over the same filter before skip/take.
func (s *FormStore) Find(ctx context.Context, q *store.Query) ([]*models.Form, int64, error) {
	filter := buildFilter(q)

	findOpts := options.Find().SetSort(sortSpec(q.Sort, q.Order))
	if q.Paginated() {
		findOpts.SetSkip(int64(*q.Page * *q.PerPage))
		findOpts.SetLimit(int64(*q.PerPage))
	}

	cursor, err := s.col.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query forms: %w", err)
	}

	var formsPage []*models.Form
	if err := cursor.All(ctx, &formsPage); err != nil {
		return nil, 0, fmt.Errorf("failed to decode forms: %w", err)
	}

	total, err := s.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count forms: %w", err)
	}

	return formsPage, total, nil
}

// FindPinned returns visible, unexpired pinned forms, newest first.
func (s *FormStore) FindPinned(ctx context.Context, callerID string, orgIDs []string, now time.Time) ([]*models.Form, error) {
	filter := bson.M{
		"$and": []bson.M{
			visibilityFilter(callerID, orgIDs),
			{"isPinned": true},
			{"$or": []bson.M{
				{"pinnedUntilDate": bson.M{"$exists": false}},
				{"pinnedUntilDate": nil},
				{"pinnedUntilDate": bson.M{"$gt": now}},
			}},
		},
	}

	cursor, err := s.col.Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "createdDate", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to query pinned forms: %w", err)
	}

	var formsPinned []*models.Form
	if err := cursor.All(ctx, &formsPinned); err != nil {
		return nil, fmt.Errorf("failed to decode pinned forms: %w", err)
	}

	return formsPinned, nil
}

// visibilityFilter is the always-applied predicate: owner match or a
// shared-organisation intersection.
func visibilityFilter(callerID string, orgIDs []string) bson.M {
	if orgIDs == nil {
		orgIDs = []string{}
	}
	return bson.M{"$or": []bson.M{
		{"ownerId": callerID},
		{"formAccesses.organisationId": bson.M{"$in": orgIDs}},
	}}
}

func buildFilter(q *store.Query) bson.M {
	and := []bson.M{visibilityFilter(q.CallerID, q.OrgIDs)}

	if q.StartDate != nil {
		and = append(and, bson.M{"createdDate": bson.M{"$gte": *q.StartDate}})
	}
	if q.EndDate != nil {
		and = append(and, bson.M{"createdDate": bson.M{"$lt": *q.EndDate}})
	}

	if q.Search != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(q.Search), Options: "i"}
		and = append(and, bson.M{"$or": []bson.M{
			{"title": pattern},
			{"ownerName": pattern},
			{"description": pattern},
		}})
	}

	if len(q.Tags) > 0 {
		and = append(and, bson.M{"tags": bson.M{"$in": q.Tags}})
	}

	return bson.M{"$and": and}
}

// sortSpec maps the closed sort enum onto document fields. Without an
// explicit sort the store default is createdDate descending, which keeps
// pagination stable.
func sortSpec(field store.SortField, order store.SortOrder) bson.D {
	direction := 1
	if order == store.SortDesc {
		direction = -1
	}

	switch field {
	case store.SortTitle:
		return bson.D{{Key: "title", Value: direction}, {Key: "_id", Value: 1}}
	case store.SortOwnerName:
		return bson.D{{Key: "ownerName", Value: direction}, {Key: "_id", Value: 1}}
	case store.SortDeadline:
		return bson.D{{Key: "deadline", Value: direction}, {Key: "_id", Value: 1}}
	case store.SortCreatedDate:
		return bson.D{{Key: "createdDate", Value: direction}, {Key: "_id", Value: 1}}
	default:
		return bson.D{{Key: "createdDate", Value: -1}, {Key: "_id", Value: 1}}
	}
}
