package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/marketbridge/identity-session/internal/core/domain"
	"github.com/marketbridge/identity-session/internal/core/ports"
)

// recordDoc is the stored shape of a profile record: the normalized email is
// the document id.
type recordDoc struct {
	Key                  string `bson:"_id"`
	domain.ProfileRecord `bson:",inline"`
}

// RecordStore is the record store gateway over the admins and users
// collections.
type RecordStore struct {
	db      *mongo.Database
	timeout time.Duration
}

var _ ports.RecordStore = (*RecordStore)(nil)

func NewRecordStore(db *mongo.Database) *RecordStore {
	return &RecordStore{db: db, timeout: defaultTimeout}
}

// Get fetches the record stored under key.
func (s *RecordStore) Get(ctx context.Context, collection, key string) (*domain.ProfileRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var doc recordDoc
	err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrRecordNotFound
		}
		return nil, &domain.StoreError{Collection: collection, Op: "get", Err: err}
	}
	return &doc.ProfileRecord, nil
}

// Set writes rec under key. Without Merge the document is replaced; with
// Merge only the non-empty fields of rec are written and created_at is only
// set when the document is new.
func (s *RecordStore) Set(ctx context.Context, collection, key string, rec *domain.ProfileRecord, opts domain.SetOptions) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	col := s.db.Collection(collection)
	if !opts.Merge {
		_, err := col.ReplaceOne(ctx, bson.M{"_id": key}, recordDoc{Key: key, ProfileRecord: *rec}, options.Replace().SetUpsert(true))
		if err != nil {
			return &domain.StoreError{Collection: collection, Op: "set", Err: err}
		}
		return nil
	}

	update, err := mergeUpdate(rec)
	if err != nil {
		return &domain.StoreError{Collection: collection, Op: "merge", Err: err}
	}
	if len(update) == 0 {
		return nil
	}
	if _, err := col.UpdateOne(ctx, bson.M{"_id": key}, update, options.Update().SetUpsert(true)); err != nil {
		return &domain.StoreError{Collection: collection, Op: "merge", Err: err}
	}
	return nil
}

// mergeUpdate builds the $set / $setOnInsert document for a merge write.
// Empty fields are dropped by the omitempty tags on ProfileRecord.
func mergeUpdate(rec *domain.ProfileRecord) (bson.M, error) {
	raw, err := bson.Marshal(rec)
	if err != nil {
		return nil, err
	}
	var fields bson.M
	if err := bson.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}

	update := bson.M{}
	if created, ok := fields["created_at"]; ok {
		delete(fields, "created_at")
		update["$setOnInsert"] = bson.M{"created_at": created}
	}
	if len(fields) > 0 {
		update["$set"] = fields
	}
	return update, nil
}

// EnsureIndexes creates the secondary indexes used by back-office queries.
func (s *RecordStore) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := s.db.Collection(domain.CollectionUsers).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "role", Value: 1}}},
		{Keys: bson.D{{Key: "subscription.ends_at", Value: 1}}, Options: options.Index().SetSparse(true)},
	})
	return err
}
