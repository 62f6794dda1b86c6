package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/marketbridge/identity-session/internal/core/domain"
	"github.com/marketbridge/identity-session/internal/core/ports"
)

const credentialsCollection = "credentials"

type CredentialRepository struct {
	coll *mongo.Collection
}

var _ ports.CredentialRepository = (*CredentialRepository)(nil)

func NewCredentialRepository(db *mongo.Database) *CredentialRepository {
	return &CredentialRepository{coll: db.Collection(credentialsCollection)}
}

type credentialDoc struct {
	ID           string `bson:"_id"`
	Email        string `bson:"email"`
	PasswordHash string `bson:"password_hash,omitempty"`
	DisplayName  string `bson:"display_name,omitempty"`
	PhotoURL     string `bson:"photo_url,omitempty"`
	Disabled     bool   `bson:"disabled"`
	CreatedAt    int64  `bson:"created_at"`
	UpdatedAt    int64  `bson:"updated_at"`
}

func (r *CredentialRepository) Create(ctx context.Context, cred *domain.Credential) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := credentialDoc{
		ID:           cred.PrincipalID,
		Email:        cred.Email,
		PasswordHash: cred.PasswordHash,
		DisplayName:  cred.DisplayName,
		PhotoURL:     cred.PhotoURL,
		Disabled:     cred.Disabled,
		CreatedAt:    cred.CreatedAt.Unix(),
		UpdatedAt:    cred.UpdatedAt.Unix(),
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrEmailInUse
		}
		return fmt.Errorf("insert credential: %w", err)
	}
	return nil
}

func (r *CredentialRepository) FindByEmail(ctx context.Context, email string) (*domain.Credential, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *CredentialRepository) FindByID(ctx context.Context, principalID string) (*domain.Credential, error) {
	return r.findOne(ctx, bson.M{"_id": principalID})
}

func (r *CredentialRepository) UpdateProfile(ctx context.Context, principalID string, profile domain.DisplayProfile) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	set := bson.M{"updated_at": time.Now().UTC().Unix()}
	if profile.DisplayName != "" {
		set["display_name"] = profile.DisplayName
	}
	if profile.PhotoURL != "" {
		set["photo_url"] = profile.PhotoURL
	}

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": principalID}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update credential profile: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrNoSuchAccount
	}
	return nil
}

// EnsureIndexes makes email unique so concurrent sign-ups cannot both win.
func (r *CredentialRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (r *CredentialRepository) findOne(ctx context.Context, filter bson.M) (*domain.Credential, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc credentialDoc
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNoSuchAccount
		}
		return nil, fmt.Errorf("find credential: %w", err)
	}

	return &domain.Credential{
		PrincipalID:  doc.ID,
		Email:        doc.Email,
		PasswordHash: doc.PasswordHash,
		DisplayName:  doc.DisplayName,
		PhotoURL:     doc.PhotoURL,
		Disabled:     doc.Disabled,
		CreatedAt:    unixToTime(doc.CreatedAt),
		UpdatedAt:    unixToTime(doc.UpdatedAt),
	}, nil
}

func unixToTime(ts int64) time.Time {
	if ts == 0 {
		return time.Time{}
	}
	return time.Unix(ts, 0).UTC()
}
