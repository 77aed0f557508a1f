package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/bookiez/backend/internal/models"
)

// AccountStore handles account CRUD in MongoDB.
type AccountStore struct {
	col *mongo.Collection
}

// Create inserts a new account. Emails are stored lower-cased; a duplicate
// email surfaces as apperr.ErrConflict through the unique index.
func (s *AccountStore) Create(ctx context.Context, a *models.Account) error {
	a.Email = strings.ToLower(strings.TrimSpace(a.Email))
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	res, err := s.col.InsertOne(ctx, a)
	if err != nil {
		return fmt.Errorf("mongo insert account: %w", mapErr(err))
	}
	a.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (s *AccountStore) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	var a models.Account
	filter := bson.M{"email": strings.ToLower(strings.TrimSpace(email))}
	if err := s.col.FindOne(ctx, filter).Decode(&a); err != nil {
		return nil, mapErr(err)
	}
	return &a, nil
}

func (s *AccountStore) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Account, error) {
	var a models.Account
	if err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&a); err != nil {
		return nil, mapErr(err)
	}
	return &a, nil
}

// UpdateProfile sets the non-empty fields of u and returns the new document.
func (s *AccountStore) UpdateProfile(ctx context.Context, id primitive.ObjectID, u models.ProfileUpdate) (*models.Account, error) {
	if u.Empty() {
		return s.GetByID(ctx, id)
	}

	set := bson.M{}
	if u.FirstName != "" {
		set["first_name"] = u.FirstName
	}
	if u.LastName != "" {
		set["last_name"] = u.LastName
	}
	if u.Location != "" {
		set["location"] = u.Location
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var a models.Account
	if err := s.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&a); err != nil {
		return nil, mapErr(err)
	}
	return &a, nil
}
