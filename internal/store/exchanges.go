package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/bookiez/backend/internal/models"
)

// ExchangeStore handles exchange request documents in MongoDB.
type ExchangeStore struct {
	col *mongo.Collection
}

func ExchangeQuery(f models.ExchangeFilter) bson.M {
	q := bson.M{}
	if f.Requester != nil {
		q["requester"] = *f.Requester
	}
	if f.Owner != nil {
		q["owner"] = *f.Owner
	}
	return q
}

func (s *ExchangeStore) Insert(ctx context.Context, e *models.Exchange) error {
	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	if e.Status == "" {
		e.Status = models.ExchangePending
	}
	res, err := s.col.InsertOne(ctx, e)
	if err != nil {
		return fmt.Errorf("mongo insert exchange: %w", mapErr(err))
	}
	e.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (s *ExchangeStore) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Exchange, error) {
	var e models.Exchange
	if err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&e); err != nil {
		return nil, mapErr(err)
	}
	return &e, nil
}

func (s *ExchangeStore) List(ctx context.Context, f models.ExchangeFilter, p models.Page) ([]models.Exchange, int64, error) {
	q := ExchangeQuery(f)
	cur, err := s.col.Find(ctx, q, findPage(p.Skip(), p.Limit))
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)

	var out []models.Exchange
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, err
	}
	total, err := s.col.CountDocuments(ctx, q)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// UpdateStatus moves the exchange from status from to status, refreshes
// updated_at and, when completedAt is non-nil, records the completion time.
// It returns apperr.ErrNotFound when no exchange with that id is still in
// status from.
func (s *ExchangeStore) UpdateStatus(ctx context.Context, id primitive.ObjectID, from, status models.ExchangeStatus, completedAt *time.Time) (*models.Exchange, error) {
	set := bson.M{"status": status, "updated_at": time.Now().UTC()}
	if completedAt != nil {
		set["completed_at"] = completedAt.UTC()
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var e models.Exchange
	if err := s.col.FindOneAndUpdate(ctx, bson.M{"_id": id, "status": from}, bson.M{"$set": set}, opts).Decode(&e); err != nil {
		return nil, mapErr(err)
	}
	return &e, nil
}

func (s *ExchangeStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("mongo delete exchange: %w", err)
	}
	if res.DeletedCount == 0 {
		return mapErr(mongo.ErrNoDocuments)
	}
	return nil
}
