package store

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/bookiez/backend/internal/models"
)

// BookStore handles listing CRUD and status changes in MongoDB.
type BookStore struct {
	col *mongo.Collection
}

// BookQuery builds the Mongo filter for f. Search matches title or author
// as a case-insensitive substring.
func BookQuery(f models.BookFilter) bson.M {
	q := bson.M{}
	if f.Status != nil {
		q["status"] = *f.Status
	}
	if f.Owner != nil {
		q["owner"] = *f.Owner
	}
	if f.Genre != "" {
		q["genre"] = f.Genre
	}
	if f.Condition != "" {
		q["condition"] = f.Condition
	}
	if f.Search != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(f.Search), Options: "i"}
		q["$or"] = bson.A{
			bson.M{"title": pattern},
			bson.M{"author": pattern},
		}
	}
	return q
}

func (s *BookStore) Insert(ctx context.Context, b *models.Book) error {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	if b.Status == "" {
		b.Status = models.BookAvailable
	}
	res, err := s.col.InsertOne(ctx, b)
	if err != nil {
		return fmt.Errorf("mongo insert book: %w", mapErr(err))
	}
	b.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (s *BookStore) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Book, error) {
	var b models.Book
	if err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&b); err != nil {
		return nil, mapErr(err)
	}
	return &b, nil
}

// List returns one page of books matching f, newest first, and the total
// number of matches.
func (s *BookStore) List(ctx context.Context, f models.BookFilter, p models.Page) ([]models.Book, int64, error) {
	q := BookQuery(f)
	cur, err := s.col.Find(ctx, q, findPage(p.Skip(), p.Limit))
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)

	var books []models.Book
	if err := cur.All(ctx, &books); err != nil {
		return nil, 0, err
	}
	total, err := s.col.CountDocuments(ctx, q)
	if err != nil {
		return nil, 0, err
	}
	return books, total, nil
}

// Update replaces the owner-editable fields. Status and owner are never
// touched here.
func (s *BookStore) Update(ctx context.Context, id primitive.ObjectID, req models.BookRequest) (*models.Book, error) {
	set := bson.M{
		"title":       req.Title,
		"author":      req.Author,
		"genre":       req.Genre,
		"condition":   req.Condition,
		"description": req.Description,
	}
	if req.ImageURL != "" {
		set["image_url"] = req.ImageURL
	}
	return s.findAndSet(ctx, bson.M{"_id": id}, set)
}

// SetImage records the stored object key and its public URL.
func (s *BookStore) SetImage(ctx context.Context, id primitive.ObjectID, key, url string) (*models.Book, error) {
	return s.findAndSet(ctx, bson.M{"_id": id}, bson.M{"image_key": key, "image_url": url})
}

// SetStatus overwrites the status regardless of its current value.
func (s *BookStore) SetStatus(ctx context.Context, id primitive.ObjectID, status models.BookStatus) error {
	res, err := s.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"status": status}})
	if err != nil {
		return fmt.Errorf("mongo set book status: %w", err)
	}
	if res.MatchedCount == 0 {
		return mapErr(mongo.ErrNoDocuments)
	}
	return nil
}

// SwapStatus moves the book from one status to another only if it is
// currently in from. It reports whether the swap happened.
func (s *BookStore) SwapStatus(ctx context.Context, id primitive.ObjectID, from, to models.BookStatus) (bool, error) {
	res, err := s.col.UpdateOne(ctx,
		bson.M{"_id": id, "status": from},
		bson.M{"$set": bson.M{"status": to}},
	)
	if err != nil {
		return false, fmt.Errorf("mongo swap book status: %w", err)
	}
	return res.ModifiedCount == 1, nil
}

func (s *BookStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("mongo delete book: %w", err)
	}
	if res.DeletedCount == 0 {
		return mapErr(mongo.ErrNoDocuments)
	}
	return nil
}

func (s *BookStore) findAndSet(ctx context.Context, filter, set bson.M) (*models.Book, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var b models.Book
	if err := s.col.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&b); err != nil {
		return nil, mapErr(err)
	}
	return &b, nil
}
