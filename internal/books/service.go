package books

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path"
	"strings"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/bookiez/backend/internal/apperr"
	"github.com/bookiez/backend/internal/models"
)

// MaxImageBytes caps uploaded cover images.
const MaxImageBytes = 5 << 20

var errBookNotFound = apperr.New(apperr.ErrNotFound, "Book not found")

// Store defines the interface for listing persistence.
type Store interface {
	Insert(ctx context.Context, b *models.Book) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Book, error)
	List(ctx context.Context, f models.BookFilter, p models.Page) ([]models.Book, int64, error)
	Update(ctx context.Context, id primitive.ObjectID, req models.BookRequest) (*models.Book, error)
	SetImage(ctx context.Context, id primitive.ObjectID, key, url string) (*models.Book, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// ImageStore defines the interface for cover image storage.
type ImageStore interface {
	Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, string, int64, error)
	Remove(ctx context.Context, key string) error
}

// Query is the public search over available listings.
type Query struct {
	Genre     string
	Condition string
	Search    string
}

// Service implements listing CRUD and search.
type Service struct {
	books  Store
	images ImageStore
}

func NewService(books Store, images ImageStore) *Service {
	return &Service{books: books, images: images}
}

// List returns available books matching q, newest first.
func (s *Service) List(ctx context.Context, q Query, p models.Page) (*models.BookPage, error) {
	available := models.BookAvailable
	return s.page(ctx, models.BookFilter{
		Status:    &available,
		Genre:     q.Genre,
		Condition: q.Condition,
		Search:    strings.TrimSpace(q.Search),
	}, p)
}

// ListByOwner returns every book of one owner regardless of status.
func (s *Service) ListByOwner(ctx context.Context, ownerID string, p models.Page) (*models.BookPage, error) {
	owner, err := primitive.ObjectIDFromHex(ownerID)
	if err != nil {
		return nil, apperr.New(apperr.ErrUnauthorized, "Token is not valid")
	}
	return s.page(ctx, models.BookFilter{Owner: &owner}, p)
}

func (s *Service) page(ctx context.Context, f models.BookFilter, p models.Page) (*models.BookPage, error) {
	books, total, err := s.books.List(ctx, f, p)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	if books == nil {
		books = []models.Book{}
	}
	return &models.BookPage{
		Books:       books,
		Total:       total,
		TotalPages:  models.TotalPages(total, p.Limit),
		CurrentPage: p.Page,
	}, nil
}

// Get returns one book.
func (s *Service) Get(ctx context.Context, id string) (*models.Book, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, errBookNotFound
	}
	b, err := s.books.GetByID(ctx, oid)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, errBookNotFound
	}
	return b, err
}

// Create stores a new available listing owned by ownerID.
func (s *Service) Create(ctx context.Context, ownerID string, req models.BookRequest) (*models.Book, error) {
	owner, err := primitive.ObjectIDFromHex(ownerID)
	if err != nil {
		return nil, apperr.New(apperr.ErrUnauthorized, "Token is not valid")
	}
	b := &models.Book{
		Title:       strings.TrimSpace(req.Title),
		Author:      strings.TrimSpace(req.Author),
		Genre:       req.Genre,
		Condition:   req.Condition,
		Description: req.Description,
		Owner:       owner,
		Status:      models.BookAvailable,
		ImageURL:    req.ImageURL,
	}
	if err := s.books.Insert(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// Update changes the owner-editable fields of a book.
func (s *Service) Update(ctx context.Context, id, ownerID string, req models.BookRequest) (*models.Book, error) {
	b, err := s.owned(ctx, id, ownerID, "update")
	if err != nil {
		return nil, err
	}
	req.Title = strings.TrimSpace(req.Title)
	req.Author = strings.TrimSpace(req.Author)
	return s.books.Update(ctx, b.ID, req)
}

// Delete removes a book and its stored image.
func (s *Service) Delete(ctx context.Context, id, ownerID string) error {
	b, err := s.owned(ctx, id, ownerID, "delete")
	if err != nil {
		return err
	}
	if err := s.books.Delete(ctx, b.ID); err != nil {
		return err
	}
	if b.ImageKey != "" && s.images != nil {
		if err := s.images.Remove(ctx, b.ImageKey); err != nil {
			log.Printf("remove image %s: %v", b.ImageKey, err)
		}
	}
	return nil
}

// UploadImage stores a cover image for the book and points imageUrl at it.
func (s *Service) UploadImage(ctx context.Context, id, ownerID string, r io.Reader, size int64, contentType, filename string) (*models.Book, error) {
	if s.images == nil {
		return nil, errors.New("image storage is not configured")
	}
	if !strings.HasPrefix(contentType, "image/") {
		return nil, apperr.Invalid("image", "image must be an image file")
	}
	if size <= 0 || size > MaxImageBytes {
		return nil, apperr.Invalid("image", "image must be between 1 byte and 5 MB")
	}

	b, err := s.owned(ctx, id, ownerID, "update")
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("books/%s/%s%s", b.ID.Hex(), uuid.NewString(), strings.ToLower(path.Ext(filename)))
	if err := s.images.Upload(ctx, key, r, size, contentType); err != nil {
		return nil, err
	}
	updated, err := s.books.SetImage(ctx, b.ID, key, ImageURL(b.ID))
	if err != nil {
		return nil, err
	}
	if b.ImageKey != "" {
		if err := s.images.Remove(ctx, b.ImageKey); err != nil {
			log.Printf("remove replaced image %s: %v", b.ImageKey, err)
		}
	}
	return updated, nil
}

// OpenImage returns the stored cover image of a book.
func (s *Service) OpenImage(ctx context.Context, id string) (io.ReadCloser, string, int64, error) {
	b, err := s.Get(ctx, id)
	if err != nil {
		return nil, "", 0, err
	}
	if b.ImageKey == "" || s.images == nil {
		return nil, "", 0, apperr.New(apperr.ErrNotFound, "Image not found")
	}
	return s.images.Open(ctx, b.ImageKey)
}

// ImageURL is the public path serving a book's stored image.
func ImageURL(id primitive.ObjectID) string {
	return "/api/books/" + id.Hex() + "/image"
}

func (s *Service) owned(ctx context.Context, id, ownerID, action string) (*models.Book, error) {
	b, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Owner.Hex() != ownerID {
		return nil, apperr.New(apperr.ErrForbidden, "Not authorized to "+action+" this book")
	}
	return b, nil
}
