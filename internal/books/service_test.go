package books

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/bookiez/backend/internal/apperr"
	"github.com/bookiez/backend/internal/models"
)

type memBooks struct {
	mu    sync.Mutex
	books map[primitive.ObjectID]*models.Book
	clock time.Time
}

func newMemBooks() *memBooks {
	return &memBooks{
		books: map[primitive.ObjectID]*models.Book{},
		clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (m *memBooks) Insert(_ context.Context, b *models.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clock = m.clock.Add(time.Minute)
	b.ID = primitive.NewObjectID()
	b.CreatedAt = m.clock
	cp := *b
	m.books[b.ID] = &cp
	return nil
}

func (m *memBooks) GetByID(_ context.Context, id primitive.ObjectID) (*models.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.books[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *memBooks) List(_ context.Context, f models.BookFilter, p models.Page) ([]models.Book, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []models.Book
	for _, b := range m.books {
		if f.Status != nil && b.Status != *f.Status {
			continue
		}
		if f.Owner != nil && b.Owner != *f.Owner {
			continue
		}
		if f.Genre != "" && b.Genre != f.Genre {
			continue
		}
		if f.Search != "" {
			s := strings.ToLower(f.Search)
			if !strings.Contains(strings.ToLower(b.Title), s) && !strings.Contains(strings.ToLower(b.Author), s) {
				continue
			}
		}
		all = append(all, *b)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := int64(len(all))
	start, end := p.Skip(), p.Skip()+p.Limit
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

func (m *memBooks) Update(_ context.Context, id primitive.ObjectID, req models.BookRequest) (*models.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.books[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	b.Title, b.Author, b.Genre, b.Condition, b.Description = req.Title, req.Author, req.Genre, req.Condition, req.Description
	if req.ImageURL != "" {
		b.ImageURL = req.ImageURL
	}
	cp := *b
	return &cp, nil
}

func (m *memBooks) SetImage(_ context.Context, id primitive.ObjectID, key, url string) (*models.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.books[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	b.ImageKey, b.ImageURL = key, url
	cp := *b
	return &cp, nil
}

func (m *memBooks) Delete(_ context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.books[id]; !ok {
		return apperr.ErrNotFound
	}
	delete(m.books, id)
	return nil
}

func (m *memBooks) setStatus(id primitive.ObjectID, s models.BookStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.books[id].Status = s
}

type storedImage struct {
	data        []byte
	contentType string
}

type memImages struct {
	mu      sync.Mutex
	objects map[string]storedImage
}

func newMemImages() *memImages {
	return &memImages{objects: map[string]storedImage{}}
}

func (m *memImages) Upload(_ context.Context, key string, r io.Reader, _ int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = storedImage{data: data, contentType: contentType}
	return nil
}

func (m *memImages) Open(_ context.Context, key string) (io.ReadCloser, string, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, "", 0, apperr.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(obj.data)), obj.contentType, int64(len(obj.data)), nil
}

func (m *memImages) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memImages) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for k := range m.objects {
		out = append(out, k)
	}
	return out
}

func dune() models.BookRequest {
	return models.BookRequest{
		Title:       " Dune ",
		Author:      "Frank Herbert",
		Genre:       "Science Fiction",
		Condition:   "Good",
		Description: "Spice must flow",
	}
}

func TestCreate_StartsAvailable(t *testing.T) {
	svc := NewService(newMemBooks(), newMemImages())
	owner := primitive.NewObjectID()

	b, err := svc.Create(context.Background(), owner.Hex(), dune())

	require.NoError(t, err)
	assert.Equal(t, "Dune", b.Title)
	assert.Equal(t, models.BookAvailable, b.Status)
	assert.Equal(t, owner, b.Owner)
	assert.False(t, b.ID.IsZero())
}

func TestList_OnlyAvailableAndPaged(t *testing.T) {
	store := newMemBooks()
	svc := NewService(store, nil)
	owner := primitive.NewObjectID()

	var ids []primitive.ObjectID
	for i := 0; i < 12; i++ {
		b, err := svc.Create(context.Background(), owner.Hex(), dune())
		require.NoError(t, err)
		ids = append(ids, b.ID)
	}
	store.setStatus(ids[0], models.BookPending)
	store.setStatus(ids[1], models.BookExchanged)

	page, err := svc.List(context.Background(), Query{}, models.Page{Page: 1, Limit: 4})
	require.NoError(t, err)
	assert.Equal(t, int64(10), page.Total)
	assert.Equal(t, int64(3), page.TotalPages)
	assert.Equal(t, int64(1), page.CurrentPage)
	assert.Len(t, page.Books, 4)
	assert.Equal(t, ids[11], page.Books[0].ID)

	last, err := svc.List(context.Background(), Query{}, models.Page{Page: 3, Limit: 4})
	require.NoError(t, err)
	assert.Len(t, last.Books, 2)

	mine, err := svc.ListByOwner(context.Background(), owner.Hex(), models.Page{Page: 1, Limit: 100})
	require.NoError(t, err)
	assert.Equal(t, int64(12), mine.Total)
}

func TestList_EmptyIsNotNil(t *testing.T) {
	svc := NewService(newMemBooks(), nil)

	page, err := svc.List(context.Background(), Query{Search: "nothing"}, models.Page{Page: 1, Limit: 10})

	require.NoError(t, err)
	assert.NotNil(t, page.Books)
	assert.Equal(t, int64(0), page.TotalPages)
}

func TestGet_NotFound(t *testing.T) {
	svc := NewService(newMemBooks(), nil)

	for _, id := range []string{primitive.NewObjectID().Hex(), "bogus"} {
		_, err := svc.Get(context.Background(), id)
		require.ErrorIs(t, err, apperr.ErrNotFound)
		assert.Equal(t, "Book not found", apperr.Message(err))
	}
}

func TestUpdateDelete_OwnerOnly(t *testing.T) {
	svc := NewService(newMemBooks(), newMemImages())
	owner, other := primitive.NewObjectID(), primitive.NewObjectID()
	b, err := svc.Create(context.Background(), owner.Hex(), dune())
	require.NoError(t, err)

	req := dune()
	req.Title = "Dune Messiah"

	_, err = svc.Update(context.Background(), b.ID.Hex(), other.Hex(), req)
	require.ErrorIs(t, err, apperr.ErrForbidden)
	assert.Equal(t, "Not authorized to update this book", apperr.Message(err))

	err = svc.Delete(context.Background(), b.ID.Hex(), other.Hex())
	require.ErrorIs(t, err, apperr.ErrForbidden)
	assert.Equal(t, "Not authorized to delete this book", apperr.Message(err))

	updated, err := svc.Update(context.Background(), b.ID.Hex(), owner.Hex(), req)
	require.NoError(t, err)
	assert.Equal(t, "Dune Messiah", updated.Title)
	assert.Equal(t, models.BookAvailable, updated.Status)

	require.NoError(t, svc.Delete(context.Background(), b.ID.Hex(), owner.Hex()))
	_, err = svc.Get(context.Background(), b.ID.Hex())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUploadImage(t *testing.T) {
	images := newMemImages()
	svc := NewService(newMemBooks(), images)
	owner := primitive.NewObjectID()
	b, err := svc.Create(context.Background(), owner.Hex(), dune())
	require.NoError(t, err)

	png := []byte("\x89PNG fake")
	updated, err := svc.UploadImage(context.Background(), b.ID.Hex(), owner.Hex(),
		bytes.NewReader(png), int64(len(png)), "image/png", "Cover.PNG")
	require.NoError(t, err)
	assert.Equal(t, ImageURL(b.ID), updated.ImageURL)
	assert.True(t, strings.HasPrefix(updated.ImageKey, "books/"+b.ID.Hex()+"/"))
	assert.True(t, strings.HasSuffix(updated.ImageKey, ".png"))

	rc, ct, size, err := svc.OpenImage(context.Background(), b.ID.Hex())
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, png, data)
	assert.Equal(t, "image/png", ct)
	assert.Equal(t, int64(len(png)), size)

	// Replacing the image removes the previous object.
	_, err = svc.UploadImage(context.Background(), b.ID.Hex(), owner.Hex(),
		bytes.NewReader(png), int64(len(png)), "image/jpeg", "c.jpg")
	require.NoError(t, err)
	require.Len(t, images.keys(), 1)
	assert.True(t, strings.HasSuffix(images.keys()[0], ".jpg"))

	require.NoError(t, svc.Delete(context.Background(), b.ID.Hex(), owner.Hex()))
	assert.Empty(t, images.keys())
}

func TestUploadImage_Rejects(t *testing.T) {
	svc := NewService(newMemBooks(), newMemImages())
	owner := primitive.NewObjectID()
	b, err := svc.Create(context.Background(), owner.Hex(), dune())
	require.NoError(t, err)

	tests := []struct {
		name        string
		actor       primitive.ObjectID
		size        int64
		contentType string
		kind        error
	}{
		{"not an image", owner, 10, "application/pdf", apperr.ErrValidation},
		{"empty", owner, 0, "image/png", apperr.ErrValidation},
		{"too large", owner, MaxImageBytes + 1, "image/png", apperr.ErrValidation},
		{"not owner", primitive.NewObjectID(), 10, "image/png", apperr.ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.UploadImage(context.Background(), b.ID.Hex(), tt.actor.Hex(),
				strings.NewReader("x"), tt.size, tt.contentType, "a.png")
			assert.ErrorIs(t, err, tt.kind)
		})
	}

	_, _, _, err = svc.OpenImage(context.Background(), b.ID.Hex())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
