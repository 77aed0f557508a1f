package exchange

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/bookiez/backend/internal/apperr"
	"github.com/bookiez/backend/internal/models"
)

type fakeBooks struct {
	mu    sync.Mutex
	books map[primitive.ObjectID]*models.Book
}

func newFakeBooks() *fakeBooks {
	return &fakeBooks{books: map[primitive.ObjectID]*models.Book{}}
}

func (f *fakeBooks) add(owner primitive.ObjectID, status models.BookStatus) primitive.ObjectID {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := primitive.NewObjectID()
	f.books[id] = &models.Book{ID: id, Title: "Dune", Owner: owner, Status: status}
	return id
}

func (f *fakeBooks) status(id primitive.ObjectID) models.BookStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.books[id].Status
}

func (f *fakeBooks) remove(id primitive.ObjectID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.books, id)
}

func (f *fakeBooks) GetByID(_ context.Context, id primitive.ObjectID) (*models.Book, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.books[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (f *fakeBooks) SwapStatus(_ context.Context, id primitive.ObjectID, from, to models.BookStatus) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.books[id]
	if !ok || b.Status != from {
		return false, nil
	}
	b.Status = to
	return true, nil
}

func (f *fakeBooks) SetStatus(_ context.Context, id primitive.ObjectID, status models.BookStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.books[id]
	if !ok {
		return apperr.ErrNotFound
	}
	b.Status = status
	return nil
}

type fakeExchanges struct {
	mu        sync.Mutex
	items     map[primitive.ObjectID]*models.Exchange
	insertErr error
	clock     time.Time
}

func newFakeExchanges() *fakeExchanges {
	return &fakeExchanges{
		items: map[primitive.ObjectID]*models.Exchange{},
		clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (f *fakeExchanges) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}

func (f *fakeExchanges) Insert(_ context.Context, e *models.Exchange) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	f.clock = f.clock.Add(time.Second)
	e.ID = primitive.NewObjectID()
	e.CreatedAt = f.clock
	e.UpdatedAt = f.clock
	cp := *e
	f.items[e.ID] = &cp
	return nil
}

func (f *fakeExchanges) GetByID(_ context.Context, id primitive.ObjectID) (*models.Exchange, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.items[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (f *fakeExchanges) List(_ context.Context, filter models.ExchangeFilter, p models.Page) ([]models.Exchange, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []models.Exchange
	for _, e := range f.items {
		if filter.Requester != nil && e.Requester != *filter.Requester {
			continue
		}
		if filter.Owner != nil && e.Owner != *filter.Owner {
			continue
		}
		all = append(all, *e)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	total := int64(len(all))
	start := p.Skip()
	if start > total {
		start = total
	}
	end := start + p.Limit
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

func (f *fakeExchanges) UpdateStatus(_ context.Context, id primitive.ObjectID, from, status models.ExchangeStatus, completedAt *time.Time) (*models.Exchange, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.items[id]
	if !ok || e.Status != from {
		return nil, apperr.ErrNotFound
	}
	e.Status = status
	e.CompletedAt = completedAt
	f.clock = f.clock.Add(time.Second)
	e.UpdatedAt = f.clock
	cp := *e
	return &cp, nil
}

func (f *fakeExchanges) Delete(_ context.Context, id primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[id]; !ok {
		return apperr.ErrNotFound
	}
	delete(f.items, id)
	return nil
}

type directTx struct{}

func (directTx) Tx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeHistory struct {
	mu     sync.Mutex
	events []models.StatusEvent
	err    error
}

func (f *fakeHistory) Append(_ context.Context, ev models.StatusEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	ev.ID = int64(len(f.events) + 1)
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeHistory) ListByExchange(_ context.Context, exchangeID string) ([]models.StatusEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.StatusEvent
	for _, ev := range f.events {
		if ev.ExchangeID == exchangeID {
			out = append(out, ev)
		}
	}
	return out, nil
}

type published struct {
	room  string
	event string
	data  interface{}
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []published
}

func (f *fakeNotifier) Publish(room, event string, data interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, published{room, event, data})
	return nil
}

var errInsert = errors.New("insert failed")

// barrierExchanges holds every GetByID caller until n of them have read,
// so concurrent status updates all see the same snapshot.
type barrierExchanges struct {
	*fakeExchanges
	arrived sync.WaitGroup
}

func newBarrierExchanges(inner *fakeExchanges, n int) *barrierExchanges {
	b := &barrierExchanges{fakeExchanges: inner}
	b.arrived.Add(n)
	return b
}

func (b *barrierExchanges) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Exchange, error) {
	e, err := b.fakeExchanges.GetByID(ctx, id)
	b.arrived.Done()
	b.arrived.Wait()
	return e, err
}
