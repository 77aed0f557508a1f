// Package exchange implements exchange requests and their status machine.
//
// A request moves pending -> accepted | rejected, and accepted -> completed.
// Each transition may flip the requested book's status as a side effect:
//
//	request   book available -> pending
//	accepted  book -> exchanged
//	rejected  book -> available
//	completed no change
//	withdraw  book -> available (unconditionally)
//
// The exchange write and the book write run inside one unit of work.
package exchange

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/bookiez/backend/internal/apperr"
	"github.com/bookiez/backend/internal/models"
	"github.com/bookiez/backend/internal/relay"
)

const deletedStatus = "deleted"

var (
	errBookNotFound     = apperr.New(apperr.ErrNotFound, "Book not found")
	errBookUnavailable  = apperr.New(apperr.ErrInvalidState, "Book is not available for exchange")
	errOwnBook          = apperr.New(apperr.ErrForbidden, "Cannot request exchange for your own book")
	errExchangeNotFound = apperr.New(apperr.ErrNotFound, "Exchange request not found")
	errNotParticipant   = apperr.New(apperr.ErrForbidden, "Not authorized to view this exchange")
	errNotFoundOrDenied = apperr.New(apperr.ErrNotFound, "Exchange request not found or not authorized")
)

// transitions lists the allowed target states for each state.
var transitions = map[models.ExchangeStatus][]models.ExchangeStatus{
	models.ExchangePending:  {models.ExchangeAccepted, models.ExchangeRejected},
	models.ExchangeAccepted: {models.ExchangeCompleted},
}

// bookEffect is the book status a transition into the key state forces.
var bookEffect = map[models.ExchangeStatus]models.BookStatus{
	models.ExchangeAccepted: models.BookExchanged,
	models.ExchangeRejected: models.BookAvailable,
}

// BookStore is the subset of listing persistence the exchange flow needs.
type BookStore interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Book, error)
	SwapStatus(ctx context.Context, id primitive.ObjectID, from, to models.BookStatus) (bool, error)
	SetStatus(ctx context.Context, id primitive.ObjectID, status models.BookStatus) error
}

// Store defines the interface for exchange persistence.
type Store interface {
	Insert(ctx context.Context, e *models.Exchange) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Exchange, error)
	List(ctx context.Context, f models.ExchangeFilter, p models.Page) ([]models.Exchange, int64, error)
	UpdateStatus(ctx context.Context, id primitive.ObjectID, from, status models.ExchangeStatus, completedAt *time.Time) (*models.Exchange, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// UnitOfWork runs fn so that its writes commit or fail together where the
// backing store supports it.
type UnitOfWork interface {
	Tx(ctx context.Context, fn func(ctx context.Context) error) error
}

// History records status transitions.
type History interface {
	Append(ctx context.Context, ev models.StatusEvent) error
	ListByExchange(ctx context.Context, exchangeID string) ([]models.StatusEvent, error)
}

// Notifier pushes events to the participants of an exchange.
type Notifier interface {
	Publish(room, event string, data interface{}) error
}

// Service implements the exchange operations.
type Service struct {
	books     BookStore
	exchanges Store
	uow       UnitOfWork
	history   History
	notifier  Notifier
	now       func() time.Time
}

// NewService wires the service. history and notifier may be nil.
func NewService(books BookStore, exchanges Store, uow UnitOfWork, history History, notifier Notifier) *Service {
	return &Service{
		books:     books,
		exchanges: exchanges,
		uow:       uow,
		history:   history,
		notifier:  notifier,
		now:       time.Now,
	}
}

// Request creates a pending exchange for an available book and marks the
// book pending. The book flip is a compare-and-swap on status=available, so
// of two concurrent requests for the same book only one succeeds.
func (s *Service) Request(ctx context.Context, requesterID string, req models.ExchangeRequest) (*models.Exchange, error) {
	requester, err := accountID(requesterID)
	if err != nil {
		return nil, err
	}
	bookID, err := primitive.ObjectIDFromHex(req.BookID)
	if err != nil {
		return nil, errBookNotFound
	}

	book, err := s.books.GetByID(ctx, bookID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, errBookNotFound
	} else if err != nil {
		return nil, err
	}
	if book.Status != models.BookAvailable {
		return nil, errBookUnavailable
	}
	if book.Owner == requester {
		return nil, errOwnBook
	}

	ex := &models.Exchange{
		Book:      bookID,
		Requester: requester,
		Owner:     book.Owner,
		Status:    models.ExchangePending,
		Message:   req.Message,
	}
	err = s.uow.Tx(ctx, func(ctx context.Context) error {
		swapped, err := s.books.SwapStatus(ctx, bookID, models.BookAvailable, models.BookPending)
		if err != nil {
			return err
		}
		if !swapped {
			return errBookUnavailable
		}
		if err := s.exchanges.Insert(ctx, ex); err != nil {
			if _, cerr := s.books.SwapStatus(ctx, bookID, models.BookPending, models.BookAvailable); cerr != nil {
				log.Printf("exchange: compensate book %s: %v", bookID.Hex(), cerr)
			}
			return fmt.Errorf("insert exchange: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, ex, requester, "", string(models.ExchangePending), models.BookPending)
	s.notify(ex)
	return ex, nil
}

// UpdateStatus moves an exchange to status on behalf of the book owner and
// applies the book side effect of the new state.
func (s *Service) UpdateStatus(ctx context.Context, id, actorID string, status models.ExchangeStatus) (*models.Exchange, error) {
	if !validTarget(status) {
		return nil, apperr.Invalid("status", "status must be one of accepted, rejected, completed")
	}
	actor, err := accountID(actorID)
	if err != nil {
		return nil, err
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, errNotFoundOrDenied
	}

	ex, err := s.exchanges.GetByID(ctx, oid)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, errNotFoundOrDenied
	} else if err != nil {
		return nil, err
	}
	if ex.Owner != actor {
		return nil, errNotFoundOrDenied
	}
	illegal := apperr.New(apperr.ErrInvalidState,
		fmt.Sprintf("Cannot change exchange status from %s to %s", ex.Status, status))
	if !CanTransition(ex.Status, status) {
		return nil, illegal
	}

	var completedAt *time.Time
	if status == models.ExchangeCompleted {
		t := s.now().UTC()
		completedAt = &t
	}
	effect, hasEffect := bookEffect[status]

	var updated *models.Exchange
	err = s.uow.Tx(ctx, func(ctx context.Context) error {
		var err error
		updated, err = s.exchanges.UpdateStatus(ctx, oid, ex.Status, status, completedAt)
		if errors.Is(err, apperr.ErrNotFound) {
			// Moved or withdrawn since it was read.
			return illegal
		} else if err != nil {
			return err
		}
		if hasEffect {
			return s.setBookStatus(ctx, ex.Book, effect)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	bookStatus := effect
	if !hasEffect {
		bookStatus = s.currentBookStatus(ctx, ex.Book)
	}
	s.record(ctx, updated, actor, string(ex.Status), string(status), bookStatus)
	s.notify(updated)
	return updated, nil
}

// Delete withdraws a request on behalf of its requester and resets the
// book to available whatever its current status is.
func (s *Service) Delete(ctx context.Context, id, actorID string) error {
	actor, err := accountID(actorID)
	if err != nil {
		return err
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return errNotFoundOrDenied
	}

	ex, err := s.exchanges.GetByID(ctx, oid)
	if errors.Is(err, apperr.ErrNotFound) {
		return errNotFoundOrDenied
	} else if err != nil {
		return err
	}
	if ex.Requester != actor {
		return errNotFoundOrDenied
	}

	err = s.uow.Tx(ctx, func(ctx context.Context) error {
		if err := s.exchanges.Delete(ctx, oid); err != nil {
			return err
		}
		return s.setBookStatus(ctx, ex.Book, models.BookAvailable)
	})
	if err != nil {
		return err
	}

	s.record(ctx, ex, actor, string(ex.Status), deletedStatus, models.BookAvailable)
	return nil
}

// List returns the exchanges an account sent or received, newest first.
func (s *Service) List(ctx context.Context, accountIDHex, direction string, p models.Page) (*models.ExchangePage, error) {
	acc, err := accountID(accountIDHex)
	if err != nil {
		return nil, err
	}

	var f models.ExchangeFilter
	switch direction {
	case "sent":
		f.Requester = &acc
	case "", "received":
		f.Owner = &acc
	default:
		return nil, apperr.Invalid("type", "type must be sent or received")
	}

	list, total, err := s.exchanges.List(ctx, f, p)
	if err != nil {
		return nil, fmt.Errorf("list exchanges: %w", err)
	}
	if list == nil {
		list = []models.Exchange{}
	}
	return &models.ExchangePage{
		Exchanges:   list,
		Total:       total,
		TotalPages:  models.TotalPages(total, p.Limit),
		CurrentPage: p.Page,
	}, nil
}

// Get returns an exchange to one of its participants.
func (s *Service) Get(ctx context.Context, id, actorID string) (*models.Exchange, error) {
	actor, err := accountID(actorID)
	if err != nil {
		return nil, err
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, errExchangeNotFound
	}
	ex, err := s.exchanges.GetByID(ctx, oid)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, errExchangeNotFound
	} else if err != nil {
		return nil, err
	}
	if !ex.Involves(actor) {
		return nil, errNotParticipant
	}
	return ex, nil
}

// History returns the recorded transitions of an exchange, oldest first.
func (s *Service) History(ctx context.Context, id, actorID string) ([]models.StatusEvent, error) {
	ex, err := s.Get(ctx, id, actorID)
	if err != nil {
		return nil, err
	}
	if s.history == nil {
		return []models.StatusEvent{}, nil
	}
	events, err := s.history.ListByExchange(ctx, ex.ID.Hex())
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []models.StatusEvent{}
	}
	return events, nil
}

// CanTransition reports whether an exchange may move from one state to
// another.
func CanTransition(from, to models.ExchangeStatus) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

func validTarget(status models.ExchangeStatus) bool {
	switch status {
	case models.ExchangeAccepted, models.ExchangeRejected, models.ExchangeCompleted:
		return true
	}
	return false
}

// setBookStatus tolerates a book that has been deleted in the meantime.
func (s *Service) setBookStatus(ctx context.Context, id primitive.ObjectID, status models.BookStatus) error {
	err := s.books.SetStatus(ctx, id, status)
	if errors.Is(err, apperr.ErrNotFound) {
		log.Printf("exchange: book %s gone, status %s not applied", id.Hex(), status)
		return nil
	}
	return err
}

func (s *Service) currentBookStatus(ctx context.Context, id primitive.ObjectID) models.BookStatus {
	b, err := s.books.GetByID(ctx, id)
	if err != nil {
		return ""
	}
	return b.Status
}

func (s *Service) record(ctx context.Context, ex *models.Exchange, actor primitive.ObjectID, from, to string, book models.BookStatus) {
	if s.history == nil {
		return
	}
	err := s.history.Append(ctx, models.StatusEvent{
		ExchangeID: ex.ID.Hex(),
		BookID:     ex.Book.Hex(),
		ActorID:    actor.Hex(),
		FromStatus: from,
		ToStatus:   to,
		BookStatus: string(book),
		OccurredAt: s.now().UTC(),
	})
	if err != nil {
		log.Printf("exchange: history %s: %v", ex.ID.Hex(), err)
	}
}

func (s *Service) notify(ex *models.Exchange) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Publish(ex.ID.Hex(), relay.EventExchangeStatus, ex); err != nil {
		log.Printf("exchange: notify %s: %v", ex.ID.Hex(), err)
	}
}

func accountID(hex string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return primitive.NilObjectID, apperr.New(apperr.ErrUnauthorized, "Token is not valid")
	}
	return id, nil
}
