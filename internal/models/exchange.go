package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ExchangeStatus is the state of an exchange request.
type ExchangeStatus string

const (
	ExchangePending   ExchangeStatus = "pending"
	ExchangeAccepted  ExchangeStatus = "accepted"
	ExchangeRejected  ExchangeStatus = "rejected"
	ExchangeCompleted ExchangeStatus = "completed"
)

// Exchange is a request by one account for another account's book.
type Exchange struct {
	ID          primitive.ObjectID `json:"id"                    bson:"_id,omitempty"`
	Book        primitive.ObjectID `json:"book"                  bson:"book"`
	Requester   primitive.ObjectID `json:"requester"             bson:"requester"`
	Owner       primitive.ObjectID `json:"owner"                 bson:"owner"`
	Status      ExchangeStatus     `json:"status"                bson:"status"`
	Message     string             `json:"message,omitempty"     bson:"message,omitempty"`
	CreatedAt   time.Time          `json:"createdAt"             bson:"created_at"`
	UpdatedAt   time.Time          `json:"updatedAt"             bson:"updated_at"`
	CompletedAt *time.Time         `json:"completedAt,omitempty" bson:"completed_at,omitempty"`
}

// Involves reports whether the account is the requester or the owner.
func (e *Exchange) Involves(accountID primitive.ObjectID) bool {
	return e.Requester == accountID || e.Owner == accountID
}

// ExchangeRequest is the JSON body for POST /api/exchanges.
type ExchangeRequest struct {
	BookID  string `json:"bookId"  validate:"required,hexadecimal,len=24"`
	Message string `json:"message" validate:"max=500"`
}

// StatusUpdate is the JSON body for PUT /api/exchanges/{id}/status.
type StatusUpdate struct {
	Status ExchangeStatus `json:"status" validate:"required"`
}

// ExchangeFilter selects exchanges by one participant.
type ExchangeFilter struct {
	Requester *primitive.ObjectID
	Owner     *primitive.ObjectID
}

// ExchangePage is the paginated response for GET /api/exchanges.
type ExchangePage struct {
	Exchanges   []Exchange `json:"exchanges"`
	Total       int64      `json:"total"`
	TotalPages  int64      `json:"totalPages"`
	CurrentPage int64      `json:"currentPage"`
}

// StatusEvent is one row of the exchange status history kept in PostgreSQL.
type StatusEvent struct {
	ID         int64     `json:"id"                   db:"id"`
	ExchangeID string    `json:"exchangeId"           db:"exchange_id"`
	BookID     string    `json:"bookId"               db:"book_id"`
	ActorID    string    `json:"actorId"              db:"actor_id"`
	FromStatus string    `json:"fromStatus,omitempty" db:"from_status"`
	ToStatus   string    `json:"toStatus"             db:"to_status"`
	BookStatus string    `json:"bookStatus"           db:"book_status"`
	OccurredAt time.Time `json:"occurredAt"           db:"occurred_at"`
}

// ChatMessage is the payload relayed between participants of an exchange.
type ChatMessage struct {
	ExchangeID string `json:"exchangeId"`
	Message    string `json:"message"`
	Sender     string `json:"sender"`
	Timestamp  string `json:"timestamp"`
}
