package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// BookStatus is the availability of a listing. Only exchange transitions
// change it.
type BookStatus string

const (
	BookAvailable BookStatus = "available"
	BookPending   BookStatus = "pending"
	BookExchanged BookStatus = "exchanged"
)

// Genres lists the accepted values for Book.Genre.
var Genres = []string{
	"Fiction", "Non-Fiction", "Science Fiction", "Mystery",
	"Fantasy", "Biography", "History", "Children", "Other",
}

// Conditions lists the accepted values for Book.Condition.
var Conditions = []string{"New", "Like New", "Good", "Fair"}

// Book is a listing offered for exchange, stored in the books collection.
type Book struct {
	ID          primitive.ObjectID `json:"id"          bson:"_id,omitempty"`
	Title       string             `json:"title"       bson:"title"`
	Author      string             `json:"author"      bson:"author"`
	Genre       string             `json:"genre"       bson:"genre"`
	Condition   string             `json:"condition"   bson:"condition"`
	Description string             `json:"description" bson:"description"`
	Owner       primitive.ObjectID `json:"owner"       bson:"owner"`
	Status      BookStatus         `json:"status"      bson:"status"`
	ImageURL    string             `json:"imageUrl"    bson:"image_url"`
	ImageKey    string             `json:"-"           bson:"image_key,omitempty"`
	CreatedAt   time.Time          `json:"createdAt"   bson:"created_at"`
}

// BookRequest is the JSON body for POST and PUT /api/books.
type BookRequest struct {
	Title       string `json:"title"       validate:"required,max=100"`
	Author      string `json:"author"      validate:"required,max=100"`
	Genre       string `json:"genre"       validate:"required,genre"`
	Condition   string `json:"condition"   validate:"required,condition"`
	Description string `json:"description" validate:"required,max=1000"`
	ImageURL    string `json:"imageUrl"    validate:"omitempty,max=2048"`
}

// BookFilter narrows a listing query. A nil Status matches every status.
type BookFilter struct {
	Status    *BookStatus
	Owner     *primitive.ObjectID
	Genre     string
	Condition string
	Search    string
}

// BookPage is the paginated response for listing queries.
type BookPage struct {
	Books       []Book `json:"books"`
	Total       int64  `json:"total"`
	TotalPages  int64  `json:"totalPages"`
	CurrentPage int64  `json:"currentPage"`
}
