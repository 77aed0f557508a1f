package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"github.com/bookiez/backend/internal/apperr"
	"github.com/bookiez/backend/internal/models"
)

// BcryptCost is the fixed work factor for password hashes.
const BcryptCost = 12

// MaxPasswordBytes is the longest input bcrypt accepts.
const MaxPasswordBytes = 72

var errBadCredentials = apperr.New(apperr.ErrUnauthorized, "Invalid email or password")

// AccountStore defines the interface for account persistence.
type AccountStore interface {
	Create(ctx context.Context, a *models.Account) error
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Account, error)
	UpdateProfile(ctx context.Context, id primitive.ObjectID, u models.ProfileUpdate) (*models.Account, error)
}

// Revoker keeps the logout denylist.
type Revoker interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// Service implements registration, login and profile management.
type Service struct {
	accounts AccountStore
	tokens   *Tokens
	revoked  Revoker
	cost     int

	dummyOnce sync.Once
	dummyHash []byte
}

func NewService(accounts AccountStore, tokens *Tokens, revoked Revoker) *Service {
	return &Service{accounts: accounts, tokens: tokens, revoked: revoked, cost: BcryptCost}
}

// Register creates an account and returns it with a fresh token.
func (s *Service) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if len(req.Password) > MaxPasswordBytes {
		return nil, apperr.Invalid("password", fmt.Sprintf("password cannot exceed %d bytes", MaxPasswordBytes))
	}

	if _, err := s.accounts.GetByEmail(ctx, email); err == nil {
		return nil, apperr.New(apperr.ErrConflict, "User already exists with this email")
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	acc := &models.Account{
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Email:     email,
		Password:  string(hashed),
		Location:  strings.TrimSpace(req.Location),
		Rating:    models.DefaultRating,
	}
	if err := s.accounts.Create(ctx, acc); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return nil, apperr.New(apperr.ErrConflict, "User already exists with this email")
		}
		return nil, err
	}

	token, err := s.tokens.Issue(acc.ID.Hex())
	if err != nil {
		return nil, err
	}
	return &models.AuthResponse{Message: "User created successfully", Token: token, User: acc}, nil
}

// Login verifies the credentials. Unknown emails and wrong passwords yield
// the same error, and both paths run one bcrypt comparison.
func (s *Service) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	acc, err := s.accounts.GetByEmail(ctx, req.Email)
	if err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			return nil, err
		}
		bcrypt.CompareHashAndPassword(s.dummy(), []byte(req.Password))
		return nil, errBadCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(acc.Password), []byte(req.Password)); err != nil {
		return nil, errBadCredentials
	}

	token, err := s.tokens.Issue(acc.ID.Hex())
	if err != nil {
		return nil, err
	}
	return &models.AuthResponse{Message: "Login successful", Token: token, User: acc}, nil
}

// Authenticate verifies a bearer token and checks the denylist.
func (s *Service) Authenticate(ctx context.Context, token string) (*Claims, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, apperr.New(apperr.ErrUnauthorized, "Token is not valid")
	}
	if s.revoked != nil {
		revoked, err := s.revoked.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, fmt.Errorf("check revocation: %w", err)
		}
		if revoked {
			return nil, apperr.New(apperr.ErrUnauthorized, "Token has been revoked")
		}
	}
	return claims, nil
}

// Logout revokes the token for the rest of its lifetime.
func (s *Service) Logout(ctx context.Context, claims *Claims) error {
	if s.revoked == nil || claims == nil {
		return nil
	}
	return s.revoked.Revoke(ctx, claims.ID, s.tokens.Remaining(claims))
}

// Profile returns the account behind accountID.
func (s *Service) Profile(ctx context.Context, accountID string) (*models.Account, error) {
	id, err := primitive.ObjectIDFromHex(accountID)
	if err != nil {
		return nil, apperr.New(apperr.ErrUnauthorized, "Token is not valid")
	}
	acc, err := s.accounts.GetByID(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.New(apperr.ErrNotFound, "User not found")
	}
	return acc, err
}

// UpdateProfile applies the non-empty fields of u.
func (s *Service) UpdateProfile(ctx context.Context, accountID string, u models.ProfileUpdate) (*models.Account, error) {
	id, err := primitive.ObjectIDFromHex(accountID)
	if err != nil {
		return nil, apperr.New(apperr.ErrUnauthorized, "Token is not valid")
	}
	u.FirstName = strings.TrimSpace(u.FirstName)
	u.LastName = strings.TrimSpace(u.LastName)
	u.Location = strings.TrimSpace(u.Location)

	acc, err := s.accounts.UpdateProfile(ctx, id, u)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.New(apperr.ErrNotFound, "User not found")
	}
	return acc, err
}

func (s *Service) dummy() []byte {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("bookiez-dummy-password"), s.cost)
	})
	return s.dummyHash
}
