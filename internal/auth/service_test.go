package auth

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"github.com/bookiez/backend/internal/apperr"
	"github.com/bookiez/backend/internal/models"
)

type memAccounts struct {
	mu   sync.Mutex
	byID map[primitive.ObjectID]*models.Account
}

func newMemAccounts() *memAccounts {
	return &memAccounts{byID: map[primitive.ObjectID]*models.Account{}}
}

func (m *memAccounts) Create(_ context.Context, a *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.Email = strings.ToLower(a.Email)
	for _, existing := range m.byID {
		if existing.Email == a.Email {
			return apperr.ErrConflict
		}
	}
	a.ID = primitive.NewObjectID()
	cp := *a
	m.byID[a.ID] = &cp
	return nil
}

func (m *memAccounts) GetByEmail(_ context.Context, email string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, a := range m.byID {
		if a.Email == email {
			cp := *a
			return &cp, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (m *memAccounts) GetByID(_ context.Context, id primitive.ObjectID) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memAccounts) UpdateProfile(_ context.Context, id primitive.ObjectID, u models.ProfileUpdate) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	if u.FirstName != "" {
		a.FirstName = u.FirstName
	}
	if u.LastName != "" {
		a.LastName = u.LastName
	}
	if u.Location != "" {
		a.Location = u.Location
	}
	cp := *a
	return &cp, nil
}

type memRevoker struct {
	mu      sync.Mutex
	revoked map[string]time.Duration
}

func (m *memRevoker) Revoke(_ context.Context, tokenID string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.revoked == nil {
		m.revoked = map[string]time.Duration{}
	}
	m.revoked[tokenID] = ttl
	return nil
}

func (m *memRevoker) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.revoked[tokenID]
	return ok, nil
}

func newTestService(t *testing.T) (*Service, *memRevoker) {
	t.Helper()
	tokens, err := NewTokens("test-secret", time.Hour)
	require.NoError(t, err)
	rev := &memRevoker{}
	svc := NewService(newMemAccounts(), tokens, rev)
	svc.cost = bcrypt.MinCost
	return svc, rev
}

var alice = models.RegisterRequest{
	FirstName: "Alice",
	LastName:  "Reader",
	Email:     "Alice@Example.com",
	Password:  "secret1",
	Location:  "Lisbon",
}

func TestRegister(t *testing.T) {
	svc, _ := newTestService(t)

	resp, err := svc.Register(context.Background(), alice)
	require.NoError(t, err)

	assert.Equal(t, "User created successfully", resp.Message)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "alice@example.com", resp.User.Email)
	assert.Equal(t, models.DefaultRating, resp.User.Rating)
	assert.NotEqual(t, alice.Password, resp.User.Password)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(resp.User.Password), []byte(alice.Password)))

	claims, err := svc.Authenticate(context.Background(), resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID.Hex(), claims.AccountID)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Register(context.Background(), alice)
	require.NoError(t, err)

	dup := alice
	dup.Email = "ALICE@example.COM"
	_, err = svc.Register(context.Background(), dup)

	require.ErrorIs(t, err, apperr.ErrConflict)
	assert.Equal(t, "User already exists with this email", apperr.Message(err))
}

func TestRegister_PasswordOverBcryptLimit(t *testing.T) {
	svc, _ := newTestService(t)

	// 30 runes pass the character limit but encode to 75 bytes.
	long := alice
	long.Password = strings.Repeat("ü€", 15)
	_, err := svc.Register(context.Background(), long)

	require.ErrorIs(t, err, apperr.ErrValidation)
	_, err = svc.accounts.GetByEmail(context.Background(), "alice@example.com")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestLogin(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Register(context.Background(), alice)
	require.NoError(t, err)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "alice@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "Login successful", resp.Message)
	assert.NotEmpty(t, resp.Token)

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "alice@example.com", Password: "wrong"})
	require.ErrorIs(t, err, apperr.ErrUnauthorized)
	wrongPassword := apperr.Message(err)

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "nobody@example.com", Password: "secret1"})
	require.ErrorIs(t, err, apperr.ErrUnauthorized)
	assert.Equal(t, wrongPassword, apperr.Message(err))
	assert.Equal(t, "Invalid email or password", wrongPassword)
}

func TestLogout_RevokesToken(t *testing.T) {
	svc, rev := newTestService(t)
	resp, err := svc.Register(context.Background(), alice)
	require.NoError(t, err)

	claims, err := svc.Authenticate(context.Background(), resp.Token)
	require.NoError(t, err)
	require.NoError(t, svc.Logout(context.Background(), claims))

	ttl := rev.revoked[claims.ID]
	assert.True(t, ttl > 59*time.Minute && ttl <= time.Hour, "ttl %s", ttl)

	_, err = svc.Authenticate(context.Background(), resp.Token)
	require.ErrorIs(t, err, apperr.ErrUnauthorized)
	assert.Equal(t, "Token has been revoked", apperr.Message(err))
}

func TestAuthenticate_Rejects(t *testing.T) {
	svc, _ := newTestService(t)
	resp, err := svc.Register(context.Background(), alice)
	require.NoError(t, err)

	other, err := NewTokens("another-secret", time.Hour)
	require.NoError(t, err)
	forged, err := other.Issue(resp.User.ID.Hex())
	require.NoError(t, err)

	for name, token := range map[string]string{
		"garbage":      "not.a.jwt",
		"wrong secret": forged,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Authenticate(context.Background(), token)
			require.ErrorIs(t, err, apperr.ErrUnauthorized)
			assert.Equal(t, "Token is not valid", apperr.Message(err))
		})
	}

	t.Run("expired", func(t *testing.T) {
		svc.tokens.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		defer func() { svc.tokens.now = time.Now }()
		_, err := svc.Authenticate(context.Background(), resp.Token)
		assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	})
}

func TestProfile(t *testing.T) {
	svc, _ := newTestService(t)
	resp, err := svc.Register(context.Background(), alice)
	require.NoError(t, err)
	id := resp.User.ID.Hex()

	acc, err := svc.Profile(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Alice", acc.FirstName)

	updated, err := svc.UpdateProfile(context.Background(), id, models.ProfileUpdate{Location: "  Porto "})
	require.NoError(t, err)
	assert.Equal(t, "Porto", updated.Location)
	assert.Equal(t, "Alice", updated.FirstName)

	_, err = svc.Profile(context.Background(), primitive.NewObjectID().Hex())
	require.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, "User not found", apperr.Message(err))
}
