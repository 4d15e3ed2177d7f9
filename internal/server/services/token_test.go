package services

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	"github.com/formxchange/auth-service/internal/common"
	"github.com/formxchange/auth-service/internal/dbx"
	"github.com/formxchange/auth-service/internal/server/auth"
	"github.com/formxchange/auth-service/internal/server/config"
	"github.com/formxchange/auth-service/internal/server/models"
	refreshtokensrepo "github.com/formxchange/auth-service/internal/server/repositories/refreshtokens"
	usersrepo "github.com/formxchange/auth-service/internal/server/repositories/users"
)

// --- fakes ---

// memRefreshRepo is an in-memory refresh token store with the same
// single-winner revocation semantics as the postgres implementation.
type memRefreshRepo struct {
	mu     sync.Mutex
	byTok  map[string]*models.RefreshToken
	byID   map[uuid.UUID]*models.RefreshToken
	users  map[uuid.UUID]*models.User
	getErr error
}

func newMemRefreshRepo() *memRefreshRepo {
	return &memRefreshRepo{
		byTok: make(map[string]*models.RefreshToken),
		byID:  make(map[uuid.UUID]*models.RefreshToken),
		users: make(map[uuid.UUID]*models.User),
	}
}

func (f *memRefreshRepo) Create(ctx context.Context, userID uuid.UUID, validity time.Duration) (*models.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	token, err := common.GenerateOpaqueToken(common.RefreshTokenBytes)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	rec := &models.RefreshToken{
		ID:        uuid.New(),
		Token:     token,
		UserID:    userID,
		ExpiresAt: now.Add(validity),
		CreatedAt: now,
	}
	f.byTok[token] = rec
	f.byID[rec.ID] = rec
	return rec, nil
}

func (f *memRefreshRepo) GetByToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.getErr != nil {
		return nil, f.getErr
	}
	rec, ok := f.byTok[token]
	if !ok {
		return nil, common.ErrorNotFound
	}
	out := *rec
	out.User = f.users[rec.UserID]
	return &out, nil
}

func (f *memRefreshRepo) Revoke(ctx context.Context, tokenID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	rec, ok := f.byID[tokenID]
	if !ok || rec.RevokedAt != nil {
		return false, nil
	}
	now := time.Now()
	rec.RevokedAt = &now
	return true, nil
}

func (f *memRefreshRepo) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := time.Now()
	for _, rec := range f.byID {
		if rec.UserID == userID && rec.RevokedAt == nil {
			rec.RevokedAt = &now
		}
	}
	return nil
}

func (f *memRefreshRepo) CleanupExpired(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var removed int64
	now := time.Now()
	for tok, rec := range f.byTok {
		if !now.Before(rec.ExpiresAt) {
			delete(f.byTok, tok)
			delete(f.byID, rec.ID)
			removed++
		}
	}
	return removed, nil
}

type fakeUsersRepo struct {
	getByIDOut    *models.User
	getByIDErr    error
	getByEmailOut *models.User
	getByEmailErr error
	createdUser   *models.User
	updatedUser   *models.User
}

func (f *fakeUsersRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return f.getByIDOut, f.getByIDErr
}

func (f *fakeUsersRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return f.getByEmailOut, f.getByEmailErr
}

func (f *fakeUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	u.ID = uuid.New()
	f.createdUser = u
	return u, nil
}

func (f *fakeUsersRepo) Update(ctx context.Context, u *models.User) (*models.User, error) {
	f.updatedUser = u
	return u, nil
}

type fakeRepoManager struct {
	u *fakeUsersRepo
	r *memRefreshRepo
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(db dbx.DBTX) usersrepo.Repository      { return m.u }
func (m *fakeRepoManager) RefreshTokens(db dbx.DBTX) refreshtokensrepo.Repository {
	return m.r
}

// --- helpers ---

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.JWTSecret = "test-secret"
	return cfg
}

func newTokenServiceWithMock(t *testing.T, rm *fakeRepoManager) (*TokenService, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewTokenService(db, rm, testConfig()), mock, db
}

func activeUser(repo *memRefreshRepo) *models.User {
	user := &models.User{
		ID:          uuid.New(),
		Email:       "alice@example.com",
		DisplayName: "Alice",
		TenantID:    uuid.New(),
		Roles:       []models.Role{models.RoleFormBuilder},
		IsActive:    true,
	}
	repo.users[user.ID] = user
	return user
}

// --- tests ---

func TestLogin_IssuesValidPair(t *testing.T) {
	rm := &fakeRepoManager{u: &fakeUsersRepo{}, r: newMemRefreshRepo()}
	svc, _, db := newTokenServiceWithMock(t, rm)
	defer db.Close()

	user := activeUser(rm.r)

	pair, err := svc.Login(context.Background(), user)
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}

	claims, err := auth.ValidateToken(pair.AccessToken, svc.SigningOptions())
	if err != nil {
		t.Fatalf("issued access token does not validate: %v", err)
	}
	if claims.Subject != user.ID.String() {
		t.Fatalf("subject mismatch: got %q want %q", claims.Subject, user.ID)
	}
	if pair.ExpiresIn != 900 {
		t.Fatalf("expected expiresIn 900, got %d", pair.ExpiresIn)
	}

	stored, err := rm.r.GetByToken(context.Background(), pair.RefreshToken)
	if err != nil {
		t.Fatalf("refresh token not stored: %v", err)
	}
	if !stored.IsActive(time.Now()) {
		t.Fatalf("stored refresh token is not active")
	}
}

func TestRefresh_RotatesAndInvalidatesOldToken(t *testing.T) {
	rm := &fakeRepoManager{u: &fakeUsersRepo{}, r: newMemRefreshRepo()}
	svc, mock, db := newTokenServiceWithMock(t, rm)
	defer db.Close()

	user := activeUser(rm.r)

	pair1, err := svc.Login(context.Background(), user)
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}

	mock.ExpectBegin()
	mock.ExpectCommit()

	pair2, err := svc.Refresh(context.Background(), pair1.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh error: %v", err)
	}
	if pair2.RefreshToken == pair1.RefreshToken {
		t.Fatalf("refresh token was not rotated")
	}
	if _, err := auth.ValidateToken(pair2.AccessToken, svc.SigningOptions()); err != nil {
		t.Fatalf("new access token does not validate: %v", err)
	}

	// The redeemed token is now revoked; a second redemption must fail
	// without opening a transaction.
	if _, err := svc.Refresh(context.Background(), pair1.RefreshToken); !errors.Is(err, common.ErrInvalidRefreshToken) {
		t.Fatalf("expected ErrInvalidRefreshToken on reuse, got %v", err)
	}

	// The replacement still works.
	mock.ExpectBegin()
	mock.ExpectCommit()
	if _, err := svc.Refresh(context.Background(), pair2.RefreshToken); err != nil {
		t.Fatalf("refresh with rotated token failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRefresh_UnknownToken(t *testing.T) {
	rm := &fakeRepoManager{u: &fakeUsersRepo{}, r: newMemRefreshRepo()}
	svc, _, db := newTokenServiceWithMock(t, rm)
	defer db.Close()

	_, err := svc.Refresh(context.Background(), "never-issued")
	if !errors.Is(err, common.ErrInvalidRefreshToken) {
		t.Fatalf("expected ErrInvalidRefreshToken, got %v", err)
	}
}

func TestRefresh_ExpiredToken(t *testing.T) {
	rm := &fakeRepoManager{u: &fakeUsersRepo{}, r: newMemRefreshRepo()}
	svc, _, db := newTokenServiceWithMock(t, rm)
	defer db.Close()

	user := activeUser(rm.r)
	rec, err := rm.r.Create(context.Background(), user.ID, -time.Minute)
	if err != nil {
		t.Fatalf("seed error: %v", err)
	}

	_, err = svc.Refresh(context.Background(), rec.Token)
	if !errors.Is(err, common.ErrInvalidRefreshToken) {
		t.Fatalf("expected ErrInvalidRefreshToken for expired token, got %v", err)
	}
}

func TestRefresh_InactiveUser(t *testing.T) {
	rm := &fakeRepoManager{u: &fakeUsersRepo{}, r: newMemRefreshRepo()}
	svc, _, db := newTokenServiceWithMock(t, rm)
	defer db.Close()

	user := activeUser(rm.r)
	user.IsActive = false
	rec, err := rm.r.Create(context.Background(), user.ID, time.Hour)
	if err != nil {
		t.Fatalf("seed error: %v", err)
	}

	_, err = svc.Refresh(context.Background(), rec.Token)
	if !errors.Is(err, common.ErrInvalidRefreshToken) {
		t.Fatalf("expected ErrInvalidRefreshToken for inactive user, got %v", err)
	}
}

func TestRefresh_StoreFailureIsNotInvalidToken(t *testing.T) {
	rm := &fakeRepoManager{u: &fakeUsersRepo{}, r: newMemRefreshRepo()}
	svc, _, db := newTokenServiceWithMock(t, rm)
	defer db.Close()

	rm.r.getErr = errors.New("connection refused")

	_, err := svc.Refresh(context.Background(), "whatever")
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	if errors.Is(err, common.ErrInvalidRefreshToken) {
		t.Fatalf("transient store failure must not be reported as invalid token")
	}
}

func TestLogout_RevokesAllUserTokens(t *testing.T) {
	rm := &fakeRepoManager{u: &fakeUsersRepo{}, r: newMemRefreshRepo()}
	svc, _, db := newTokenServiceWithMock(t, rm)
	defer db.Close()

	user := activeUser(rm.r)

	pair1, err := svc.Login(context.Background(), user)
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}
	pair2, err := svc.Login(context.Background(), user)
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}

	if err := svc.Logout(context.Background(), user.ID); err != nil {
		t.Fatalf("Logout error: %v", err)
	}

	for _, tok := range []string{pair1.RefreshToken, pair2.RefreshToken} {
		if _, err := svc.Refresh(context.Background(), tok); !errors.Is(err, common.ErrInvalidRefreshToken) {
			t.Fatalf("expected ErrInvalidRefreshToken after logout, got %v", err)
		}
	}
}

func TestRefresh_ConcurrentRedemption_SingleWinner(t *testing.T) {
	rm := &fakeRepoManager{u: &fakeUsersRepo{}, r: newMemRefreshRepo()}
	svc, mock, db := newTokenServiceWithMock(t, rm)
	defer db.Close()

	user := activeUser(rm.r)
	pair, err := svc.Login(context.Background(), user)
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}

	// Both goroutines may open a transaction; the loser rolls back.
	mock.MatchExpectationsInOrder(false)
	mock.ExpectBegin()
	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectRollback()
	mock.ExpectCommit()
	mock.ExpectRollback()

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = svc.Refresh(context.Background(), pair.RefreshToken)
		}(i)
	}
	wg.Wait()

	var successes, invalid int
	for _, err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, common.ErrInvalidRefreshToken):
			invalid++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if successes != 1 || invalid != 1 {
		t.Fatalf("expected exactly one winner, got %d successes and %d invalid", successes, invalid)
	}
}

func TestCleanupExpired_RemovesOnlyExpiredRows(t *testing.T) {
	rm := &fakeRepoManager{u: &fakeUsersRepo{}, r: newMemRefreshRepo()}
	svc, _, db := newTokenServiceWithMock(t, rm)
	defer db.Close()

	user := activeUser(rm.r)

	expired, _ := rm.r.Create(context.Background(), user.ID, -time.Minute)
	active, _ := rm.r.Create(context.Background(), user.ID, time.Hour)
	revoked, _ := rm.r.Create(context.Background(), user.ID, time.Hour)
	if _, err := rm.r.Revoke(context.Background(), revoked.ID); err != nil {
		t.Fatalf("seed revoke error: %v", err)
	}

	removed, err := svc.CleanupExpired(context.Background())
	if err != nil {
		t.Fatalf("CleanupExpired error: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed row, got %d", removed)
	}

	if _, err := rm.r.GetByToken(context.Background(), expired.Token); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("expired token should be gone, got %v", err)
	}
	if _, err := rm.r.GetByToken(context.Background(), active.Token); err != nil {
		t.Fatalf("active token should survive cleanup: %v", err)
	}
	if _, err := rm.r.GetByToken(context.Background(), revoked.Token); err != nil {
		t.Fatalf("revoked-but-unexpired token should survive cleanup: %v", err)
	}
}
