package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/claude/workoutpal/internal/models"
	"github.com/claude/workoutpal/internal/storage"
	"golang.org/x/crypto/bcrypt"
)

type memUsers struct {
	mu    sync.Mutex
	byID  map[string]models.User
	email map[string]string
}

func newMemUsers() *memUsers {
	return &memUsers{byID: map[string]models.User{}, email: map[string]string{}}
}

func (m *memUsers) CreateUser(_ context.Context, email, hash string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.email[email]; ok {
		return models.User{}, storage.ErrDuplicate
	}
	u := models.User{ID: "u" + strconv.Itoa(len(m.byID)+1), Email: email, PasswordHash: hash, CreatedAt: time.Now()}
	m.byID[u.ID] = u
	m.email[email] = u.ID
	return u, nil
}

func (m *memUsers) GetUserByEmail(_ context.Context, email string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.email[email]
	if !ok {
		return models.User{}, storage.ErrNotFound
	}
	return m.byID[id], nil
}

func (m *memUsers) GetUser(_ context.Context, id string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return models.User{}, storage.ErrNotFound
	}
	return u, nil
}

func newTestService(t *testing.T, users Users) (*Service, *storage.Local) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	local, err := storage.OpenLocal(t.TempDir(), log)
	if err != nil {
		t.Fatalf("OpenLocal: %v", err)
	}
	t.Cleanup(func() { local.Close() })
	s := New(users, local, "test-secret", log)
	s.cost = bcrypt.MinCost
	return s, local
}

func TestSignUpValidation(t *testing.T) {
	s, _ := newTestService(t, newMemUsers())
	ctx := context.Background()

	tests := []struct {
		name     string
		email    string
		password string
		want     error
	}{
		{"bad email", "not-an-email", "secret1", ErrInvalidEmail},
		{"missing tld", "me@host", "secret1", ErrInvalidEmail},
		{"short password", "me@example.com", "12345", ErrWeakPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := s.SignUp(ctx, tt.email, tt.password)
			if !errors.Is(err, tt.want) {
				t.Errorf("SignUp err = %v, want %v", err, tt.want)
			}
		})
	}
	if s.CurrentUser() != nil {
		t.Error("failed sign-ups must not sign anyone in")
	}
}

func TestSignUpSignsInAndStoresCredentials(t *testing.T) {
	s, local := newTestService(t, newMemUsers())
	ctx := context.Background()

	u, token, err := s.SignUp(ctx, "  Runner@Example.com ", "hunter22")
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if u.Email != "runner@example.com" {
		t.Errorf("email = %q, want normalized", u.Email)
	}
	if id, ok := s.CurrentUserID(); !ok || id != u.ID {
		t.Errorf("CurrentUserID = %q %v, want %q", id, ok, u.ID)
	}
	email, stored, ok, _ := local.Credentials(ctx)
	if !ok || email != u.Email || stored != token {
		t.Errorf("stored credentials = %q %q %v", email, stored, ok)
	}

	if _, _, err := s.SignUp(ctx, "runner@example.com", "another1"); !errors.Is(err, ErrEmailInUse) {
		t.Errorf("duplicate SignUp err = %v, want ErrEmailInUse", err)
	}
}

func TestSignInAndSignOut(t *testing.T) {
	users := newMemUsers()
	s, local := newTestService(t, users)
	ctx := context.Background()

	if _, _, err := s.SignUp(ctx, "a@b.io", "password"); err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if err := s.SignOut(ctx); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if s.CurrentUser() != nil {
		t.Fatal("user should be signed out")
	}
	if _, _, ok, _ := local.Credentials(ctx); ok {
		t.Error("credentials should be cleared on sign-out")
	}

	if _, _, err := s.SignIn(ctx, "a@b.io", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password err = %v", err)
	}
	if _, _, err := s.SignIn(ctx, "nobody@b.io", "password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown email err = %v", err)
	}
	u, _, err := s.SignIn(ctx, "A@B.io", "password")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if cur := s.CurrentUser(); cur == nil || cur.ID != u.ID {
		t.Errorf("CurrentUser = %+v, want %s", cur, u.ID)
	}
}

func TestOnChangeNotifiesUntilUnsubscribed(t *testing.T) {
	s, _ := newTestService(t, newMemUsers())
	ctx := context.Background()

	var seen []string
	unsubscribe := s.OnChange(func(u *models.User) {
		if u == nil {
			seen = append(seen, "<nil>")
			return
		}
		seen = append(seen, u.Email)
	})

	if _, _, err := s.SignUp(ctx, "x@y.dev", "abcdef"); err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if err := s.SignOut(ctx); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	unsubscribe()
	if _, _, err := s.SignIn(ctx, "x@y.dev", "abcdef"); err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	want := []string{"x@y.dev", "<nil>"}
	if len(seen) != len(want) {
		t.Fatalf("notifications = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("[%d] = %q, want %q", i, seen[i], want[i])
		}
	}
}

func TestRestoreFromStoredToken(t *testing.T) {
	users := newMemUsers()
	s, local := newTestService(t, users)
	ctx := context.Background()

	u, _, err := s.SignUp(ctx, "keep@me.org", "longenough")
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}

	// A fresh process sharing the same cache.
	restarted := New(users, local, "test-secret", s.log)
	if err := restarted.Restore(ctx); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if id, ok := restarted.CurrentUserID(); !ok || id != u.ID {
		t.Errorf("restored user = %q %v, want %q", id, ok, u.ID)
	}
}

func TestRestoreDiscardsExpiredToken(t *testing.T) {
	users := newMemUsers()
	s, local := newTestService(t, users)
	ctx := context.Background()

	if _, _, err := s.SignUp(ctx, "old@me.org", "longenough"); err != nil {
		t.Fatalf("SignUp: %v", err)
	}

	later := New(users, local, "test-secret", s.log)
	later.now = func() time.Time { return time.Now().Add(TokenTTL + time.Hour) }
	if err := later.Restore(ctx); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if later.CurrentUser() != nil {
		t.Error("expired token must not restore a user")
	}
	if _, _, ok, _ := local.Credentials(ctx); ok {
		t.Error("expired credentials should be cleared")
	}
}

func TestParseTokenRejectsOtherSecret(t *testing.T) {
	s, _ := newTestService(t, newMemUsers())
	token, err := s.IssueToken(models.User{ID: "u1", Email: "a@b.io"})
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if id, err := s.ParseToken(token); err != nil || id != "u1" {
		t.Errorf("ParseToken = %q %v", id, err)
	}

	other, _ := newTestService(t, newMemUsers())
	other.secret = []byte("different")
	if _, err := other.ParseToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("foreign token err = %v, want ErrInvalidToken", err)
	}
}

func TestDisabledService(t *testing.T) {
	s, _ := newTestService(t, nil)
	ctx := context.Background()

	if s.Enabled() {
		t.Fatal("service without users should be disabled")
	}
	if _, _, err := s.SignIn(ctx, "a@b.io", "password"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("SignIn err = %v, want ErrUnavailable", err)
	}
	if err := s.Restore(ctx); err != nil {
		t.Errorf("Restore on disabled service: %v", err)
	}
	if _, ok := s.CurrentUserID(); ok {
		t.Error("disabled service has no current user")
	}
}
