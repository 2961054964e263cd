// Package auth is the email/password identity provider. It holds the
// device's current user, persists the sign-in token in the local cache and
// notifies listeners when the user changes.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/claude/workoutpal/internal/models"
	"github.com/claude/workoutpal/internal/storage"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	// MinPasswordLength is the shortest accepted password.
	MinPasswordLength = 6
	// TokenTTL is the lifetime of an issued sign-in token.
	TokenTTL = 30 * 24 * time.Hour

	issuer = "workoutpal"
)

var (
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrWeakPassword       = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	ErrEmailInUse         = errors.New("email already in use")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrUnavailable        = errors.New("accounts are not configured")
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// Users is the account repository.
type Users interface {
	CreateUser(ctx context.Context, email, passwordHash string) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	GetUser(ctx context.Context, id string) (models.User, error)
}

// CredentialStore keeps the signed-in email and token across restarts.
type CredentialStore interface {
	Credentials(ctx context.Context) (email, token string, ok bool, err error)
	SaveCredentials(ctx context.Context, email, token string) error
	ClearCredentials(ctx context.Context) error
}

// Service is the identity provider. A nil Users repository disables accounts:
// every operation except SignOut returns ErrUnavailable and there is never a
// current user.
type Service struct {
	users  Users
	creds  CredentialStore
	secret []byte
	log    *slog.Logger
	now    func() time.Time
	cost   int

	mu        sync.RWMutex
	current   *models.User
	listeners map[int]func(*models.User)
	nextID    int
}

// New creates the identity provider.
func New(users Users, creds CredentialStore, secret string, log *slog.Logger) *Service {
	return &Service{
		users:     users,
		creds:     creds,
		secret:    []byte(secret),
		log:       log,
		now:       time.Now,
		cost:      bcrypt.DefaultCost,
		listeners: make(map[int]func(*models.User)),
	}
}

// Enabled reports whether accounts are available.
func (s *Service) Enabled() bool { return s.users != nil }

// SignUp creates an account and signs it in. It returns the token.
func (s *Service) SignUp(ctx context.Context, email, password string) (models.User, string, error) {
	if !s.Enabled() {
		return models.User{}, "", ErrUnavailable
	}
	email = normalizeEmail(email)
	if !emailRegex.MatchString(email) {
		return models.User{}, "", ErrInvalidEmail
	}
	if len(password) < MinPasswordLength {
		return models.User{}, "", ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return models.User{}, "", fmt.Errorf("hashing password: %w", err)
	}
	u, err := s.users.CreateUser(ctx, email, string(hash))
	if errors.Is(err, storage.ErrDuplicate) {
		return models.User{}, "", ErrEmailInUse
	}
	if err != nil {
		return models.User{}, "", fmt.Errorf("creating user: %w", err)
	}
	s.log.Info("account created", "user", u.ID)

	token, err := s.establish(ctx, u)
	if err != nil {
		return models.User{}, "", err
	}
	return u, token, nil
}

// SignIn verifies the password and makes the account the current user. It
// returns the token.
func (s *Service) SignIn(ctx context.Context, email, password string) (models.User, string, error) {
	if !s.Enabled() {
		return models.User{}, "", ErrUnavailable
	}
	u, err := s.users.GetUserByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, storage.ErrNotFound) {
		return models.User{}, "", ErrInvalidCredentials
	}
	if err != nil {
		return models.User{}, "", fmt.Errorf("looking up user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return models.User{}, "", ErrInvalidCredentials
	}

	token, err := s.establish(ctx, u)
	if err != nil {
		return models.User{}, "", err
	}
	return u, token, nil
}

func (s *Service) establish(ctx context.Context, u models.User) (string, error) {
	token, err := s.IssueToken(u)
	if err != nil {
		return "", err
	}
	if err := s.creds.SaveCredentials(ctx, u.Email, token); err != nil {
		s.log.Warn("storing credentials", "error", err)
	}
	s.setCurrent(&u)
	s.log.Info("signed in", "user", u.ID)
	return token, nil
}

// SignOut clears the current user and the stored credentials.
func (s *Service) SignOut(ctx context.Context) error {
	err := s.creds.ClearCredentials(ctx)
	if err != nil {
		s.log.Warn("clearing credentials", "error", err)
	}
	s.setCurrent(nil)
	s.log.Info("signed out")
	return err
}

// Restore re-establishes the current user from stored credentials. A missing
// token is not an error; an invalid or expired one is cleared.
func (s *Service) Restore(ctx context.Context) error {
	if !s.Enabled() {
		return nil
	}
	email, token, ok, err := s.creds.Credentials(ctx)
	if err != nil {
		return fmt.Errorf("reading credentials: %w", err)
	}
	if !ok {
		return nil
	}

	userID, err := s.ParseToken(token)
	if err != nil {
		s.log.Info("discarding stored token", "error", err)
		return s.creds.ClearCredentials(ctx)
	}
	u, err := s.users.GetUser(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		s.log.Info("stored user no longer exists", "user", userID)
		return s.creds.ClearCredentials(ctx)
	}
	if err != nil {
		return fmt.Errorf("loading user: %w", err)
	}
	if u.Email != email {
		s.log.Warn("stored email does not match account", "user", userID)
	}
	s.setCurrent(&u)
	s.log.Info("session restored", "user", u.ID)
	return nil
}

// IssueToken signs an HS256 token for u.
func (s *Service) IssueToken(u models.User) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"sub":   u.ID,
		"email": u.Email,
		"iss":   issuer,
		"iat":   now.Unix(),
		"exp":   now.Add(TokenTTL).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// ParseToken validates token and returns the user id it was issued for.
func (s *Service) ParseToken(token string) (string, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithExpirationRequired(), jwt.WithTimeFunc(s.now))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	sub, err := parsed.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", ErrInvalidToken
	}
	return sub, nil
}

// CurrentUser returns the signed-in user, or nil.
func (s *Service) CurrentUser() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil
	}
	u := *s.current
	return &u
}

// CurrentUserID returns the signed-in user's id.
func (s *Service) CurrentUserID() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return "", false
	}
	return s.current.ID, true
}

// OnChange registers fn to be called with the new user (nil on sign-out)
// whenever the current user changes. The returned func unregisters it.
func (s *Service) OnChange(fn func(*models.User)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Service) setCurrent(u *models.User) {
	s.mu.Lock()
	s.current = u
	fns := make([]func(*models.User), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		if u == nil {
			fn(nil)
			continue
		}
		cp := *u
		fn(&cp)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
