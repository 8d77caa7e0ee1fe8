package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// Logger defines the logging interface used by the auth service.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Session is the result of a successful login.
type Session struct {
	Token     string    `json:"access_token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
	User      *User     `json:"user"`
}

// Service authenticates operators.
type Service struct {
	users  UserRepository
	issuer *Issuer
	hasher Hasher
	logger Logger

	// dummyHash is verified for unknown usernames so that both failure
	// paths cost one Argon2 run.
	dummyHash string
}

// NewService creates a service. A zero hasher uses DefaultHasher.
func NewService(users UserRepository, issuer *Issuer, hasher Hasher, logger Logger) (*Service, error) {
	if hasher == (Hasher{}) {
		hasher = DefaultHasher
	}
	if logger == nil {
		logger = noopLogger{}
	}
	dummy, err := hasher.Hash("cuelogic-dummy-password")
	if err != nil {
		return nil, err
	}
	return &Service{users: users, issuer: issuer, hasher: hasher, logger: logger, dummyHash: dummy}, nil
}

// Users returns the account repository.
func (s *Service) Users() UserRepository { return s.users }

// Login checks the credentials and issues a token.
func (s *Service) Login(ctx context.Context, username, password string) (*Session, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if errors.Is(err, ErrUserNotFound) {
		_, _ = s.hasher.Verify(password, s.dummyHash) //nolint:errcheck // timing only
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		s.logger.Error("stored password hash is unreadable", "user", user.Username, "error", err)
		return nil, ErrInvalidCredentials
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}

	token, expires, err := s.issuer.Issue(user)
	if err != nil {
		return nil, err
	}
	s.logger.Info("operator logged in", "user", user.Username, "role", user.Role)
	return &Session{Token: token, TokenType: "Bearer", ExpiresAt: expires, User: user}, nil
}

// Authenticate validates token and returns its claims.
func (s *Service) Authenticate(token string) (*Claims, error) {
	return s.issuer.Parse(token)
}

// CreateUser hashes password and stores a new active account.
func (s *Service) CreateUser(ctx context.Context, username, password string, role Role) (*User, error) {
	if password == "" {
		return nil, fmt.Errorf("%w: empty password", ErrInvalidUser)
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	u := &User{Username: username, PasswordHash: hash, Role: role, IsActive: true}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// SetPassword replaces the password of the account id.
func (s *Service) SetPassword(ctx context.Context, id, password string) error {
	if password == "" {
		return fmt.Errorf("%w: empty password", ErrInvalidUser)
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}
	return s.users.UpdatePassword(ctx, id, hash)
}

// SeedAdmin creates an admin account when no account exists. An empty
// password is replaced by a random one, which is logged once and
// returned. It returns "" when seeding was skipped.
func (s *Service) SeedAdmin(ctx context.Context, username, password string) (string, error) {
	n, err := s.users.Count(ctx)
	if err != nil {
		return "", fmt.Errorf("checking user count: %w", err)
	}
	if n > 0 {
		s.logger.Debug("users exist, skipping admin seed")
		return "", nil
	}
	if username == "" {
		username = "admin"
	}

	generated := password == ""
	if generated {
		b := make([]byte, 16)
		if _, err := rand.Read(b); err != nil {
			return "", fmt.Errorf("generating admin password: %w", err)
		}
		password = hex.EncodeToString(b)
	}
	if _, err := s.CreateUser(ctx, username, password, RoleAdmin); err != nil {
		return "", fmt.Errorf("creating admin: %w", err)
	}

	if generated {
		s.logger.Warn("admin account created with a generated password",
			"username", username,
			"password", password,
			"action_required", "change this password",
		)
	} else {
		s.logger.Info("admin account created", "username", username)
	}
	return password, nil
}
