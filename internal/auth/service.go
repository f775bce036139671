package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/m3rciful/crmbot/core/logger"
	"github.com/m3rciful/crmbot/internal/crm"
)

var (
	// ErrInvalidCredentials covers unknown logins, wrong secrets and archived
	// accounts alike.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrNoSession means the chat user has not signed in.
	ErrNoSession = errors.New("auth: not signed in")
	// ErrDeactivated means the backend user was archived or removed.
	ErrDeactivated = errors.New("auth: account deactivated")
)

// Directory is the backend user lookup used for authentication.
type Directory interface {
	UserByLogin(ctx context.Context, login string) (crm.User, bool, error)
	User(ctx context.Context, id string) (crm.User, error)
	LinkTelegram(ctx context.Context, userID string, chatUserID int64) error
}

// Conversations drops per-user conversation data.
type Conversations interface {
	Delete(chatUserID int64)
}

// Service authenticates chat users and validates their sessions.
type Service struct {
	dir      Directory
	sessions Sessions
	convs    Conversations
	now      func() time.Time
}

// NewService builds a Service. convs may be nil.
func NewService(dir Directory, sessions Sessions, convs Conversations) *Service {
	return &Service{dir: dir, sessions: sessions, convs: convs, now: time.Now}
}

// Sessions returns the underlying session store.
func (s *Service) Sessions() Sessions { return s.sessions }

// Authenticate checks login and secret and opens a session for chatUserID,
// replacing any previous one.
func (s *Service) Authenticate(ctx context.Context, chatUserID int64, login, secret string) (crm.User, error) {
	u, found, err := s.dir.UserByLogin(ctx, login)
	if err != nil {
		return crm.User{}, fmt.Errorf("auth: lookup: %w", err)
	}
	if !found || u.Archived || !checkSecret(u.Password, secret) {
		logger.Warn(ctx, logger.CompAuth, "auth.fail", slog.String("status", "rejected"))
		return crm.User{}, ErrInvalidCredentials
	}

	s.sessions.Put(Session{ChatUserID: chatUserID, BackendUserID: u.ID, LastPoll: s.now()})
	if err := s.dir.LinkTelegram(ctx, u.ID, chatUserID); err != nil {
		logger.Warn(ctx, logger.CompAuth, "auth.link_fail", slog.String("backend_user", u.ID), logger.Err(err))
	}
	logger.Info(ctx, logger.CompAuth, "auth.ok", slog.String("backend_user", u.ID))
	return u, nil
}

// IsActive re-reads the backend user. A missing or archived user is
// inactive; read failures are returned as errors.
func (s *Service) IsActive(ctx context.Context, sess Session) (bool, error) {
	u, err := s.dir.User(ctx, sess.BackendUserID)
	if errors.Is(err, crm.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("auth: check user: %w", err)
	}
	return !u.Archived, nil
}

// Resolve returns the active session of chatUserID. An inactive session is
// purged and reported as ErrDeactivated.
func (s *Service) Resolve(ctx context.Context, chatUserID int64) (Session, error) {
	sess, ok := s.sessions.Get(chatUserID)
	if !ok {
		return Session{}, ErrNoSession
	}
	active, err := s.IsActive(ctx, sess)
	if err != nil {
		return Session{}, err
	}
	if !active {
		s.Purge(chatUserID)
		return Session{}, ErrDeactivated
	}
	return sess, nil
}

// Purge drops the session and conversation of chatUserID.
func (s *Service) Purge(chatUserID int64) {
	s.sessions.Delete(chatUserID)
	if s.convs != nil {
		s.convs.Delete(chatUserID)
	}
}

// Logout purges chatUserID and reports whether a session existed.
func (s *Service) Logout(chatUserID int64) bool {
	_, had := s.sessions.Get(chatUserID)
	s.Purge(chatUserID)
	return had
}

func isBcryptHash(stored string) bool {
	return strings.HasPrefix(stored, "$2a$") || strings.HasPrefix(stored, "$2b$") || strings.HasPrefix(stored, "$2y$")
}

// checkSecret compares against a bcrypt hash, or in constant time against
// a legacy plaintext value.
func checkSecret(stored, secret string) bool {
	secret = strings.TrimSpace(secret)
	if stored == "" || secret == "" {
		return false
	}
	if isBcryptHash(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(secret)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(secret)) == 1
}
