package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dmitrijs2005/mycocore/internal/logging"
)

// HeaderArmer is the part of the API client that carries the bearer header.
type HeaderArmer interface {
	SetAccessToken(token string)
	ClearAccessToken()
}

type Store struct {
	storage TokenStorage
	header  HeaderArmer
	log     logging.Logger

	mu  sync.Mutex
	cur *Session
}

func NewStore(storage TokenStorage, header HeaderArmer, log logging.Logger) *Store {
	if log == nil {
		log = logging.Nop()
	}
	return &Store{storage: storage, header: header, log: log.With("component", "session")}
}

// Restore reads the persisted token without touching memory or the
// network. It returns nil when the slot is empty or holds a malformed token.
func (s *Store) Restore(ctx context.Context) (*Session, error) {
	token, err := s.storage.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read token slot: %w", err)
	}
	if token == "" {
		return nil, nil
	}
	if err := ValidateTokenShape(token); err != nil {
		s.log.Warn(ctx, "ignoring malformed persisted token")
		return nil, nil
	}

	sess := &Session{AccessToken: token}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		s.log.Debug(ctx, "persisted token claims unreadable", "error", err)
		return sess, nil
	}
	if sub, err := claims.GetSubject(); err == nil {
		sess.UserID = sub
	}
	sess.Username, _ = claims["username"].(string)
	sess.Role, _ = claims["role"].(string)
	return sess, nil
}

// Install replaces the current session. A malformed token is rejected
// before anything changes.
func (s *Store) Install(ctx context.Context, sess Session) error {
	if err := ValidateTokenShape(sess.AccessToken); err != nil {
		return err
	}
	if err := s.storage.Set(ctx, sess.AccessToken); err != nil {
		return fmt.Errorf("failed to persist token: %w", err)
	}

	s.mu.Lock()
	cp := sess
	s.cur = &cp
	s.mu.Unlock()

	s.header.SetAccessToken(sess.AccessToken)
	s.log.Debug(ctx, "session installed", "user_id", sess.UserID)
	return nil
}

// Clear drops the session from memory, slot and header. Safe to repeat.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.cur = nil
	s.mu.Unlock()

	s.header.ClearAccessToken()

	if err := s.storage.Delete(ctx); err != nil {
		return fmt.Errorf("failed to clear token slot: %w", err)
	}
	return nil
}

func (s *Store) UpdateProfile(p ProfilePatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur == nil {
		return ErrNoSession
	}
	if p.empty() {
		return nil
	}
	s.cur.apply(p)
	return nil
}

func (s *Store) SetSecondaryFactorVerified(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur != nil {
		s.cur.SecondaryFactorVerified = v
	}
}

// Current returns a copy of the session.
func (s *Store) Current() (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur == nil {
		return Session{}, false
	}
	return *s.cur, true
}
