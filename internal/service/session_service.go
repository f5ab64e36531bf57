package service

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/ticketdesk/internal/auth"
	"github.com/spec-kit/ticketdesk/internal/domain"
	"github.com/spec-kit/ticketdesk/internal/repository"
	"github.com/spec-kit/ticketdesk/internal/validation"
	apperrors "github.com/spec-kit/ticketdesk/pkg/util"
)

// SessionDependencies bundles collaborators for the session service.
type SessionDependencies struct {
	Provider    auth.Provider
	Preferences repository.PreferenceRepository
	Logger      *zap.Logger
}

// SessionService owns who is signed in and which role they act as. Consumers
// read it through Snapshot or Subscribe; every change is persisted and
// broadcast.
type SessionService struct {
	provider auth.Provider
	prefs    repository.PreferenceRepository
	logger   *zap.Logger

	mu          sync.RWMutex
	state       domain.Session
	nextSubID   int
	subscribers map[int]func(domain.Session)
}

// NewSessionService constructs the service with an empty session.
func NewSessionService(deps SessionDependencies) *SessionService {
	provider := deps.Provider
	if provider == nil {
		provider = auth.NewLocalProvider()
	}
	prefs := deps.Preferences
	if prefs == nil {
		prefs = repository.NewMemoryPreferenceRepository()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{
		provider:    provider,
		prefs:       prefs,
		logger:      logger.Named("session"),
		subscribers: make(map[int]func(domain.Session)),
	}
}

// Subscribe registers fn for every future change. The returned func removes it.
func (s *SessionService) Subscribe(fn func(domain.Session)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subscribers, id)
			s.mu.Unlock()
		})
	}
}

// Snapshot returns a copy of the current session.
func (s *SessionService) Snapshot() domain.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copySession(s.state)
}

// Role is the role the user currently acts as, or "".
func (s *SessionService) Role() domain.Role {
	return s.Snapshot().Role
}

func (s *SessionService) IsClient() bool {
	return s.Role() == domain.RoleClient
}

func (s *SessionService) IsTechnician() bool {
	return s.Role() == domain.RoleTechnician
}

// AccessToken is the bearer token of the signed-in user, or "".
func (s *SessionService) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.AccessToken
}

// LoginWithEmail signs in and settles the role: a role already pinned to the
// account wins, then the role stored in the account metadata, then asRole.
// The chosen role is pinned to the account.
func (s *SessionService) LoginWithEmail(ctx context.Context, email, password string, asRole domain.Role) error {
	s.update(func(st *domain.Session) { st.AuthErr = nil })

	email, err := validation.ValidateCredentials(email, password)
	if err != nil {
		return s.fail(err)
	}
	result, err := s.provider.SignIn(ctx, email, password)
	if err != nil {
		return s.fail(err)
	}

	pinned, _ := s.AccountRole(ctx, email)
	metaRole, _ := result.User.MetadataRole()
	role, ok := auth.ResolveRole(pinned, metaRole, asRole)

	user := result.User
	s.update(func(st *domain.Session) {
		st.User = &user
		st.AccessToken = result.AccessToken
		if ok {
			st.Role = role
		}
	})
	if ok {
		s.pin(ctx, email, role)
	} else {
		s.persist(ctx)
	}
	return nil
}

// SignUp registers an account. needsConfirmation is true when the backend
// created the account without a session; the requested role is pinned either way.
func (s *SessionService) SignUp(ctx context.Context, email, password string, asRole domain.Role) (needsConfirmation bool, err error) {
	s.update(func(st *domain.Session) { st.AuthErr = nil })

	email, err = validation.ValidateCredentials(email, password)
	if err != nil {
		return false, s.fail(err)
	}
	result, err := s.provider.SignUp(ctx, email, password)
	if err != nil {
		return false, s.fail(err)
	}

	if !result.Pending {
		user := result.User
		if asRole.Valid() && result.AccessToken != "" {
			updated, err := s.provider.UpdateMetadata(ctx, result.AccessToken, map[string]any{"role": string(asRole)})
			if err != nil {
				s.logger.Warn("role not stored in account metadata", zap.String("email", email), zap.Error(err))
			} else if updated != nil {
				user = *updated
			}
		}
		s.update(func(st *domain.Session) {
			st.User = &user
			st.AccessToken = result.AccessToken
		})
	}

	if asRole.Valid() {
		s.update(func(st *domain.Session) { st.Role = asRole })
		s.pin(ctx, email, asRole)
	} else if !result.Pending {
		s.persist(ctx)
	}
	return result.Pending, nil
}

// Logout ends the session. Provider failures are logged; the local session is
// always cleared.
func (s *SessionService) Logout(ctx context.Context) {
	token := s.AccessToken()
	if err := s.provider.SignOut(ctx, token); err != nil {
		s.logger.Warn("provider sign-out failed", zap.Error(err))
	}
	s.replace(domain.Session{})
	if err := s.prefs.ClearSession(ctx); err != nil {
		s.logger.Warn("session not cleared", zap.Error(err))
	}
}

// LoginAs switches the acting role without touching the account.
func (s *SessionService) LoginAs(ctx context.Context, role domain.Role) error {
	if err := validation.ValidateRole(role); err != nil {
		return s.fail(err)
	}
	s.update(func(st *domain.Session) {
		st.Role = role
		st.AuthErr = nil
	})
	s.persist(ctx)
	return nil
}

// AccountRole returns the role pinned to email, if any.
func (s *SessionService) AccountRole(ctx context.Context, email string) (domain.Role, bool) {
	role, ok, err := s.prefs.PinnedRole(ctx, email)
	if err != nil {
		s.logger.Warn("pinned role lookup failed", zap.String("email", email), zap.Error(err))
		return "", false
	}
	return role, ok
}

// Resume restores the last persisted session, then asks the provider whether
// its token is still good. A rejected token signs the user out but keeps the
// role; an unreachable provider keeps the saved user.
func (s *SessionService) Resume(ctx context.Context) error {
	saved, err := s.prefs.LoadSession(ctx)
	if err != nil {
		return err
	}
	s.replace(domain.Session{User: saved.User, Role: saved.Role, AccessToken: saved.AccessToken})
	if saved.AccessToken == "" {
		return nil
	}

	user, err := s.provider.CurrentUser(ctx, saved.AccessToken)
	switch {
	case err == nil:
		s.update(func(st *domain.Session) { st.User = user })
	case apperrors.IsCode(err, apperrors.CodeUnauthorized):
		s.update(func(st *domain.Session) {
			st.User = nil
			st.AccessToken = ""
		})
	case errors.Is(err, context.Canceled):
		return err
	default:
		s.logger.Info("keeping saved session; provider unavailable", zap.Error(err))
		return nil
	}
	s.persist(ctx)
	return nil
}

func (s *SessionService) fail(err error) error {
	s.update(func(st *domain.Session) { st.AuthErr = err })
	return err
}

func (s *SessionService) pin(ctx context.Context, email string, role domain.Role) {
	if err := s.prefs.PinRole(ctx, email, role); err != nil {
		s.logger.Warn("role not pinned", zap.String("email", email), zap.Error(err))
	}
	s.persist(ctx)
}

func (s *SessionService) persist(ctx context.Context) {
	st := s.Snapshot()
	saved := repository.SavedSession{User: st.User, Role: st.Role, AccessToken: st.AccessToken}
	if err := s.prefs.SaveSession(ctx, saved); err != nil {
		s.logger.Warn("session not persisted", zap.Error(err))
	}
}

func (s *SessionService) update(fn func(*domain.Session)) {
	s.mu.Lock()
	fn(&s.state)
	st := copySession(s.state)
	subs := s.subscriberList()
	s.mu.Unlock()
	s.broadcast(subs, st)
}

func (s *SessionService) replace(st domain.Session) {
	s.update(func(cur *domain.Session) { *cur = st })
}

// must be called with s.mu held.
func (s *SessionService) subscriberList() []func(domain.Session) {
	subs := make([]func(domain.Session), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subs = append(subs, fn)
	}
	return subs
}

func (s *SessionService) broadcast(subs []func(domain.Session), st domain.Session) {
	for _, fn := range subs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error("session subscriber panicked", zap.Any("panic", r))
				}
			}()
			fn(copySession(st))
		}()
	}
}

func copySession(st domain.Session) domain.Session {
	if st.User != nil {
		u := *st.User
		if u.Metadata != nil {
			meta := make(map[string]any, len(u.Metadata))
			for k, v := range u.Metadata {
				meta[k] = v
			}
			u.Metadata = meta
		}
		st.User = &u
	}
	return st
}
