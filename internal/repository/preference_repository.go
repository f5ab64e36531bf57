package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/ticketdesk/internal/domain"
)

// SavedSession is the last signed-in user and the role they acted as.
type SavedSession struct {
	User        *domain.User `json:"user,omitempty"`
	Role        domain.Role  `json:"role,omitempty"`
	AccessToken string       `json:"access_token,omitempty"`
}

// PreferenceRepository persists local UI state across runs.
type PreferenceRepository interface {
	LoadFilters(ctx context.Context) (domain.FilterSet, error)
	SaveFilters(ctx context.Context, filters domain.FilterSet) error
	PinnedRole(ctx context.Context, email string) (domain.Role, bool, error)
	PinRole(ctx context.Context, email string, role domain.Role) error
	LoadSession(ctx context.Context) (SavedSession, error)
	SaveSession(ctx context.Context, session SavedSession) error
	ClearSession(ctx context.Context) error
}

type redisPreferenceRepository struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisPreferenceRepository stores preferences under prefix.
func NewRedisPreferenceRepository(client redis.UniversalClient, prefix string) PreferenceRepository {
	if prefix == "" {
		prefix = "ticketdesk"
	}
	return &redisPreferenceRepository{client: client, prefix: prefix}
}

func (r *redisPreferenceRepository) key(name string) string {
	return r.prefix + ":" + name
}

func (r *redisPreferenceRepository) LoadFilters(ctx context.Context) (domain.FilterSet, error) {
	var filters domain.FilterSet
	raw, err := r.client.Get(ctx, r.key("filters")).Bytes()
	if errors.Is(err, redis.Nil) {
		return filters, nil
	}
	if err != nil {
		return filters, fmt.Errorf("load filters: %w", err)
	}
	if err := json.Unmarshal(raw, &filters); err != nil {
		return domain.FilterSet{}, fmt.Errorf("decode filters: %w", err)
	}
	return filters, nil
}

func (r *redisPreferenceRepository) SaveFilters(ctx context.Context, filters domain.FilterSet) error {
	raw, err := json.Marshal(filters)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key("filters"), raw, 0).Err(); err != nil {
		return fmt.Errorf("save filters: %w", err)
	}
	return nil
}

func (r *redisPreferenceRepository) PinnedRole(ctx context.Context, email string) (domain.Role, bool, error) {
	val, err := r.client.HGet(ctx, r.key("role_map"), domain.NormalizeEmail(email)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("load role pin: %w", err)
	}
	role := domain.Role(val)
	return role, role.Valid(), nil
}

func (r *redisPreferenceRepository) PinRole(ctx context.Context, email string, role domain.Role) error {
	key := domain.NormalizeEmail(email)
	if key == "" {
		return nil
	}
	if err := r.client.HSet(ctx, r.key("role_map"), key, string(role)).Err(); err != nil {
		return fmt.Errorf("pin role: %w", err)
	}
	return nil
}

func (r *redisPreferenceRepository) LoadSession(ctx context.Context) (SavedSession, error) {
	var saved SavedSession
	raw, err := r.client.Get(ctx, r.key("session")).Bytes()
	if errors.Is(err, redis.Nil) {
		return saved, nil
	}
	if err != nil {
		return saved, fmt.Errorf("load session: %w", err)
	}
	if err := json.Unmarshal(raw, &saved); err != nil {
		return SavedSession{}, fmt.Errorf("decode session: %w", err)
	}
	return saved, nil
}

func (r *redisPreferenceRepository) SaveSession(ctx context.Context, session SavedSession) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key("session"), raw, 0).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (r *redisPreferenceRepository) ClearSession(ctx context.Context) error {
	return r.client.Del(ctx, r.key("session")).Err()
}

type memoryPreferenceRepository struct {
	mu      sync.RWMutex
	filters domain.FilterSet
	roles   map[string]domain.Role
	session SavedSession
}

// NewMemoryPreferenceRepository keeps preferences for the life of the process.
func NewMemoryPreferenceRepository() PreferenceRepository {
	return &memoryPreferenceRepository{roles: make(map[string]domain.Role)}
}

func (m *memoryPreferenceRepository) LoadFilters(context.Context) (domain.FilterSet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.filters, nil
}

func (m *memoryPreferenceRepository) SaveFilters(_ context.Context, filters domain.FilterSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filters = filters
	return nil
}

func (m *memoryPreferenceRepository) PinnedRole(_ context.Context, email string) (domain.Role, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	role, ok := m.roles[domain.NormalizeEmail(email)]
	return role, ok, nil
}

func (m *memoryPreferenceRepository) PinRole(_ context.Context, email string, role domain.Role) error {
	key := domain.NormalizeEmail(email)
	if key == "" {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roles[key] = role
	return nil
}

func (m *memoryPreferenceRepository) LoadSession(context.Context) (SavedSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session, nil
}

func (m *memoryPreferenceRepository) SaveSession(_ context.Context, session SavedSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = session
	return nil
}

func (m *memoryPreferenceRepository) ClearSession(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = SavedSession{}
	return nil
}
