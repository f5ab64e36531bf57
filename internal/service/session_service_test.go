package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticketdesk/internal/auth"
	"github.com/spec-kit/ticketdesk/internal/domain"
	"github.com/spec-kit/ticketdesk/internal/repository"
	apperrors "github.com/spec-kit/ticketdesk/pkg/util"
)

type fakeProvider struct {
	signInFn      func(ctx context.Context, email, password string) (*auth.AuthSession, error)
	signUpFn      func(ctx context.Context, email, password string) (*auth.AuthSession, error)
	updateMetaFn  func(ctx context.Context, token string, data map[string]any) (*domain.User, error)
	currentUserFn func(ctx context.Context, token string) (*domain.User, error)

	mu          sync.Mutex
	signOuts    []string
	metaUpdates []map[string]any
}

func (f *fakeProvider) SignIn(ctx context.Context, email, password string) (*auth.AuthSession, error) {
	return f.signInFn(ctx, email, password)
}

func (f *fakeProvider) SignUp(ctx context.Context, email, password string) (*auth.AuthSession, error) {
	return f.signUpFn(ctx, email, password)
}

func (f *fakeProvider) UpdateMetadata(ctx context.Context, token string, data map[string]any) (*domain.User, error) {
	f.mu.Lock()
	f.metaUpdates = append(f.metaUpdates, data)
	f.mu.Unlock()
	return f.updateMetaFn(ctx, token, data)
}

func (f *fakeProvider) CurrentUser(ctx context.Context, token string) (*domain.User, error) {
	return f.currentUserFn(ctx, token)
}

func (f *fakeProvider) SignOut(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signOuts = append(f.signOuts, token)
	return nil
}

func signedIn(metadata map[string]any) func(context.Context, string, string) (*auth.AuthSession, error) {
	return func(_ context.Context, email, _ string) (*auth.AuthSession, error) {
		return &auth.AuthSession{
			User:        domain.User{ID: "u-1", Email: email, Metadata: metadata},
			AccessToken: "token-1",
		}, nil
	}
}

func newSession(t *testing.T, provider auth.Provider) (*SessionService, repository.PreferenceRepository) {
	t.Helper()
	prefs := repository.NewMemoryPreferenceRepository()
	return NewSessionService(SessionDependencies{Provider: provider, Preferences: prefs}), prefs
}

func TestLoginWithEmail_LocalProvider(t *testing.T) {
	t.Parallel()
	svc, prefs := newSession(t, auth.NewLocalProvider())
	ctx := context.Background()

	require.NoError(t, svc.LoginWithEmail(ctx, "ana@example.com", "anything", domain.RoleClient))

	st := svc.Snapshot()
	require.True(t, st.Authenticated())
	assert.Equal(t, domain.LocalUserID, st.User.ID)
	assert.Equal(t, domain.RoleClient, st.Role)
	assert.True(t, svc.IsClient())

	pinned, ok, err := prefs.PinnedRole(ctx, "ANA@example.com")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, domain.RoleClient, pinned)

	saved, err := prefs.LoadSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleClient, saved.Role)
}

func TestLoginWithEmail_RolePrecedence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		pinned    domain.Role
		metadata  map[string]any
		requested domain.Role
		want      domain.Role
	}{
		{name: "pinned role wins", pinned: domain.RoleTechnician, metadata: map[string]any{"role": "CLIENTE"}, requested: domain.RoleClient, want: domain.RoleTechnician},
		{name: "metadata beats requested", metadata: map[string]any{"role": "tecnico"}, requested: domain.RoleClient, want: domain.RoleTechnician},
		{name: "requested when nothing else", requested: domain.RoleClient, want: domain.RoleClient},
		{name: "invalid metadata ignored", metadata: map[string]any{"role": "ADMIN"}, requested: domain.RoleTechnician, want: domain.RoleTechnician},
		{name: "no role at all", want: ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc, prefs := newSession(t, &fakeProvider{signInFn: signedIn(tt.metadata)})
			ctx := context.Background()
			if tt.pinned != "" {
				require.NoError(t, prefs.PinRole(ctx, "ana@example.com", tt.pinned))
			}

			require.NoError(t, svc.LoginWithEmail(ctx, "ana@example.com", "pw", tt.requested))
			assert.Equal(t, tt.want, svc.Role())
			assert.Equal(t, "token-1", svc.AccessToken())

			pinned, ok := svc.AccountRole(ctx, "ana@example.com")
			assert.Equal(t, tt.want != "", ok)
			assert.Equal(t, tt.want, pinned)
		})
	}
}

func TestLoginWithEmail_Failures(t *testing.T) {
	t.Parallel()
	rejected := apperrors.NewUnauthorizedError("Invalid login credentials", nil)
	calls := 0
	svc, _ := newSession(t, &fakeProvider{signInFn: func(context.Context, string, string) (*auth.AuthSession, error) {
		calls++
		return nil, rejected
	}})
	ctx := context.Background()

	err := svc.LoginWithEmail(ctx, "not-an-email", "", domain.RoleClient)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))
	assert.Zero(t, calls)

	err = svc.LoginWithEmail(ctx, "ana@example.com", "wrong", domain.RoleClient)
	assert.ErrorIs(t, err, rejected)

	st := svc.Snapshot()
	assert.False(t, st.Authenticated())
	assert.Empty(t, st.Role)
	assert.ErrorIs(t, st.AuthErr, rejected)
}

func TestSignUp_PendingConfirmation(t *testing.T) {
	t.Parallel()
	svc, _ := newSession(t, &fakeProvider{signUpFn: func(_ context.Context, email, _ string) (*auth.AuthSession, error) {
		return &auth.AuthSession{User: domain.User{ID: "u-2", Email: email}, Pending: true}, nil
	}})
	ctx := context.Background()

	needsConfirmation, err := svc.SignUp(ctx, "luis@example.com", "pw", domain.RoleTechnician)
	require.NoError(t, err)
	assert.True(t, needsConfirmation)

	st := svc.Snapshot()
	assert.False(t, st.Authenticated())
	assert.Equal(t, domain.RoleTechnician, st.Role)
	role, ok := svc.AccountRole(ctx, "luis@example.com")
	assert.True(t, ok)
	assert.Equal(t, domain.RoleTechnician, role)
}

func TestSignUp_WithSessionStoresRoleInMetadata(t *testing.T) {
	t.Parallel()
	provider := &fakeProvider{
		signUpFn: signedIn(nil),
		updateMetaFn: func(_ context.Context, token string, data map[string]any) (*domain.User, error) {
			assert.Equal(t, "token-1", token)
			return &domain.User{ID: "u-1", Email: "luis@example.com", Metadata: data}, nil
		},
	}
	svc, _ := newSession(t, provider)

	needsConfirmation, err := svc.SignUp(context.Background(), "luis@example.com", "pw", domain.RoleTechnician)
	require.NoError(t, err)
	assert.False(t, needsConfirmation)

	st := svc.Snapshot()
	require.True(t, st.Authenticated())
	metaRole, ok := st.User.MetadataRole()
	assert.True(t, ok)
	assert.Equal(t, domain.RoleTechnician, metaRole)
	assert.Equal(t, []map[string]any{{"role": "TECNICO"}}, provider.metaUpdates)
}

func TestSignUp_MetadataFailureIsNotFatal(t *testing.T) {
	t.Parallel()
	svc, _ := newSession(t, &fakeProvider{
		signUpFn: signedIn(nil),
		updateMetaFn: func(context.Context, string, map[string]any) (*domain.User, error) {
			return nil, errors.New("boom")
		},
	})

	_, err := svc.SignUp(context.Background(), "luis@example.com", "pw", domain.RoleClient)
	require.NoError(t, err)
	assert.True(t, svc.Snapshot().Authenticated())
	assert.Equal(t, domain.RoleClient, svc.Role())
}

func TestLogout(t *testing.T) {
	t.Parallel()
	provider := &fakeProvider{signInFn: signedIn(nil)}
	svc, prefs := newSession(t, provider)
	ctx := context.Background()
	require.NoError(t, svc.LoginWithEmail(ctx, "ana@example.com", "pw", domain.RoleClient))

	svc.Logout(ctx)

	st := svc.Snapshot()
	assert.False(t, st.Authenticated())
	assert.Empty(t, st.Role)
	assert.Empty(t, st.AccessToken)
	assert.Equal(t, []string{"token-1"}, provider.signOuts)

	saved, err := prefs.LoadSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, saved.User)

	role, ok := svc.AccountRole(ctx, "ana@example.com")
	assert.True(t, ok, "the pinned role outlives the session")
	assert.Equal(t, domain.RoleClient, role)
}

func TestLoginAs(t *testing.T) {
	t.Parallel()
	svc, _ := newSession(t, nil)
	ctx := context.Background()

	require.NoError(t, svc.LoginAs(ctx, domain.RoleTechnician))
	assert.True(t, svc.IsTechnician())

	err := svc.LoginAs(ctx, "ADMIN")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))
	assert.Equal(t, domain.RoleTechnician, svc.Role())
}

func TestSubscribe(t *testing.T) {
	t.Parallel()
	svc, _ := newSession(t, nil)
	ctx := context.Background()

	var seen []domain.Role
	unsubscribe := svc.Subscribe(func(st domain.Session) { seen = append(seen, st.Role) })
	svc.Subscribe(func(domain.Session) { panic("bad subscriber") })

	require.NoError(t, svc.LoginAs(ctx, domain.RoleClient))
	unsubscribe()
	unsubscribe()
	require.NoError(t, svc.LoginAs(ctx, domain.RoleTechnician))

	assert.Equal(t, []domain.Role{domain.RoleClient}, seen)
	assert.Equal(t, domain.RoleTechnician, svc.Role())
}

func TestSnapshotIsACopy(t *testing.T) {
	t.Parallel()
	svc, _ := newSession(t, &fakeProvider{signInFn: signedIn(map[string]any{"role": "CLIENTE"})})
	require.NoError(t, svc.LoginWithEmail(context.Background(), "ana@example.com", "pw", ""))

	st := svc.Snapshot()
	st.User.Email = "changed"
	st.User.Metadata["role"] = "TECNICO"

	again := svc.Snapshot()
	assert.Equal(t, "ana@example.com", again.User.Email)
	assert.Equal(t, "CLIENTE", again.User.Metadata["role"])
}

func TestResume(t *testing.T) {
	t.Parallel()
	saved := repository.SavedSession{
		User:        &domain.User{ID: "u-1", Email: "old@example.com"},
		Role:        domain.RoleTechnician,
		AccessToken: "token-1",
	}

	tests := []struct {
		name      string
		current   func(context.Context, string) (*domain.User, error)
		wantEmail string
		wantToken string
	}{
		{
			name: "token still valid",
			current: func(context.Context, string) (*domain.User, error) {
				return &domain.User{ID: "u-1", Email: "new@example.com"}, nil
			},
			wantEmail: "new@example.com",
			wantToken: "token-1",
		},
		{
			name: "token rejected",
			current: func(context.Context, string) (*domain.User, error) {
				return nil, apperrors.NewUnauthorizedError("session expired", nil)
			},
		},
		{
			name: "provider unreachable",
			current: func(context.Context, string) (*domain.User, error) {
				return nil, apperrors.NewNetworkError(errors.New("dial tcp"))
			},
			wantEmail: "old@example.com",
			wantToken: "token-1",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc, prefs := newSession(t, &fakeProvider{currentUserFn: tt.current})
			ctx := context.Background()
			require.NoError(t, prefs.SaveSession(ctx, saved))

			require.NoError(t, svc.Resume(ctx))

			st := svc.Snapshot()
			assert.Equal(t, domain.RoleTechnician, st.Role)
			assert.Equal(t, tt.wantToken, st.AccessToken)
			if tt.wantEmail == "" {
				assert.Nil(t, st.User)
				return
			}
			require.NotNil(t, st.User)
			assert.Equal(t, tt.wantEmail, st.User.Email)
		})
	}
}
