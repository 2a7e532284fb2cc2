package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillmatch/auth-service/internal/config"
	"github.com/skillmatch/auth-service/internal/sessions"
	"github.com/skillmatch/auth-service/internal/tokens"
	"github.com/skillmatch/auth-service/internal/users"
)

type memUserRepo struct {
	byEmail map[string]*users.User
	byID    map[string]*users.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{byEmail: map[string]*users.User{}, byID: map[string]*users.User{}}
}

func (m *memUserRepo) Create(ctx context.Context, u *users.User) error {
	if _, ok := m.byEmail[u.Email]; ok {
		return users.ErrEmailTaken
	}
	m.byEmail[u.Email] = u
	m.byID[u.ID] = u
	return nil
}

func (m *memUserRepo) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	return m.byEmail[email], nil
}

func (m *memUserRepo) GetByID(ctx context.Context, id string) (*users.User, error) {
	return m.byID[id], nil
}

func (m *memUserRepo) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	if u := m.byID[id]; u != nil {
		u.PasswordHash = hash
	}
	return nil
}

func (m *memUserRepo) SetActive(ctx context.Context, id string, active bool) error {
	if u := m.byID[id]; u != nil {
		u.IsActive = active
	}
	return nil
}

func newTestService(t *testing.T) (*Service, *sessions.Service) {
	t.Helper()
	codec := tokens.NewCodec(config.JWTConfig{
		Secret:          "auth-test-secret-32-bytes-xxxxxxxxxx",
		AccessTokenTTL:  30 * time.Minute,
		RefreshTokenTTL: 7 * 24 * time.Hour,
	})
	usersSvc := users.NewService(newMemUserRepo(), 4)
	sessionsSvc := sessions.NewService(sessions.NewMemoryRepo(), config.SessionsConfig{})
	return NewService(codec, usersSvc, sessionsSvc), sessionsSvc
}

var testClient = ClientInfo{
	Device: &sessions.DeviceInfo{DeviceType: "desktop", OS: "Linux", Browser: "Firefox"},
	IP:     "203.0.113.7",
}

func TestRegisterAndLogin(t *testing.T) {
	svc, sessionsSvc := newTestService(t)
	ctx := context.Background()

	u, pair, err := svc.Register(ctx, "alice@example.com", "Alice", "Str0ng!pass", testClient)
	require.NoError(t, err)
	require.NotNil(t, pair)
	assert.Equal(t, "bearer", pair.TokenType)
	assert.Equal(t, 1800, pair.ExpiresIn)
	assert.NotEmpty(t, pair.SessionToken)

	// the session exists before tokens are handed out
	sess, err := sessionsSvc.FindByToken(ctx, pair.SessionToken)
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, u.ID, sess.UserID)
	assert.Equal(t, "203.0.113.7", sess.IPAddress)

	_, pair2, err := svc.Login(ctx, "alice@example.com", "Str0ng!pass", testClient)
	require.NoError(t, err)
	assert.NotEqual(t, pair.AccessToken, pair2.AccessToken)

	active, err := sessionsSvc.ActiveSessions(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, active, 2)
}

func TestLogin_BadCredentials(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.Register(ctx, "bob@example.com", "Bob", "Str0ng!pass", testClient)
	require.NoError(t, err)

	_, _, err = svc.Login(ctx, "bob@example.com", "wrong-password", testClient)
	assert.ErrorIs(t, err, users.ErrInvalidCredentials)
}

func TestRefresh_RotatesSession(t *testing.T) {
	svc, sessionsSvc := newTestService(t)
	ctx := context.Background()

	u, pair, err := svc.Register(ctx, "carol@example.com", "Carol", "Str0ng!pass", testClient)
	require.NoError(t, err)

	next, err := svc.Refresh(ctx, pair.RefreshToken, testClient)
	require.NoError(t, err)
	assert.NotEqual(t, pair.AccessToken, next.AccessToken)
	assert.NotEqual(t, pair.SessionID, next.SessionID)

	// the old session is revoked, the new one active
	active, err := sessionsSvc.ActiveSessions(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, next.SessionID, active[0].ID)

	old, err := sessionsSvc.FindByToken(ctx, pair.SessionToken)
	require.NoError(t, err)
	assert.Nil(t, old)
}

func TestRefresh_Rejections(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	u, pair, err := svc.Register(ctx, "dave@example.com", "Dave", "Str0ng!pass", testClient)
	require.NoError(t, err)

	// an access token is not a refresh token
	_, err = svc.Refresh(ctx, pair.AccessToken, testClient)
	assert.ErrorIs(t, err, tokens.ErrWrongTokenType)

	_, err = svc.Refresh(ctx, "garbage", testClient)
	assert.ErrorIs(t, err, tokens.ErrInvalidToken)

	// disabled accounts cannot rotate
	require.NoError(t, svc.DeactivateAccount(ctx, u.ID))
	_, err = svc.Refresh(ctx, pair.RefreshToken, testClient)
	assert.ErrorIs(t, err, users.ErrAccountDisabled)
}

func TestRefresh_AfterLogoutRejected(t *testing.T) {
	svc, sessionsSvc := newTestService(t)
	ctx := context.Background()

	u, pair, err := svc.Register(ctx, "grace@example.com", "Grace", "Str0ng!pass", testClient)
	require.NoError(t, err)

	svc.Logout(ctx, pair.AccessToken)

	// the refresh token minted alongside the access token dies with the session
	_, err = svc.Refresh(ctx, pair.RefreshToken, testClient)
	assert.ErrorIs(t, err, tokens.ErrInvalidToken)

	active, err := sessionsSvc.ActiveSessions(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestRefresh_ReplayAfterRotationRejected(t *testing.T) {
	svc, sessionsSvc := newTestService(t)
	ctx := context.Background()

	u, pair, err := svc.Register(ctx, "heidi@example.com", "Heidi", "Str0ng!pass", testClient)
	require.NoError(t, err)

	next, err := svc.Refresh(ctx, pair.RefreshToken, testClient)
	require.NoError(t, err)

	// replaying the consumed refresh token must not mint another pair
	_, err = svc.Refresh(ctx, pair.RefreshToken, testClient)
	assert.ErrorIs(t, err, tokens.ErrInvalidToken)

	active, err := sessionsSvc.ActiveSessions(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, next.SessionID, active[0].ID)
}

func TestLogout(t *testing.T) {
	svc, sessionsSvc := newTestService(t)
	ctx := context.Background()

	u, pair, err := svc.Register(ctx, "erin@example.com", "Erin", "Str0ng!pass", testClient)
	require.NoError(t, err)

	svc.Logout(ctx, pair.AccessToken)
	active, err := sessionsSvc.ActiveSessions(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, active)

	// malformed and repeated logouts are quiet no-ops
	svc.Logout(ctx, "not-a-token")
	svc.Logout(ctx, pair.AccessToken)
}

func TestDeactivateAccount_RevokesEverything(t *testing.T) {
	svc, sessionsSvc := newTestService(t)
	ctx := context.Background()

	u, _, err := svc.Register(ctx, "frank@example.com", "Frank", "Str0ng!pass", testClient)
	require.NoError(t, err)
	_, _, err = svc.Login(ctx, "frank@example.com", "Str0ng!pass", testClient)
	require.NoError(t, err)

	require.NoError(t, svc.DeactivateAccount(ctx, u.ID))

	active, err := sessionsSvc.ActiveSessions(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, active)

	_, _, err = svc.Login(ctx, "frank@example.com", "Str0ng!pass", testClient)
	assert.ErrorIs(t, err, users.ErrAccountDisabled)
}
