package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spinsa/inventario/internal/config"
	"github.com/spinsa/inventario/internal/model"
	"github.com/spinsa/inventario/internal/repository"
	"github.com/spinsa/inventario/internal/session"
)

type fakeUsers struct {
	users map[string]model.User // email -> user
	pass  map[string]string     // email -> password
	err   error
	calls int
}

func (f *fakeUsers) Authenticate(_ context.Context, email, password string) (*model.User, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.users[email]
	if !ok || f.pass[email] != password {
		return nil, repository.ErrUserNotFound
	}
	return &u, nil
}

func newFakeUsers() *fakeUsers {
	brand := int64(1)
	return &fakeUsers{
		users: map[string]model.User{
			"admin@spinsa.mx": {ID: 1, Name: "Admin", Email: "admin@spinsa.mx", RoleID: model.RoleAdmin},
			"emp@spinsa.mx":   {ID: 2, Name: "Emp", Email: "emp@spinsa.mx", RoleID: model.RoleEmployee, BrandID: &brand},
			"odd@spinsa.mx":   {ID: 3, Name: "Odd", Email: "odd@spinsa.mx", RoleID: 32},
		},
		pass: map[string]string{"admin@spinsa.mx": "a", "emp@spinsa.mx": "e", "odd@spinsa.mx": "o"},
	}
}

func newService(t *testing.T, users UserAuthenticator, throttle *Throttle) (*Service, *session.Store) {
	t.Helper()
	store := session.NewStore(t.TempDir(), nil)
	return NewService(users, store, throttle, nil), store
}

func TestLoginPicksViewByRole(t *testing.T) {
	cases := []struct {
		email, password, view string
	}{
		{"admin@spinsa.mx", "a", ViewAdminDashboard},
		{"emp@spinsa.mx", "e", ViewEmployeeDashboard},
		{"odd@spinsa.mx", "o", ""},
	}
	for _, tc := range cases {
		t.Run(tc.email, func(t *testing.T) {
			svc, store := newService(t, newFakeUsers(), nil)

			res, err := svc.Login(context.Background(), tc.email, tc.password)
			require.NoError(t, err)
			assert.Equal(t, tc.view, res.View)

			saved, err := store.Read()
			require.NoError(t, err)
			require.NotNil(t, saved)
			assert.Equal(t, res.User, *saved)
		})
	}
}

func TestLoginWrongPasswordLeavesSessionUnchanged(t *testing.T) {
	svc, store := newService(t, newFakeUsers(), nil)
	ctx := context.Background()

	_, err := svc.Login(ctx, "emp@spinsa.mx", "e")
	require.NoError(t, err)
	before, err := store.Read()
	require.NoError(t, err)

	_, err = svc.Login(ctx, "admin@spinsa.mx", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	after, err := store.Read()
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestLoginInfrastructureFailureIsNotDenial(t *testing.T) {
	users := newFakeUsers()
	users.err = errors.New("connection refused")
	svc, store := newService(t, users, nil)

	_, err := svc.Login(context.Background(), "admin@spinsa.mx", "a")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)

	u, err := store.Read()
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestLogoutClearsSession(t *testing.T) {
	svc, store := newService(t, newFakeUsers(), nil)
	ctx := context.Background()

	_, err := svc.Login(ctx, "admin@spinsa.mx", "a")
	require.NoError(t, err)

	view, err := svc.Logout(ctx)
	require.NoError(t, err)
	assert.Equal(t, ViewIndex, view)

	u, err := store.Read()
	require.NoError(t, err)
	assert.Nil(t, u)

	// Logging out twice is harmless.
	_, err = svc.Logout(ctx)
	assert.NoError(t, err)
}

func TestRequire(t *testing.T) {
	svc, _ := newService(t, newFakeUsers(), nil)
	ctx := context.Background()

	_, err := svc.Require(ctx)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = svc.Login(ctx, "emp@spinsa.mx", "e")
	require.NoError(t, err)

	u, err := svc.Require(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), u.ID)

	_, err = svc.Require(ctx, model.RoleAdmin, model.RoleEmployee)
	assert.NoError(t, err)
	_, err = svc.Require(ctx, model.RoleAdmin)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestUpdateView(t *testing.T) {
	v, err := UpdateView(model.RoleAdmin, EntityPiece)
	require.NoError(t, err)
	assert.Equal(t, "admin/actualizar-pieza", v)

	v, err = UpdateView(model.RoleEmployee, EntityProduction)
	require.NoError(t, err)
	assert.Equal(t, "empleado/actualizar-produccion", v)

	_, err = UpdateView(32, EntityInventory)
	assert.ErrorIs(t, err, ErrForbidden)
}

func testThrottle(t *testing.T, max int, window time.Duration) (*Throttle, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	cfg := config.LoginThrottleConfig{Enabled: true, MaxAttempts: max, Window: window, Prefix: "login"}
	return NewThrottle(cfg, rdb, nil), mr
}

func TestLoginThrottle(t *testing.T) {
	throttle, mr := testThrottle(t, 2, time.Minute)
	users := newFakeUsers()
	svc, _ := newService(t, users, throttle)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := svc.Login(ctx, "admin@spinsa.mx", "wrong")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}
	_, err := svc.Login(ctx, "admin@spinsa.mx", "a")
	assert.ErrorIs(t, err, ErrThrottled)
	assert.Equal(t, 2, users.calls, "throttled attempt must not reach the database")
	var terr *ThrottleError
	require.ErrorAs(t, err, &terr)
	assert.Greater(t, terr.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, terr.RetryAfter, time.Minute)

	// Other accounts are unaffected.
	_, err = svc.Login(ctx, "emp@spinsa.mx", "e")
	assert.NoError(t, err)

	mr.FastForward(time.Minute + time.Second)
	_, err = svc.Login(ctx, "admin@spinsa.mx", "a")
	assert.NoError(t, err)
}

func TestLoginSuccessResetsThrottle(t *testing.T) {
	throttle, mr := testThrottle(t, 3, time.Minute)
	svc, _ := newService(t, newFakeUsers(), throttle)
	ctx := context.Background()

	_, err := svc.Login(ctx, "admin@spinsa.mx", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	assert.True(t, mr.Exists("login:fail:admin@spinsa.mx"))

	assert.Equal(t, throttle.key("admin@spinsa.mx"), throttle.key(" ADMIN@spinsa.mx "))

	_, err = svc.Login(ctx, "admin@spinsa.mx", "a")
	require.NoError(t, err)
	assert.False(t, mr.Exists("login:fail:admin@spinsa.mx"))
}

func TestThrottleDisabled(t *testing.T) {
	assert.Nil(t, NewThrottle(config.LoginThrottleConfig{Enabled: false}, redis.NewClient(&redis.Options{}), nil))
	assert.Nil(t, NewThrottle(config.LoginThrottleConfig{Enabled: true}, nil, nil))

	var th *Throttle
	assert.True(t, th.Allow(context.Background(), "x"))
	th.Fail(context.Background(), "x")
	th.Reset(context.Background(), "x")
}

func TestThrottleFailsOpenWhenRedisIsDown(t *testing.T) {
	throttle, mr := testThrottle(t, 1, time.Minute)
	mr.Close()
	assert.True(t, throttle.Allow(context.Background(), "admin@spinsa.mx"))
}
