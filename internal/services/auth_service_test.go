package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/charlesng35/shopadmin/internal/auth"
	"github.com/charlesng35/shopadmin/internal/models"
	appErrors "github.com/charlesng35/shopadmin/pkg/errors"
)

func newAuthFixture(t *testing.T, mailer *fakeMailer) (*AuthService, *fixture, *auth.JWTService) {
	t.Helper()
	f := newFixture(t)
	jwtSvc, err := auth.NewJWTService(auth.JWTConfig{Secret: "test-secret", Issuer: "shopadmin"})
	require.NoError(t, err)

	svc, err := NewAuthService(f.users, jwtSvc, AuthOptions{AppName: "Shop", Mailer: mailer, Logger: zap.NewNop()})
	require.NoError(t, err)
	return svc, f, jwtSvc
}

func registration(username string) CreateUserInput {
	return CreateUserInput{
		Username: username,
		Name:     "Budi",
		Email:    username + "@example.com",
		Password: "secret123",
		Role:     models.RoleAdmin,
	}
}

func TestRegisterCreatesRegularUserAndSendsWelcome(t *testing.T) {
	mailer := &fakeMailer{}
	svc, _, _ := newAuthFixture(t, mailer)

	user, err := svc.Register(context.Background(), registration("budi"))
	require.NoError(t, err)
	require.Equal(t, models.RoleUser, user.Role)

	require.Len(t, mailer.sent, 1)
	require.Equal(t, []string{"budi@example.com"}, mailer.sent[0].To)
	require.Equal(t, "Welcome to Shop", mailer.sent[0].Subject)
}

func TestRegisterIgnoresMailFailure(t *testing.T) {
	svc, _, _ := newAuthFixture(t, &fakeMailer{err: errMailDown})

	user, err := svc.Register(context.Background(), registration("citra"))
	require.NoError(t, err)
	require.NotEmpty(t, user.ID)
}

func TestRegisterDuplicateSendsNothing(t *testing.T) {
	mailer := &fakeMailer{}
	svc, _, _ := newAuthFixture(t, mailer)

	_, err := svc.Register(context.Background(), registration("dewi"))
	require.NoError(t, err)
	_, err = svc.Register(context.Background(), registration("dewi"))
	require.True(t, appErrors.IsConflict(err))
	require.Len(t, mailer.sent, 1)
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	svc, _, jwtSvc := newAuthFixture(t, nil)
	user, err := svc.Register(ctx, registration("eka"))
	require.NoError(t, err)

	result, err := svc.Login(ctx, LoginInput{Email: "EKA@example.com", Password: "secret123"})
	require.NoError(t, err)
	require.Equal(t, user.ID, result.User.ID)
	require.Empty(t, result.User.Password)
	require.Equal(t, int64(3600), result.ExpiresIn)

	claims, err := jwtSvc.ValidateAccessToken(result.Token)
	require.NoError(t, err)
	require.Equal(t, user.ID, claims.UserID)
	require.Equal(t, models.RoleUser, claims.Role)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newAuthFixture(t, nil)
	_, err := svc.Register(ctx, registration("fajar"))
	require.NoError(t, err)

	_, err = svc.Login(ctx, LoginInput{Email: "fajar@example.com", Password: "wrong-password"})
	require.ErrorIs(t, err, appErrors.ErrInvalidCredentials)

	_, err = svc.Login(ctx, LoginInput{Email: "nobody@example.com", Password: "secret123"})
	require.ErrorIs(t, err, appErrors.ErrInvalidCredentials)

	_, err = svc.Login(ctx, LoginInput{Email: "not-an-email", Password: "x"})
	require.True(t, appErrors.IsValidation(err))
}

func TestEnsureAdminIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, f, _ := newAuthFixture(t, nil)
	admin := BootstrapAdmin{Email: "root@example.com", Password: "changeme123"}

	created, err := svc.EnsureAdmin(ctx, admin)
	require.NoError(t, err)
	require.True(t, created)

	created, err = svc.EnsureAdmin(ctx, admin)
	require.NoError(t, err)
	require.False(t, created)

	stored, err := f.users.FindByEmail(ctx, "root@example.com")
	require.NoError(t, err)
	require.Equal(t, models.RoleAdmin, stored.Role)
	require.Equal(t, "admin", stored.Username)

	created, err = svc.EnsureAdmin(ctx, BootstrapAdmin{})
	require.NoError(t, err)
	require.False(t, created)
}
