package handlers_test

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/shopadmin/internal/handlers/testutil"
	"github.com/charlesng35/shopadmin/internal/models"
	"github.com/charlesng35/shopadmin/internal/services"
)

func TestAuthHandler_RegisterWithAvatarThenLogin(t *testing.T) {
	env := testutil.NewEnv(t)

	fields := map[string]string{
		"username": "Alice",
		"name":     "Alice Liddell",
		"email":    "Alice@Example.com",
		"password": "wonderland",
		"address":  `{"city":"Oxford","postal_code":"OX1"}`,
		"role":     "admin",
	}
	files := []testutil.File{{Field: "profile_picture", Filename: "me.png", Content: testutil.PNG}}

	rec := env.Multipart(http.MethodPost, "/api/register", fields, files, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	resp := testutil.DecodeResponse(t, rec)
	require.True(t, resp.Success)
	require.Equal(t, "Register successfully", resp.Message)

	var user models.User
	testutil.DecodeInto(t, resp.Data, &user)
	require.Equal(t, "alice", user.Username)
	require.Equal(t, "alice@example.com", user.Email)
	require.Equal(t, models.RoleUser, user.Role)
	require.Equal(t, "Oxford", user.Address.Data().City)
	require.True(t, strings.HasPrefix(user.ProfilePicture, "profile_picture-"))
	require.NotContains(t, rec.Body.String(), "wonderland")
	require.Equal(t, []string{"avatars/" + user.ProfilePicture}, env.StoredFiles("avatars"))

	login := env.Request(http.MethodPost, "/api/login", map[string]string{
		"email":    "ALICE@example.com",
		"password": "wonderland",
	}, "")
	require.Equal(t, http.StatusOK, login.Code, login.Body.String())

	loginResp := testutil.DecodeResponse(t, login)
	require.Equal(t, "Login successfully", loginResp.Message)
	var result services.LoginResult
	testutil.DecodeInto(t, loginResp.Data, &result)
	require.NotEmpty(t, result.Token)
	require.Equal(t, user.ID, result.User.ID)
	require.Positive(t, result.ExpiresIn)

	claims, err := env.JWT.ValidateAccessToken(result.Token)
	require.NoError(t, err)
	require.Equal(t, user.ID, claims.UserID)
	require.False(t, claims.IsAdmin())
}

func TestAuthHandler_RegisterConflictRemovesUpload(t *testing.T) {
	env := testutil.NewEnv(t)

	fields := map[string]string{
		"username": "bob",
		"name":     "Bob",
		"email":    "bob@example.com",
		"password": "builder1",
	}
	first := env.Multipart(http.MethodPost, "/api/register", fields, nil, "")
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())

	files := []testutil.File{{Field: "profile_picture", Filename: "bob.png", Content: testutil.PNG}}
	fields["username"] = "bobby"
	second := env.Multipart(http.MethodPost, "/api/register", fields, files, "")
	require.Equal(t, http.StatusConflict, second.Code, second.Body.String())

	resp := testutil.DecodeResponse(t, second)
	require.False(t, resp.Success)
	require.Equal(t, "CONFLICT", resp.Error.Code)
	require.Equal(t, "Email already exists.", resp.Error.Message)
	require.Empty(t, env.StoredFiles("avatars"))
}

func TestAuthHandler_RegisterValidation(t *testing.T) {
	env := testutil.NewEnv(t)

	rec := env.Request(http.MethodPost, "/api/register", map[string]any{
		"username": "al",
		"name":     "Al",
		"email":    "not-an-email",
		"password": "123",
	}, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	resp := testutil.DecodeResponse(t, rec)
	require.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	fields := make([]string, 0, len(resp.Error.Details))
	for _, detail := range resp.Error.Details {
		fields = append(fields, detail.Field)
	}
	require.ElementsMatch(t, []string{"username", "email", "password"}, fields)
}

func TestAuthHandler_RegisterRejectsBadAddress(t *testing.T) {
	env := testutil.NewEnv(t)

	rec := env.Multipart(http.MethodPost, "/api/register", map[string]string{
		"username": "carol",
		"name":     "Carol",
		"email":    "carol@example.com",
		"password": "secret1",
		"address":  "{not json",
	}, []testutil.File{{Field: "profile_picture", Filename: "c.png", Content: testutil.PNG}}, "")
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	resp := testutil.DecodeResponse(t, rec)
	require.Equal(t, "Address must be a valid JSON string.", resp.Error.Details[0].Message)
	require.Empty(t, env.StoredFiles("avatars"))
}

func TestAuthHandler_LoginFailures(t *testing.T) {
	env := testutil.NewEnv(t)
	user := env.CreateUser(models.RoleUser, "correct-horse")

	wrong := env.Request(http.MethodPost, "/api/login", map[string]string{
		"email":    user.Email,
		"password": "battery-staple",
	}, "")
	require.Equal(t, http.StatusUnauthorized, wrong.Code)
	require.Equal(t, "INVALID_CREDENTIALS", testutil.DecodeResponse(t, wrong).Error.Code)

	unknown := env.Request(http.MethodPost, "/api/login", map[string]string{
		"email":    "nobody@example.com",
		"password": "battery-staple",
	}, "")
	require.Equal(t, http.StatusUnauthorized, unknown.Code)
	require.Equal(t, testutil.DecodeResponse(t, wrong).Error, testutil.DecodeResponse(t, unknown).Error)

	invalid := env.Request(http.MethodPost, "/api/login", map[string]string{}, "")
	require.Equal(t, http.StatusBadRequest, invalid.Code)
	require.Equal(t, "VALIDATION_ERROR", testutil.DecodeResponse(t, invalid).Error.Code)

	malformed := env.Request(http.MethodPost, "/api/login", "{", "")
	require.Equal(t, http.StatusBadRequest, malformed.Code)
	require.Equal(t, "BAD_REQUEST", testutil.DecodeResponse(t, malformed).Error.Code)
}

func TestAuthHandler_LoginRateLimited(t *testing.T) {
	limited := testutil.NewEnv(t, testutil.WithLoginRateLimit(2, time.Minute))
	payload := map[string]string{"email": "x@example.com", "password": "whatever"}
	for i := 0; i < 2; i++ {
		rec := limited.Request(http.MethodPost, "/api/login", payload, "")
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	rec := limited.Request(http.MethodPost, "/api/login", payload, "")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))
	require.Equal(t, "RATE_LIMIT_EXCEEDED", testutil.DecodeResponse(t, rec).Error.Code)
}
