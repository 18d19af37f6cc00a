package handlers

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/shopadmin/internal/services"
	appErrors "github.com/charlesng35/shopadmin/pkg/errors"
)

func newContext(t *testing.T, contentType, body string) *gin.Context {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	c.Request = req
	return c
}

func TestBindInputForm(t *testing.T) {
	form := url.Values{}
	form.Set("name", "Lamp")
	form.Set("price", "12.5")
	form.Set("stock", "3")
	form.Set("images", "")
	c := newContext(t, "application/x-www-form-urlencoded", form.Encode())

	var in services.UpdateProductInput
	require.NoError(t, bindInput(c, &in))
	require.NotNil(t, in.Name)
	require.Equal(t, "Lamp", *in.Name)
	require.Nil(t, in.Brand)

	price, ok, err := in.Price.Decode()
	require.NoError(t, err)
	require.True(t, ok)
	require.InDelta(t, 12.5, price, 0.0001)

	stock, _, err := in.Stock.Decode()
	require.NoError(t, err)
	require.Equal(t, 3, stock)

	require.True(t, in.Images.IsNull())
	require.False(t, in.DiscountPrice.IsSet())
}

func TestBindInputJSON(t *testing.T) {
	c := newContext(t, "application/json", `{"username":"neo","address":{"city":"Zion"},"profile_picture":null}`)

	var in services.UpdateUserInput
	require.NoError(t, bindInput(c, &in))
	require.Equal(t, "neo", *in.Username)
	require.True(t, in.ProfilePicture.IsNull())

	address, ok, err := in.Address.Decode()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "Zion", address.City)
}

func TestBindInputEmptyBody(t *testing.T) {
	c := newContext(t, "application/json", "")

	var in services.UpdateUserInput
	require.NoError(t, bindInput(c, &in))
	require.Nil(t, in.Username)
}

func TestBindInputMalformedJSON(t *testing.T) {
	c := newContext(t, "application/json", `{"username":`)

	var in services.UpdateUserInput
	err := bindInput(c, &in)
	require.Error(t, err)
	require.ErrorIs(t, err, appErrors.ErrBadRequest)
}
