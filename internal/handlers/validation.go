package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mitchellh/mapstructure"

	appErrors "github.com/charlesng35/shopadmin/pkg/errors"
)

const maxFormMemory = 32 << 20

// bindInput decodes the request body into dest. Form bodies (multipart or urlencoded) are
// decoded through mapstructure with weak typing so that numeric and JSON text fields reach
// the service unchanged; any other body is treated as JSON. An empty body leaves dest as is.
func bindInput(c *gin.Context, dest any) error {
	if isFormRequest(c.Request) {
		values, err := formValues(c.Request)
		if err != nil {
			return appErrors.NewBadRequest("invalid form payload")
		}
		if err := decodeForm(values, dest); err != nil {
			return appErrors.NewBadRequest("invalid form payload")
		}
		return nil
	}

	if err := c.ShouldBindJSON(dest); err != nil && !errors.Is(err, io.EOF) {
		return appErrors.NewBadRequest("invalid JSON payload")
	}
	return nil
}

func isFormRequest(r *http.Request) bool {
	contentType := strings.ToLower(r.Header.Get("Content-Type"))
	return strings.HasPrefix(contentType, "multipart/form-data") ||
		strings.HasPrefix(contentType, "application/x-www-form-urlencoded")
}

// formValues flattens the posted text fields, keeping the first value of each.
func formValues(r *http.Request) (map[string]any, error) {
	if r.MultipartForm == nil && r.PostForm == nil {
		if strings.HasPrefix(strings.ToLower(r.Header.Get("Content-Type")), "multipart/") {
			if err := r.ParseMultipartForm(maxFormMemory); err != nil {
				return nil, err
			}
		} else if err := r.ParseForm(); err != nil {
			return nil, err
		}
	}

	values := make(map[string]any, len(r.PostForm))
	for key, list := range r.PostForm {
		if len(list) > 0 {
			values[key] = list[0]
		}
	}
	return values, nil
}

func decodeForm(values map[string]any, dest any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           dest,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.TextUnmarshallerHookFunc(),
	})
	if err != nil {
		return err
	}
	return decoder.Decode(values)
}
