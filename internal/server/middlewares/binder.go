package middlewares

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/veebhq/veeb/internal/apierror"
)

type binder struct {
	echo.DefaultBinder
}

// NewBinder returns a wrapp of the default binder implementation with extra
// checks. The issues API only mutates through JSON bodies, so empty or
// non-JSON payloads are rejected before reaching a handler.
func NewBinder() echo.Binder {
	return &binder{}
}

// Bind implements the echo.Bind interface.
func (b *binder) Bind(i interface{}, c echo.Context) (err error) {
	req := c.Request()
	switch req.Method {
	case http.MethodPost, http.MethodPatch, http.MethodPut:
		if req.ContentLength == 0 {
			return apierror.NewWithTagCode(http.StatusBadRequest,
				apierror.TagMissingField, "request body can't be empty")
		}
		if ct := req.Header.Get(echo.HeaderContentType); !strings.HasPrefix(ct, echo.MIMEApplicationJSON) {
			return apierror.NewWithTagCode(http.StatusUnsupportedMediaType,
				"", "expected a JSON body")
		}
	}
	return b.DefaultBinder.Bind(i, c)
}
