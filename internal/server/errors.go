package server

import (
	"net/http"

	"studio-cli/internal/remote"
	"studio-cli/internal/store"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// newHTTPErrorHandler maps store errors onto status codes.
func newHTTPErrorHandler(log *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		code := http.StatusInternalServerError
		body := errorBody{Error: http.StatusText(http.StatusInternalServerError)}

		var he *echo.HTTPError
		var iue *store.InvalidUpdateError
		switch {
		case errors.As(err, &he):
			code = he.Code
			if msg, ok := he.Message.(string); ok {
				body.Error = msg
			} else {
				body.Error = http.StatusText(code)
			}
		case errors.Is(err, remote.ErrNotFound):
			code = http.StatusNotFound
			body.Error = err.Error()
		case errors.As(err, &iue):
			code = http.StatusBadRequest
			body.Error = iue.Reason
			body.Field = iue.Field
		default:
			log.Error("request failed", zap.String("uri", c.Request().RequestURI), zap.Error(err))
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, body)
		}
		if err != nil {
			log.Warn("write error response", zap.Error(err))
		}
	}
}
