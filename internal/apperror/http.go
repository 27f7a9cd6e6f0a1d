package apperror

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
)

type errorBody struct {
	StatusCode int               `json:"statusCode"`
	Code       Code              `json:"code"`
	Message    string            `json:"message"`
	Fields     map[string]string `json:"fields,omitempty"`
}

// HTTPErrorHandler returns an echo error handler that maps typed errors to
// their HTTP status and a stable JSON body. Unknown errors become 500s with
// the cause kept to the logs.
func HTTPErrorHandler(log *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		body := errorBody{
			StatusCode: http.StatusInternalServerError,
			Code:       CodeInternal,
			Message:    "internal error",
		}

		if ae, ok := As(err); ok {
			body.StatusCode = ae.HTTPStatus
			body.Code = ae.Code
			body.Message = ae.Message
			body.Fields = ae.Fields
			if ae.Internal != nil {
				log.Error("request error",
					slog.String("code", string(ae.Code)),
					slog.String("message", ae.Message),
					slog.Any("cause", ae.Internal),
				)
			}
		} else if he, ok := err.(*echo.HTTPError); ok {
			body.StatusCode = he.Code
			body.Code = CodeBadRequest
			if he.Code == http.StatusNotFound {
				body.Code = CodeNotFound
			}
			if msg, ok := he.Message.(string); ok {
				body.Message = msg
			} else {
				body.Message = http.StatusText(he.Code)
			}
		} else {
			log.Error("unhandled error", slog.Any("error", err))
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(body.StatusCode)
			return
		}
		_ = c.JSON(body.StatusCode, body)
	}
}
