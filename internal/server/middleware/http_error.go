package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"google.golang.org/grpc/codes"

	"github.com/nguyentranbao-ct/family-chat/internal/models"
)

// StatusRequestCanceled is nginx's status for a client that went away.
const StatusRequestCanceled = 499

var codeStatus = map[codes.Code]int{
	codes.InvalidArgument:  http.StatusBadRequest,
	codes.Unauthenticated:  http.StatusUnauthorized,
	codes.PermissionDenied: http.StatusForbidden,
	codes.NotFound:         http.StatusNotFound,
	codes.AlreadyExists:    http.StatusConflict,
}

// ErrorHandler return custom http error handler. Status errors from the
// usecases keep their code, anything unrecognised is a 500.
func ErrorHandler(log Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if err == nil || c.Response().Committed {
			return
		}

		resp := &ResponseError{
			Status:       http.StatusInternalServerError,
			Success:      false,
			Err:          err,
			ErrorMessage: http.StatusText(http.StatusInternalServerError),
		}

		var (
			he *echo.HTTPError
			re *ResponseError
		)
		switch {
		case errors.As(err, &re):
			resp = re
		case errors.As(err, &he):
			resp.Status = he.Code
			resp.ErrorMessage = fmt.Sprint(he.Message)
		case errors.Is(err, context.Canceled) && errors.Is(c.Request().Context().Err(), context.Canceled):
			resp.Status = StatusRequestCanceled
			resp.ErrorMessage = "request canceled"
		default:
			code := models.Code(err)
			if status, ok := codeStatus[code]; ok {
				resp.Status = status
				resp.ErrorCode = code.String()
				resp.ErrorMessage = models.ErrorMessage(err)
			}
		}

		if resp.Status == http.StatusNotFound && isNotFoundHandler(c.Handler()) {
			resp.ErrorMessage = "no route matched"
		}

		if resp.Status >= http.StatusInternalServerError {
			log.Errorw("request failed", "error", err, "uri", c.Request().RequestURI)
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(resp.Status)
		} else {
			err = c.JSON(resp.Status, resp)
		}
		if err != nil {
			log.Errorw("could not response", "code", resp.Status, "response_body", resp)
		}
	}
}
