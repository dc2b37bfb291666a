package http

import (
	"errors"
	"net/http"

	"NetflowWatch/pkg/http/middleware"

	"github.com/labstack/echo/v4"
)

// DataResponse writes the envelope with statusCode in the body and records
// it for the metrics middleware, since the wire status is always 200.
func DataResponse(c echo.Context, statusCode int, data any) error {
	c.Set(middleware.StatusKey, statusCode)
	return c.JSON(http.StatusOK, APIResponse{
		Status:    statusCode,
		Message:   http.StatusText(statusCode),
		RequestID: c.Response().Header().Get(echo.HeaderXRequestID),
		Data:      data,
	})
}

// SuccessResponse writes success response.
func SuccessResponse(c echo.Context, data any) error {
	return DataResponse(c, http.StatusOK, data)
}

// BadRequestResponse writes a 400 envelope around data.
func BadRequestResponse(c echo.Context, data any) error {
	return DataResponse(c, http.StatusBadRequest, data)
}

// AppErrorResponse writes an *AppError with its own status; any other error
// becomes a 500 without details.
func AppErrorResponse(c echo.Context, err error) error {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return DataResponse(c, appErr.Status, []*AppError{appErr})
	}
	return DataResponse(c, http.StatusInternalServerError, "Something went wrong")
}
