package apperr

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Body is the JSON error payload returned to API clients.
type Body struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HTTP translates err into an *echo.HTTPError carrying a Body. Errors outside
// the taxonomy become an opaque 500 whose cause is kept for logging.
func HTTP(err error) error {
	if err == nil {
		return nil
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}
	var ae *Error
	if errors.As(err, &ae) && ae.Kind != KindInternal {
		return echo.NewHTTPError(ae.HTTPStatus(), Body{Code: ae.Code, Message: ae.Message}).SetInternal(err)
	}
	return echo.NewHTTPError(http.StatusInternalServerError, Body{Code: "INTERNAL", Message: "internal server error"}).SetInternal(err)
}

// BadRequest builds a 400 for malformed request input (bad ids, unparsable
// bodies) that never reaches the domain.
func BadRequest(message string) error {
	return echo.NewHTTPError(http.StatusBadRequest, Body{Code: "BAD_REQUEST", Message: message})
}
