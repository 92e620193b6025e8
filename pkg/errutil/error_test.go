package errutil

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConstructorsKeepCodeAndCause(t *testing.T) {
	cause := errors.New("boom")
	err := Unauthorized("invalid api key", cause)

	var be BaseError
	require.True(t, errors.As(err, &be))
	require.Equal(t, StatusUnauthorized, be.Status())
	require.Equal(t, http.StatusUnauthorized, be.Code.HTTPStatus())
	require.ErrorIs(t, err, cause)
}

func TestJSONHidesCause(t *testing.T) {
	err := BadRequest("invalid payload", errors.New("json: unexpected EOF"), WithDetail("eventId", "required"))

	var be BaseError
	require.True(t, errors.As(err, &be))

	body := be.JSON()
	require.Equal(t, "invalid payload", body["error"])
	require.Equal(t, []Detail{{Field: "eventId", Message: "required"}}, body["details"])
}

func TestHTTPStatusDefaults(t *testing.T) {
	require.Equal(t, http.StatusNotFound, StatusNotFound.HTTPStatus())
	require.Equal(t, http.StatusInternalServerError, StatusUnknown.HTTPStatus())
	require.Equal(t, http.StatusInternalServerError, CoreStatus("something-else").HTTPStatus())
}
