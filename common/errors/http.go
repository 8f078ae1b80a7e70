package errors

import (
	"net/http"
)

// HTTPStatus maps an error to the status code the web layer answers with.
// Errors that are not AppErrors are treated as internal failures.
func HTTPStatus(err error) int {
	appErr, ok := As(err)
	if !ok {
		return http.StatusInternalServerError
	}

	switch appErr.Code {
	case CodeRegistrationClosed, CodeDuplicateName, CodeRosterFull, CodeInvalidInput:
		return http.StatusBadRequest
	case CodeEntryNotFound, CodeNotFound:
		return http.StatusNotFound
	case CodeAlreadyExists, CodeConflict:
		return http.StatusConflict
	case CodeServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// IsUserFacing reports whether the error message can be shown to the caller as is.
func IsUserFacing(err error) bool {
	return HTTPStatus(err) < http.StatusInternalServerError
}
