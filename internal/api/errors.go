package api

import (
	"errors"
	"net/http"

	"crmsync/internal/domain"
)

// httpStatusFromDomainError maps domain errors to HTTP status codes. Unknown
// errors return 500 Internal Server Error.
func httpStatusFromDomainError(err error) int {
	var notFound *domain.NotFoundError
	var remoteUnavailable *domain.RemoteUnavailableError
	var sourceUnavailable *domain.SourceUnavailableError
	var validation *domain.ValidationError

	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &remoteUnavailable):
		return http.StatusServiceUnavailable
	case errors.As(err, &sourceUnavailable):
		return http.StatusBadGateway
	case errors.As(err, &validation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
