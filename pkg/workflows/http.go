package workflows

import "net/http"

// HTTPStatus maps an error returned by the core to a response status.
func HTTPStatus(err error) int {
	e, ok := AsError(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch {
	case e.Code == CodeNotFound:
		return http.StatusNotFound
	case e.Code == CodeForbidden:
		return http.StatusForbidden
	case e.Kind == KindConflict, e.Kind == KindResource:
		return http.StatusConflict
	default:
		return http.StatusUnprocessableEntity
	}
}
