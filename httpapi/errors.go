package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/GoCodeAlone/storefront/catalog"
	"github.com/GoCodeAlone/storefront/eventbus"
	"github.com/GoCodeAlone/storefront/observable"
	"github.com/GoCodeAlone/storefront/order"
)

var statusByError = []struct {
	err    error
	status int
}{
	{order.ErrSubmissionFailed, http.StatusBadGateway},
	{catalog.ErrProductNotFound, http.StatusNotFound},
	{order.ErrStageInvalid, http.StatusUnprocessableEntity},
	{order.ErrWrongStage, http.StatusConflict},
	{order.ErrEmptyBasket, http.StatusConflict},
	{order.ErrSubmissionInFlight, http.StatusConflict},
	{order.ErrUnknownField, http.StatusBadRequest},
	{order.ErrInvalidPaymentMethod, http.StatusBadRequest},
	{observable.ErrUnknownField, http.StatusBadRequest},
	{observable.ErrFieldConversion, http.StatusBadRequest},
	{eventbus.ErrUnexpectedPayload, http.StatusBadRequest},
	{ErrBadRequestBody, http.StatusBadRequest},
	{context.DeadlineExceeded, http.StatusGatewayTimeout},
}

// StatusFor maps an error returned by the state layer to an HTTP status.
func StatusFor(err error) int {
	for _, m := range statusByError {
		if errors.Is(err, m.err) {
			return m.status
		}
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, err error, state any) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", "status", status, "error", err)
	}
	writeJSON(w, status, ErrorView{Error: err.Error(), State: state})
}
