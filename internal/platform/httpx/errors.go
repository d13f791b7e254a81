package httpx

import (
	"net/http"

	"github.com/ledgerline/ledgerline/internal/billing"
)

var kindStatus = map[billing.ErrorKind]int{
	billing.KindUnauthorized:          http.StatusForbidden,
	billing.KindTerminalState:         http.StatusConflict,
	billing.KindImmutable:             http.StatusConflict,
	billing.KindBackwardTransition:    http.StatusConflict,
	billing.KindSystemManagedStatus:   http.StatusConflict,
	billing.KindImmutableNumberChange: http.StatusConflict,
	billing.KindValidationFailed:      http.StatusUnprocessableEntity,
	billing.KindNotFound:              http.StatusNotFound,
	billing.KindStorageFailure:        http.StatusBadGateway,
}

// RespondError maps a typed engine error to a failure envelope. Errors
// without a kind are treated as internal and their details withheld.
func RespondError(w http.ResponseWriter, err error) {
	kind, ok := billing.KindOf(err)
	if !ok {
		Fail(w, http.StatusInternalServerError, "internal error", "")
		return
	}
	status, ok := kindStatus[kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	Fail(w, status, err.Error(), string(kind))
}
