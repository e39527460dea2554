package checkbox

import (
	"fmt"

	"github.com/ansel1/merry"
)

// Failure kinds. Match with merry.Is; wrapped errors keep the sentinel.
var ErrValidation = merry.New("validation failed")
var ErrAuth = merry.New("authentication failed")
var ErrShiftAlreadyOpen = merry.New("shift already open")
var ErrShiftNotOpen = merry.New("shift not open")
var ErrTransport = merry.New("transport failure")
var ErrRejected = merry.New("rejected by server")
var ErrAmbiguousOutcome = merry.New("operation outcome unconfirmed")
var ErrProtocol = merry.New("malformed server response")

const apiErrorKey = "checkbox_api_error"
const idempotencyTokenKey = "checkbox_idempotency_token"

// APIError is the server's error payload from a non-2xx response.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("checkbox: HTTP %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("checkbox: HTTP %d: %s", e.Status, e.Message)
}

// APIErrorFrom extracts the server error payload attached to err, if any.
func APIErrorFrom(err error) (*APIError, bool) {
	apiErr, ok := merry.Value(err, apiErrorKey).(*APIError)
	return apiErr, ok
}

// IdempotencyToken returns the client-generated token of the submission that
// produced err. Non-empty only for ErrAmbiguousOutcome: the caller can use it
// to verify the outcome before resubmitting.
func IdempotencyToken(err error) string {
	token, _ := merry.Value(err, idempotencyTokenKey).(string)
	return token
}
