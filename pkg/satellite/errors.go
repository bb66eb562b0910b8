package satellite

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ionosphere-go/ionosphere/pkg/endpoint"
	"github.com/ionosphere-go/ionosphere/pkg/model"
)

// ErrInvalidInput is matched by every InvalidInputError.
var ErrInvalidInput = errors.New("invalid input")

// TransportError is an HTTP failure talking to the broadcast API: the
// request could not be sent, no response arrived, or a read-only request
// got a non-success status. It is never retried internally.
type TransportError struct {
	Op string
	// StatusCode is set when a response arrived with an unexpected status.
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: unexpected status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DecodeError reports a response body that matches no expected schema.
type DecodeError struct {
	Op  string
	Err error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("%s: decode response: %v", e.Op, e.Err) }

func (e *DecodeError) Unwrap() error { return e.Err }

// APIUsageError is an explicit rejection of an order by the API. No order
// exists afterwards.
type APIUsageError struct {
	Message string
	Errors  []string
}

func (e *APIUsageError) Error() string {
	if len(e.Errors) == 0 {
		return "order rejected: " + e.Message
	}
	return fmt.Sprintf("order rejected: %s (%s)", e.Message, strings.Join(e.Errors, "; "))
}

// APIResponseError reports an accepted order whose payment demand cannot be
// honoured: the invoice does not parse, carries no amount, or its amount
// differs from the bid. The order has been cancelled by the time the caller
// sees it.
type APIResponseError struct {
	UUID   string
	Reason string
	// Invoice and Bid are set on an amount mismatch.
	Invoice model.Msat
	Bid     model.Msat
	Err     error
}

func (e *APIResponseError) Error() string {
	msg := fmt.Sprintf("order %s: invalid payment demand: %s", e.UUID, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *APIResponseError) Unwrap() error { return e.Err }

// PaymentError reports that the local node failed to pay the invoice of an
// accepted order. The order has been cancelled and no funds moved.
type PaymentError struct {
	UUID string
	Err  error
}

func (e *PaymentError) Error() string {
	return fmt.Sprintf("order %s: payment failed: %v", e.UUID, e.Err)
}

func (e *PaymentError) Unwrap() error { return e.Err }

// PaymentNodeError is a failed call to the local payment node outside the
// order protocol (connecting to or funding a channel with the API's node).
type PaymentNodeError struct {
	Op  string
	Err error
}

func (e *PaymentNodeError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }

func (e *PaymentNodeError) Unwrap() error { return e.Err }

// CompensationFailedError is returned when an accepted order could not be
// paid for and cancelling it failed too. The order may still be outstanding
// on the API and needs manual attention; Order holds what is needed to cancel
// it later.
type CompensationFailedError struct {
	Order model.Order
	// Cause is the *PaymentError or *APIResponseError that required the
	// cancellation.
	Cause     error
	CancelErr error
}

func (e *CompensationFailedError) Error() string {
	return fmt.Sprintf("%s may still be outstanding: %v; cancellation failed: %v", e.Order, e.Cause, e.CancelErr)
}

func (e *CompensationFailedError) Unwrap() []error { return []error{e.Cause, e.CancelErr} }

// InvalidInputError is a caller mistake detected before any network call.
type InvalidInputError struct {
	Reason string
	Err    error
}

func (e *InvalidInputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid input: %s: %v", e.Reason, e.Err)
	}
	return "invalid input: " + e.Reason
}

func (e *InvalidInputError) Unwrap() error { return e.Err }

func (e *InvalidInputError) Is(target error) bool { return target == ErrInvalidInput }

// Kind maps an error returned by this package to a stable tag, suitable for
// logs and exit codes. Compensation failures win over their causes.
func Kind(err error) string {
	var (
		compErr  *CompensationFailedError
		respErr  *APIResponseError
		payErr   *PaymentError
		usageErr *APIUsageError
		decErr   *DecodeError
		nodeErr  *PaymentNodeError
		trErr    *TransportError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &compErr):
		return "compensation_failed"
	case errors.As(err, &respErr):
		return "api_response"
	case errors.As(err, &payErr):
		return "payment"
	case errors.As(err, &usageErr):
		return "api_usage"
	case errors.As(err, &decErr):
		return "decode"
	case errors.As(err, &nodeErr):
		return "payment_node"
	case errors.As(err, &trErr):
		return "transport"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, endpoint.ErrInvalidEndpoint):
		return "invalid_endpoint"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "internal"
	}
}
