package model

import (
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// ErrDecode is wrapped by every error returned from DecodeDemand.
var ErrDecode = errors.New("response does not match a known schema")

// Demand is the API's answer to an order request: either *Accepted or
// *Rejected.
type Demand interface {
	demand()
}

// Accepted carries the credentials of a freshly created order together with
// the invoice that must be paid for it.
type Accepted struct {
	AuthToken string
	UUID      string
	// PayReq is the BOLT11 payment request. It may be empty when the API
	// issued credentials without an invoice; the order must still be
	// cancelled in that case.
	PayReq string
}

// Order returns the handle for the accepted order.
func (a *Accepted) Order() Order {
	return Order{UUID: a.UUID, AuthToken: a.AuthToken}
}

// Rejected is returned when the API refuses the request, e.g. a bid below
// its minimum.
type Rejected struct {
	Message string
	Errors  []string
}

func (*Accepted) demand() {}
func (*Rejected) demand() {}

type acceptedWire struct {
	AuthToken        *string `json:"auth_token"`
	UUID             *string `json:"uuid"`
	LightningInvoice *struct {
		PayReq *string `json:"payreq"`
	} `json:"lightning_invoice"`
}

// complete reports whether an order was created. The invoice is checked by
// the caller so that a created order without a usable invoice is cancelled.
func (w acceptedWire) complete() bool {
	return w.AuthToken != nil && *w.AuthToken != "" &&
		w.UUID != nil && *w.UUID != ""
}

func (w acceptedWire) payReq() string {
	if w.LightningInvoice == nil || w.LightningInvoice.PayReq == nil {
		return ""
	}
	return *w.LightningInvoice.PayReq
}

type rejectedWire struct {
	Message *string   `json:"message"`
	Errors  *[]string `json:"errors"`
}

func (w rejectedWire) complete() bool {
	return w.Message != nil && w.Errors != nil
}

// DecodeDemand decodes an order response body. The Accepted shape is tried
// first; a body matching neither shape is an ErrDecode. A body matching both
// is decoded as Accepted and reported with a warning since the API offers no
// discriminator.
func DecodeDemand(body []byte) (Demand, error) {
	var acc acceptedWire
	accErr := json.Unmarshal(body, &acc)

	var rej rejectedWire
	rejErr := json.Unmarshal(body, &rej)

	switch {
	case accErr == nil && acc.complete():
		if rejErr == nil && rej.complete() {
			zap.L().Warn("order response matches both accepted and rejected shapes, treating as accepted",
				zap.String("uuid", *acc.UUID))
		}
		return &Accepted{
			AuthToken: *acc.AuthToken,
			UUID:      *acc.UUID,
			PayReq:    acc.payReq(),
		}, nil
	case rejErr == nil && rej.complete():
		return &Rejected{Message: *rej.Message, Errors: *rej.Errors}, nil
	case accErr != nil && rejErr != nil:
		var syntax *json.SyntaxError
		if errors.As(accErr, &syntax) {
			return nil, fmt.Errorf("%w: %v", ErrDecode, syntax)
		}
		return nil, fmt.Errorf("%w: %d byte body has unexpected field types", ErrDecode, len(body))
	default:
		// The body may hold credentials; report only its size.
		return nil, fmt.Errorf("%w: %d byte body has no order or rejection fields", ErrDecode, len(body))
	}
}
