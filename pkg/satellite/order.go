package satellite

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/ionosphere-go/ionosphere/pkg/invoice"
	"github.com/ionosphere-go/ionosphere/pkg/model"
	"github.com/ionosphere-go/ionosphere/pkg/storage"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// AuthTokenHeader carries an order's auth token on cancellation.
const AuthTokenHeader = "X-Auth-Token"

// maxDemandSize bounds the order response read into memory.
const maxDemandSize = 1 << 20

type state string

const (
	stateRequesting     state = "requesting"
	stateAwaitingDemand state = "awaiting_demand"
	stateValidating     state = "validating"
	statePaying         state = "paying"
	stateSettled        state = "settled"
	stateCompensating   state = "compensating"
	stateFailed         state = "failed"
)

// PlaceOrder uploads the file at path with a bid of bid millisatoshis and
// pays the resulting invoice. The upload is named after the final element of
// path. See PlaceOrderFromStream for the protocol.
func (c *Client) PlaceOrder(ctx context.Context, path string, bid model.Msat) (model.Order, error) {
	src, err := storage.OpenFile(path)
	if err != nil {
		return model.Order{}, &InvalidInputError{Reason: "open " + path, Err: err}
	}
	defer src.Close()
	return c.PlaceOrderFromStream(ctx, src, src.Name, bid)
}

// PlaceOrderFromStream uploads r as fileName with a bid of bid millisatoshis
// and pays the invoice the API demands for it.
//
// r is read exactly once and streamed; it is never buffered whole. The
// order is returned only after the payment node reports the invoice paid.
// If the API accepts the order but its invoice is unusable or the payment
// fails, the order is cancelled and an *APIResponseError or *PaymentError is
// returned; if that cancellation fails too the result is a
// *CompensationFailedError. A rejection is returned as *APIUsageError.
//
// ctx bounds the upload. Once the API has issued an order the protocol no
// longer observes ctx cancellation and runs to completion, so the order is
// either paid or cancelled.
func (c *Client) PlaceOrderFromStream(ctx context.Context, r io.Reader, fileName string, bid model.Msat) (model.Order, error) {
	if r == nil {
		return model.Order{}, &InvalidInputError{Reason: "nil data source"}
	}
	if fileName == "" {
		return model.Order{}, &InvalidInputError{Reason: "empty file name"}
	}

	log := zap.L().With(zap.Uint64("bid_msat", uint64(bid)), zap.String("file", fileName))
	log.Debug("placing order", zap.String("state", string(stateRequesting)))

	demand, err := c.postOrder(ctx, r, fileName, bid)
	if err != nil {
		log.Debug("order not placed", zap.String("state", string(stateFailed)), zap.Error(err))
		return model.Order{}, err
	}

	var acc *model.Accepted
	switch d := demand.(type) {
	case *model.Rejected:
		log.Info("order rejected", zap.String("message", d.Message), zap.Strings("errors", d.Errors))
		return model.Order{}, &APIUsageError{Message: d.Message, Errors: d.Errors}
	case *model.Accepted:
		acc = d
	default:
		return model.Order{}, &DecodeError{Op: "place order", Err: fmt.Errorf("%w: %T", model.ErrDecode, demand)}
	}

	// An order exists from here on; it must end paid or cancelled.
	ctx = context.WithoutCancel(ctx)
	order := acc.Order()
	log = log.With(zap.String("uuid", order.UUID))
	log.Debug("order accepted", zap.String("state", string(stateValidating)))

	if err := checkDemand(acc, bid); err != nil {
		return model.Order{}, c.compensate(ctx, log, order, err)
	}

	log.Debug("paying invoice", zap.String("state", string(statePaying)))
	receipt, err := c.node.Pay(ctx, acc.PayReq, c.payOpts)
	if err != nil {
		return model.Order{}, c.compensate(ctx, log, order, &PaymentError{UUID: order.UUID, Err: err})
	}

	log.Info("order paid",
		zap.String("state", string(stateSettled)),
		zap.String("payment_hash", receipt.PaymentHash),
		zap.Uint64("sent_msat", uint64(receipt.AmountSent)))
	return order, nil
}

// postOrder sends the multipart order request and decodes the demand. The
// body is produced by a writer goroutine through a pipe.
func (c *Client) postOrder(ctx context.Context, r io.Reader, fileName string, bid model.Msat) (model.Demand, error) {
	const op = "place order"

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	var g errgroup.Group
	g.Go(func() error {
		err := writeOrderForm(mw, r, fileName, bid)
		_ = pw.CloseWithError(err)
		return err
	})
	// Unblocks the writer when the transport stops reading early.
	wait := func() error {
		_ = pr.Close()
		return g.Wait()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint.Orders(), pr)
	if err != nil {
		_ = wait()
		return nil, &TransportError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	zap.L().Debug("awaiting demand", zap.String("state", string(stateAwaitingDemand)), zap.String("url", req.URL.String()))
	resp, err := c.upload.Do(req)
	if err != nil {
		if werr := wait(); werr != nil && !errors.Is(werr, io.ErrClosedPipe) {
			err = werr
		}
		return nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDemandSize))
	if werr := wait(); werr != nil && !errors.Is(werr, io.ErrClosedPipe) {
		zap.L().Warn("upload did not complete", zap.Int("status", resp.StatusCode), zap.Error(werr))
	}
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}

	demand, err := model.DecodeDemand(body)
	if err != nil {
		return nil, &DecodeError{Op: op, Err: fmt.Errorf("status %d: %w", resp.StatusCode, err)}
	}
	return demand, nil
}

func writeOrderForm(mw *multipart.Writer, r io.Reader, fileName string, bid model.Msat) error {
	if err := mw.WriteField("bid", strconv.FormatUint(uint64(bid), 10)); err != nil {
		return err
	}
	part, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, r); err != nil {
		return fmt.Errorf("read data source: %w", err)
	}
	return mw.Close()
}

// checkDemand validates the invoice of an accepted order against the bid.
func checkDemand(acc *model.Accepted, bid model.Msat) error {
	if acc.PayReq == "" {
		return &APIResponseError{UUID: acc.UUID, Reason: "missing invoice"}
	}
	inv, err := invoice.Decode(acc.PayReq)
	if err != nil {
		return &APIResponseError{UUID: acc.UUID, Reason: "unparseable invoice", Err: err}
	}
	amount, ok := inv.Amount()
	if !ok {
		return &APIResponseError{UUID: acc.UUID, Reason: "invoice carries no amount"}
	}
	if amount != bid {
		return &APIResponseError{
			UUID:    acc.UUID,
			Reason:  fmt.Sprintf("invoice amount %s does not match bid %s", amount, bid),
			Invoice: amount,
			Bid:     bid,
		}
	}
	return nil
}

// compensate cancels an order that will not be paid for. cause is returned
// when the cancellation succeeds.
func (c *Client) compensate(ctx context.Context, log *zap.Logger, order model.Order, cause error) error {
	log.Warn("cancelling unpaid order", zap.String("state", string(stateCompensating)), zap.Error(cause))

	ack, err := c.cancel(ctx, order)
	if err != nil {
		log.Error("order may still be outstanding",
			zap.String("state", string(stateFailed)),
			zap.NamedError("cause", cause),
			zap.NamedError("cancel_error", err))
		return &CompensationFailedError{Order: order, Cause: cause, CancelErr: err}
	}

	log.Warn("unpaid order cancelled", zap.String("state", string(stateFailed)), zap.Int("status", ack.StatusCode))
	return cause
}

// Ack acknowledges a cancellation request.
type Ack struct {
	// StatusCode is the API's HTTP status. Any status counts as an
	// acknowledgement; callers that care may inspect it.
	StatusCode int
}

// OK reports whether the API answered with a 2xx status.
func (a Ack) OK() bool {
	return a.StatusCode >= 200 && a.StatusCode <= 299
}

// CancelOrder deletes an order from the API, presenting its auth token.
// Every HTTP response counts as success; only transport failures are errors.
//
// Cancelling an order whose invoice is already paid removes the broadcast
// but never refunds the payment.
func (c *Client) CancelOrder(ctx context.Context, order model.Order) (Ack, error) {
	if err := order.Validate(); err != nil {
		return Ack{}, &InvalidInputError{Reason: "order handle", Err: err}
	}
	return c.cancel(ctx, order)
}

func (c *Client) cancel(ctx context.Context, order model.Order) (Ack, error) {
	const op = "cancel order"

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.endpoint.Order(order.UUID), nil)
	if err != nil {
		return Ack{}, &TransportError{Op: op, Err: err}
	}
	req.Header.Set(AuthTokenHeader, order.AuthToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return Ack{}, &TransportError{Op: op, Err: err}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	ack := Ack{StatusCode: resp.StatusCode}
	if !ack.OK() {
		zap.L().Warn("order cancellation answered with non-success status",
			zap.String("uuid", order.UUID), zap.Int("status", resp.StatusCode))
	}
	return ack, nil
}
