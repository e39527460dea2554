package checkbox

import (
	"context"
	"errors"
	"fmt"

	"github.com/ansel1/merry"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type receiptBuilder struct {
	sess     *session
	shifts   *shiftManager
	validate *validator.Validate
}

func newReceiptBuilder(sess *session, shifts *shiftManager) *receiptBuilder {
	return &receiptBuilder{sess: sess, shifts: shifts, validate: validator.New()}
}

// submit validates the request locally, re-checks the shift against the
// server, then posts the receipt to the endpoint matching its kind.
//
// One client-generated token identifies the submission; transport retries
// reuse the same marshalled body, so the server can recognize a retried call
// as the same logical receipt. When retries are exhausted after the request
// was dispatched, the outcome is unconfirmed and the error carries the token
// so the caller can verify before resubmitting. The transport cannot tell a
// request that never left from one that died after reaching the server, so
// every transport failure on a submission is treated as ambiguous.
func (b *receiptBuilder) submit(ctx context.Context, req ReceiptRequest) (*Receipt, error) {
	if err := b.validateRequest(req); err != nil {
		return nil, err
	}
	if err := b.shifts.ensureOpen(ctx); err != nil {
		return nil, err
	}

	token := uuid.NewString()
	payload := buildReceiptWire(token, req)

	var rec Receipt
	var err error
	switch req.Kind {
	case ReceiptPrepayment:
		err = b.sess.do(ctx, "POST", "prepayment-receipts", nil, payload, &rec)
	case ReceiptPostpaid:
		// Goods were fixed when the prepayment was registered.
		payload.Goods = nil
		err = b.sess.do(ctx, "POST", "prepayment-receipts/"+req.RelationID, nil, payload, &rec)
	default:
		err = b.sess.do(ctx, "POST", "receipts/sell", nil, payload, &rec)
	}
	if err != nil {
		if merry.Is(err, ErrTransport) {
			return nil, ErrAmbiguousOutcome.Here().
				Append(err.Error()).
				WithValue(idempotencyTokenKey, token)
		}
		return nil, err
	}

	if rec.ID == "" {
		return nil, ErrProtocol.Here().Append("receipt response has no id")
	}
	log.Info().
		Str("receipt_id", rec.ID).Str("kind", string(req.Kind)).
		Int64("total_sum", rec.TotalSum).
		Msg("checkbox: receipt accepted")
	return &rec, nil
}

func (b *receiptBuilder) validateRequest(req ReceiptRequest) error {
	if err := b.validate.Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return ErrValidation.Here().Appendf("field %s failed rule %q", fe.Namespace(), fe.Tag())
		}
		return merry.Wrap(err)
	}
	if req.Discount != nil {
		if err := b.validate.Struct(req.Discount); err != nil {
			var fieldErrs validator.ValidationErrors
			if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
				fe := fieldErrs[0]
				return ErrValidation.Here().Appendf("field Discount.%s failed rule %q", fe.Field(), fe.Tag())
			}
			return merry.Wrap(err)
		}
	}

	switch req.Kind {
	case ReceiptPostpaid:
		if req.RelationID == "" {
			return ErrValidation.Here().Append("field RelationID is required for POSTPAID receipts")
		}
	default:
		if len(req.Goods) == 0 {
			return ErrValidation.Here().Append("field Goods must not be empty")
		}
	}
	return nil
}

func buildReceiptWire(token string, req ReceiptRequest) receiptWire {
	goods := make([]goodsEntryWire, len(req.Goods))
	for i, item := range req.Goods {
		quantity := item.QuantityMilli
		if quantity == 0 {
			quantity = 1000 // one unit
		}
		goods[i] = goodsEntryWire{
			Good: goodWire{
				Code:  item.Code,
				Name:  item.Name,
				Price: item.PriceKopecks,
			},
			Quantity: quantity,
			IsReturn: item.IsReturn,
		}
	}

	payment := paymentWire{
		Type:          req.Payment.Type,
		Value:         req.Payment.AmountKopecks,
		PaymentSystem: req.Payment.System,
		RRN:           req.Payment.RRN,
		OwnerName:     req.Payment.OwnerName,
	}
	if req.OrderID != 0 {
		payment.Label = fmt.Sprintf("Order #%d", req.OrderID)
	}

	wire := receiptWire{
		ID:          token,
		CashierName: req.CashierName,
		Goods:       goods,
		Payments:    []paymentWire{payment},
	}
	if req.Delivery.Phone != "" {
		wire.Delivery = &deliveryWire{Phone: req.Delivery.Phone}
	}
	if req.Discount != nil {
		wire.Discounts = []discountWire{discountWireFrom(*req.Discount)}
	}
	return wire
}

func discountWireFrom(d Discount) discountWire {
	value := d.Amount // percents pass through unchanged
	if d.Mode == DiscountValue {
		value = float64(Kopecks(d.Amount))
	}
	name := d.Name
	if name == "" {
		name = "Знижка"
	}
	return discountWire{Type: "DISCOUNT", Mode: d.Mode, Value: value, Name: name}
}
