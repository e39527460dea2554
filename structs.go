package checkbox

import (
	"fmt"
	"math"
	"time"
)

type ShiftStatus string

const (
	ShiftCreated ShiftStatus = "CREATED"
	ShiftOpened  ShiftStatus = "OPENED"
	ShiftClosed  ShiftStatus = "CLOSED"
)

// Shift as returned by the server. The server is authoritative for Status:
// shifts can be closed externally (another terminal, end-of-day process).
type Shift struct {
	ID       string      `json:"id"`
	Serial   int64       `json:"serial"`
	Status   ShiftStatus `json:"status"`
	OpenedAt time.Time   `json:"opened_at"`
	ClosedAt time.Time   `json:"closed_at"`
}

type ReceiptKind string

const (
	ReceiptSale       ReceiptKind = "SALE"
	ReceiptPrepayment ReceiptKind = "PREPAYMENT"
	ReceiptPostpaid   ReceiptKind = "POSTPAID"
)

type PaymentType string

const (
	PaymentCash     PaymentType = "CASH"
	PaymentCashless PaymentType = "CASHLESS"
)

type DiscountMode string

const (
	DiscountValue   DiscountMode = "VALUE"
	DiscountPercent DiscountMode = "PERCENT"
)

// ReceiptRequest describes a receipt to be created. Monetary amounts are in
// kopecks, quantities in thousandths of a unit (0 means one unit).
type ReceiptRequest struct {
	Kind        ReceiptKind `validate:"required,oneof=SALE PREPAYMENT POSTPAID"`
	CashierName string
	OrderID     int64

	// RelationID is the id of the prepayment receipt being settled,
	// required for POSTPAID.
	RelationID string

	Goods    []GoodsItem `validate:"dive"`
	Delivery Delivery
	Payment  Payment
	Discount *Discount
}

type GoodsItem struct {
	Code          string `validate:"required"`
	Name          string `validate:"required"`
	PriceKopecks  int64  `validate:"min=0"`
	QuantityMilli int64  `validate:"min=0"`
	IsReturn      bool
}

type Delivery struct {
	Phone string
}

type Payment struct {
	Type          PaymentType `validate:"required,oneof=CASH CASHLESS"`
	AmountKopecks int64       `validate:"min=0"`
	System        string
	RRN           string
	OwnerName     string
}

// Discount amount is in currency units for VALUE mode and in percents for
// PERCENT mode. Percent amounts go to the server unaltered, fractions
// included.
type Discount struct {
	Mode   DiscountMode `validate:"required,oneof=VALUE PERCENT"`
	Amount float64      `validate:"min=0"`
	Name   string
}

// Receipt as accepted by the server.
type Receipt struct {
	ID         string    `json:"id"`
	Serial     int64     `json:"serial"`
	Status     string    `json:"status"`
	TotalSum   int64     `json:"total_sum"`
	FiscalCode string    `json:"fiscal_code"`
	CreatedAt  time.Time `json:"created_at"`
}

func (r Receipt) String() string {
	return fmt.Sprintf("Receipt{%s %s %d}", r.ID, r.Status, r.TotalSum)
}

// Kopecks converts a currency amount to kopecks the way the API expects.
func Kopecks(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// Wire shapes of the receipt endpoints.

type goodWire struct {
	Code  string `json:"code"`
	Name  string `json:"name"`
	Price int64  `json:"price"`
}

type goodsEntryWire struct {
	Good             goodWire `json:"good"`
	Quantity         int64    `json:"quantity"`
	IsReturn         bool     `json:"is_return"`
	IsWinningsPayout bool     `json:"is_winnings_payout"`
}

type deliveryWire struct {
	Phone string `json:"phone,omitempty"`
}

type paymentWire struct {
	Type              PaymentType `json:"type"`
	Value             int64       `json:"value"`
	Label             string      `json:"label,omitempty"`
	PaymentSystem     string      `json:"payment_system,omitempty"`
	RRN               string      `json:"rrn,omitempty"`
	OwnerName         string      `json:"owner_name,omitempty"`
	SignatureRequired bool        `json:"signature_required"`
}

// Value is a float so PERCENT amounts round-trip without truncation;
// VALUE amounts are whole kopecks by construction.
type discountWire struct {
	Type  string       `json:"type"`
	Mode  DiscountMode `json:"mode"`
	Value float64      `json:"value"`
	Name  string       `json:"name,omitempty"`
}

type receiptWire struct {
	ID          string           `json:"id"`
	CashierName string           `json:"cashier_name,omitempty"`
	Goods       []goodsEntryWire `json:"goods,omitempty"`
	Delivery    *deliveryWire    `json:"delivery,omitempty"`
	Payments    []paymentWire    `json:"payments"`
	Discounts   []discountWire   `json:"discounts,omitempty"`
	Rounding    bool             `json:"rounding"`
}

type signinRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type signinResponse struct {
	AccessToken string `json:"access_token"`
}

type openShiftRequest struct {
	ID string `json:"id"`
}
