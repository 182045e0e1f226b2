package models

import "time"

type PaymentMethod string

const (
	MethodCash         PaymentMethod = "CASH"
	MethodEWallet      PaymentMethod = "E_WALLET"
	MethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	MethodQRCode       PaymentMethod = "QR_CODE"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCash, MethodEWallet, MethodBankTransfer, MethodQRCode:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentSuccess PaymentStatus = "SUCCESS"
	PaymentFailed  PaymentStatus = "FAILED"
)

// PaymentRequest represents an incoming create-payment request
type PaymentRequest struct {
	OrderID        string        `json:"orderId"`
	PayerID        string        `json:"payerId"`
	Amount         float64       `json:"amount"`
	Method         PaymentMethod `json:"method"`
	TransactionRef string        `json:"transactionRef"`
}

// Payment is a settlement attempt against an order.
// At most one payment per order may be in SUCCESS.
type Payment struct {
	ID             string        `json:"id" bson:"_id"`
	OrderID        string        `json:"orderId" bson:"orderId"`
	PayerID        string        `json:"payerId" bson:"payerId"`
	Amount         float64       `json:"amount" bson:"amount"`
	Method         PaymentMethod `json:"method" bson:"method"`
	Status         PaymentStatus `json:"status" bson:"status"`
	TransactionRef string        `json:"transactionRef" bson:"transactionRef"`
	CreatedAt      time.Time     `json:"createdAt" bson:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt" bson:"updatedAt"`
}
