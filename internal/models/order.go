package models

import "time"

// OrderStatus is the lifecycle stage of an order.
type OrderStatus string

const (
	OrderCreated          OrderStatus = "CREATED"
	OrderConfirmed        OrderStatus = "CONFIRMED"
	OrderMechanicAssigned OrderStatus = "MECHANIC_ASSIGNED"
	OrderInProgress       OrderStatus = "IN_PROGRESS"
	OrderCompleted        OrderStatus = "COMPLETED"
	OrderCancelled        OrderStatus = "CANCELLED"
)

// Valid reports whether s is one of the known statuses.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderCreated, OrderConfirmed, OrderMechanicAssigned, OrderInProgress, OrderCompleted, OrderCancelled:
		return true
	}
	return false
}

// OrderRequest represents an incoming create-order request
type OrderRequest struct {
	CustomerID     string  `json:"customerId"`
	ServiceID      string  `json:"serviceId"`
	EstimatedPrice float64 `json:"estimatedPrice"`
	LocationID     string  `json:"locationId"`
	VoucherCode    string  `json:"voucherCode,omitempty"`
}

// OrderStatusUpdate represents a status change, optionally assigning people
type OrderStatusUpdate struct {
	Status             OrderStatus `json:"status"`
	AssignedMechanicID string      `json:"assignedMechanicId,omitempty"`
	AssignedStaffID    string      `json:"assignedStaffId,omitempty"`
}

// Order represents a service request.
// FinalPrice is fixed at creation and never recomputed.
type Order struct {
	ID                 string      `json:"id" bson:"_id"`
	CustomerID         string      `json:"customerId" bson:"customerId"`
	ServiceID          string      `json:"serviceId" bson:"serviceId"`
	AssignedMechanicID string      `json:"assignedMechanicId,omitempty" bson:"assignedMechanicId,omitempty"`
	AssignedStaffID    string      `json:"assignedStaffId,omitempty" bson:"assignedStaffId,omitempty"`
	Status             OrderStatus `json:"status" bson:"status"`
	EstimatedPrice     float64     `json:"estimatedPrice" bson:"estimatedPrice"`
	VoucherID          string      `json:"voucherId,omitempty" bson:"voucherId,omitempty"`
	VoucherDiscount    float64     `json:"voucherDiscount" bson:"voucherDiscount"`
	FinalPrice         float64     `json:"finalPrice" bson:"finalPrice"`
	LocationID         string      `json:"locationId" bson:"locationId"`
	CreatedAt          time.Time   `json:"createdAt" bson:"createdAt"`
	UpdatedAt          time.Time   `json:"updatedAt" bson:"updatedAt"`
}
