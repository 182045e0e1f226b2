package service

import "github.com/Lixing-Zhang/service-marketplace/internal/models"

// transitions is the forward-only order lifecycle enforced in strict mode.
// COMPLETED and CANCELLED are terminal.
var transitions = map[models.OrderStatus][]models.OrderStatus{
	models.OrderCreated:          {models.OrderConfirmed, models.OrderCancelled},
	models.OrderConfirmed:        {models.OrderMechanicAssigned, models.OrderCancelled},
	models.OrderMechanicAssigned: {models.OrderInProgress, models.OrderCancelled},
	models.OrderInProgress:       {models.OrderCompleted, models.OrderCancelled},
}

// CanTransition reports whether an order may move from one status to another
// under the strict lifecycle. Re-applying the current status is always allowed.
func CanTransition(from, to models.OrderStatus) bool {
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
