package domain

// orderTransitions is the forward-only order state table. Shop orders pass
// through READY_FOR_PICKUP; ticket orders go straight from PAID to COMPLETED.
var orderTransitions = map[string][]string{
	OrderStatusPending:        {OrderStatusPaid, OrderStatusCancelled},
	OrderStatusPaid:           {OrderStatusReadyForPickup, OrderStatusCompleted},
	OrderStatusReadyForPickup: {OrderStatusCompleted},
}

// CanTransitionOrder reports whether an order may move from -> to.
func CanTransitionOrder(from, to string, shop bool) bool {
	if shop && from == OrderStatusPaid && to == OrderStatusCompleted {
		return false
	}
	if !shop && to == OrderStatusReadyForPickup {
		return false
	}
	for _, s := range orderTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
