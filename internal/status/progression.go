package status

import "github.com/seetara/ReconBox/internal/models"

// happyPath is the strictly ordered delivery progression. The RTO branch is
// deliberately kept out of this sequence: a courier can report an RTO event at
// any point, so it is handled as a membership check instead of an index.
var happyPath = []models.OrderStatus{
	models.OrderStatusPending,
	models.OrderStatusConfirmed,
	models.OrderStatusHandoverToCourier,
	models.OrderStatusInTransit,
	models.OrderStatusOutForDelivery,
	models.OrderStatusDelivered,
}

var rtoStates = map[models.OrderStatus]struct{}{
	models.OrderStatusRTOInitiated:           {},
	models.OrderStatusRTOVerificationPending: {},
	models.OrderStatusLostInTransit:          {},
}

func happyIndex(s models.OrderStatus) (int, bool) {
	for i, v := range happyPath {
		if v == s {
			return i, true
		}
	}
	return -1, false
}

// CanTransition reports whether current may move to candidate. Forward moves
// along the happy path are allowed; RTO-branch states are always allowed.
// Everything else is rejected so a stale or replayed courier update cannot
// regress an order that already advanced.
func CanTransition(current, candidate models.OrderStatus) bool {
	if _, ok := rtoStates[candidate]; ok {
		return true
	}

	ci, candOK := happyIndex(candidate)
	if !candOK {
		return false
	}
	if current.IsTerminal() {
		return false
	}
	cur, curOK := happyIndex(current)
	if !curOK {
		// Side states like hold sit outside the sequence; any happy-path
		// status from the courier may resume the order.
		return true
	}
	return ci > cur
}
