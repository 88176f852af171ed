package status

import (
	"strings"

	"github.com/seetara/ReconBox/internal/models"
)

// exactVocabulary maps documented courier phrases verbatim (case-sensitive).
// Checked before any fuzzy heuristic so a documented phrase can never be
// re-bucketed by a substring match.
var exactVocabulary = map[string]models.OrderStatus{
	"Order Created":         models.OrderStatusHandoverToCourier,
	"Order Picked Up":       models.OrderStatusInTransit,
	"Pickup Complete":       models.OrderStatusInTransit,
	"In Transit":            models.OrderStatusInTransit,
	"Package in Transit":    models.OrderStatusInTransit,
	"Out For Delivery":      models.OrderStatusOutForDelivery,
	"Delivered":             models.OrderStatusDelivered,
	"Delivery Complete":     models.OrderStatusDelivered,
	"Customer Cancelled":    models.OrderStatusRTOInitiated,
	"Rejected by Customer":  models.OrderStatusRTOInitiated,
	"Undelivered":           models.OrderStatusRTOInitiated,
	"RTO Initiated":         models.OrderStatusRTOInitiated,
	"Delivered to Merchant": models.OrderStatusRTOVerificationPending,
	"Returned to Vendor":    models.OrderStatusRTOVerificationPending,
	"Return Completed":      models.OrderStatusRTOVerificationPending,
	"Cancelled":             models.OrderStatusCancelled,
	"Hold":                  models.OrderStatusHold,
	"On Hold":               models.OrderStatusHold,
	"Package Lost":          models.OrderStatusLostInTransit,
}

// rtoInitiatedPhrases are rejection/undelivered signals: the courier is, or is
// about to start, sending the package back.
var rtoInitiatedPhrases = []string{
	"customer cancelled",
	"customer rejected",
	"rejected",
	"undelivered",
	"rto initiated",
	"rto",
}

// rtoVerificationPhrases are "return finished" claims. They map to the holding
// state, never straight to returned: the package has to be physically verified
// first.
var rtoVerificationPhrases = []string{
	"return completed",
	"return complete",
	"returned to vendor",
	"returned to merchant",
	"returned",
}

// MapStatus translates a free-text courier status into an internal state.
// ok=false means the text is unrecognized and the internal status must not be
// touched (the caller still mirrors the verbatim string).
//
// MapStatus never yields OrderStatusReturned: a completed return can only be
// recorded by the manual verification flow.
func MapStatus(raw string) (models.OrderStatus, bool) {
	if st, ok := exactVocabulary[raw]; ok {
		return st, true
	}

	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return "", false
	}

	// "Delivered to Merchant" is a return event, not a customer delivery, so
	// the merchant/vendor exclusion has to run before the plain substring.
	if strings.Contains(s, "delivered") &&
		!strings.Contains(s, "merchant") && !strings.Contains(s, "vendor") {
		return models.OrderStatusDelivered, true
	}

	for _, p := range rtoInitiatedPhrases {
		if strings.Contains(s, p) {
			return models.OrderStatusRTOInitiated, true
		}
	}
	for _, p := range rtoVerificationPhrases {
		if strings.Contains(s, p) {
			return models.OrderStatusRTOVerificationPending, true
		}
	}
	// Conservative catch-all: anything return-sounding goes to the holding
	// state rather than falling through to an unrelated bucket.
	if strings.Contains(s, "return") || strings.Contains(s, "rto") {
		return models.OrderStatusRTOVerificationPending, true
	}

	switch {
	case strings.Contains(s, "cancel"):
		return models.OrderStatusCancelled, true
	case strings.Contains(s, "transit") || strings.Contains(s, "picked"):
		return models.OrderStatusInTransit, true
	case strings.Contains(s, "hold") || strings.Contains(s, "undeliver"):
		return models.OrderStatusHold, true
	case strings.Contains(s, "created"):
		return models.OrderStatusHandoverToCourier, true
	case strings.Contains(s, "out for delivery") || strings.Contains(s, "ofd"):
		return models.OrderStatusOutForDelivery, true
	}

	return "", false
}
