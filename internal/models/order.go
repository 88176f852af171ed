package models

import "time"

// OrderStatus is the internal lifecycle state of an order. Free-text courier
// vocabulary is confined to the mapper; everything past that boundary works in
// terms of these values.
type OrderStatus string

const (
	OrderStatusPending           OrderStatus = "pending"
	OrderStatusConfirmed         OrderStatus = "confirmed"
	OrderStatusHandoverToCourier OrderStatus = "handover_to_courier"
	OrderStatusInTransit         OrderStatus = "in_transit"
	OrderStatusOutForDelivery    OrderStatus = "out_for_delivery"
	OrderStatusDelivered         OrderStatus = "delivered"

	// RTO branch. Returned is terminal and is only ever set by the manual
	// package-verification flow, never by status mapping.
	OrderStatusRTOInitiated           OrderStatus = "rto_initiated"
	OrderStatusRTOVerificationPending OrderStatus = "rto_verification_pending"
	OrderStatusReturned               OrderStatus = "returned"

	OrderStatusCancelled     OrderStatus = "cancelled"
	OrderStatusHold          OrderStatus = "hold"
	OrderStatusLostInTransit OrderStatus = "lost_in_transit"
)

// TerminalStatuses are states the reconciler never moves an order out of.
var TerminalStatuses = []OrderStatus{
	OrderStatusDelivered,
	OrderStatusCancelled,
	OrderStatusReturned,
	OrderStatusLostInTransit,
}

func (s OrderStatus) IsTerminal() bool {
	for _, t := range TerminalStatuses {
		if s == t {
			return true
		}
	}
	return false
}

type Order struct {
	ID              string
	ExternalOrderID *string
	Status          OrderStatus

	// Verbatim courier status, mirrored on every change regardless of whether
	// the mapper recognizes it. CourierRawStatus is the backup copy.
	LogisticsStatus  string
	CourierRawStatus string

	RTOInitiatedAt *time.Time
	RTOReason      *string

	LogisticsProvider string
	IsSynced          bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// OrderUpdate is a partial update; nil fields are left untouched.
// RTOInitiatedAt is applied write-once (kept if already set).
type OrderUpdate struct {
	Status           *OrderStatus
	LogisticsStatus  *string
	CourierRawStatus *string
	RTOInitiatedAt   *time.Time
	RTOReason        *string
}

// CommentSender attributes a logistics comment to one side of the conversation.
type CommentSender string

const (
	SenderERPUser           CommentSender = "ERP_USER"
	SenderLogisticsProvider CommentSender = "LOGISTICS_PROVIDER"
)

type LogisticsComment struct {
	ID         uint64
	OrderID    string
	Comment    string
	Sender     CommentSender
	SenderName string
	ExternalID string
	Provider   string
	IsSynced   bool
	CreatedAt  time.Time
}

// TimelineEntry is an append-only audit record. Writes are best-effort: the
// reconciler never fails an order because the timeline insert failed.
type TimelineEntry struct {
	ID        uint64
	OrderID   string
	Status    string
	Note      string
	Actor     string
	CreatedAt time.Time
}

// RunResult is the aggregate outcome of one reconciliation pass.
type RunResult struct {
	TotalOrders        int       `json:"totalOrders"`
	StatusUpdatedCount int       `json:"statusUpdatedCount"`
	CommentsAddedCount int       `json:"commentsAddedCount"`
	Errors             []string  `json:"errors,omitempty"`
	DurationMS         int64     `json:"durationMs"`
	Success            bool      `json:"success"`
	Timestamp          time.Time `json:"timestamp"`
}
