package messages

import "time"

// OrderSynced is published by the ERP once an order has been handed to the
// courier. Consuming it is how orders enter the reconciliation working set.
type OrderSynced struct {
	OrderID         string    `json:"order_id"`
	ExternalOrderID string    `json:"external_order_id"`
	Provider        string    `json:"provider"`
	Status          string    `json:"status,omitempty"`
	SyncedAt        time.Time `json:"synced_at"`
}

// OrderStatusChanged is published after a guard-approved status transition,
// for downstream dashboard/ticketing consumers.
type OrderStatusChanged struct {
	OrderID         string    `json:"order_id"`
	ExternalOrderID string    `json:"external_order_id,omitempty"`
	Provider        string    `json:"provider"`
	OldStatus       string    `json:"old_status"`
	NewStatus       string    `json:"new_status"`
	RawStatus       string    `json:"raw_status"`
	ChangedAt       time.Time `json:"changed_at"`
}
