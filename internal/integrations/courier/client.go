package courier

import (
	"context"
	"time"
)

// StatusResult is the courier's current verbatim status for an order.
type StatusResult struct {
	Status string
}

// Comment is one entry of the courier-side conversation feed, already reduced
// to the fields the reconciler cares about. CreatedAt is nil when the courier
// did not report a usable time.
type Comment struct {
	ExternalID string
	Text       string
	Author     string
	CreatedAt  *time.Time
}

// Client is the courier API as the reconciler sees it.
// PullStatus returns (nil, nil) when the courier has no data for the order;
// that is a successful no-op, not an error.
type Client interface {
	PullStatus(ctx context.Context, externalOrderID string) (*StatusResult, error)
	GetOrderComments(ctx context.Context, externalOrderID string) ([]Comment, error)
}
