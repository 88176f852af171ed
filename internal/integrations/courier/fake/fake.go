package fake

import (
	"context"
	"hash/fnv"
	"time"

	"github.com/seetara/ReconBox/internal/integrations/courier"
)

// FakeClient is a local stand-in for the courier API. Status is deterministic
// per external order id so repeated runs behave the same.
type FakeClient struct{}

func New() *FakeClient { return &FakeClient{} }

var statuses = []string{
	"In Transit",
	"In Transit",
	"Out For Delivery",
	"Delivered",
	"Returned to Vendor",
}

func (f *FakeClient) PullStatus(ctx context.Context, externalOrderID string) (*courier.StatusResult, error) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(externalOrderID))
	return &courier.StatusResult{Status: statuses[h.Sum32()%uint32(len(statuses))]}, nil
}

func (f *FakeClient) GetOrderComments(ctx context.Context, externalOrderID string) ([]courier.Comment, error) {
	now := time.Now().UTC()
	return []courier.Comment{
		{
			ExternalID: "fake-" + externalOrderID,
			Text:       "fake courier update",
			Author:     "Gaaubesi Staff",
			CreatedAt:  &now,
		},
	}, nil
}
