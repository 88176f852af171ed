package status

import (
	"testing"

	"github.com/seetara/ReconBox/internal/models"
	"github.com/stretchr/testify/require"
)

func TestMapStatus_ExactVocabularyWins(t *testing.T) {
	for raw, want := range exactVocabulary {
		got, ok := MapStatus(raw)
		require.True(t, ok, raw)
		require.Equal(t, want, got, raw)
	}

	// "Undelivered" would hit the hold heuristic ("undeliver") if the exact
	// table did not take precedence.
	got, ok := MapStatus("Undelivered")
	require.True(t, ok)
	require.Equal(t, models.OrderStatusRTOInitiated, got)
}

func TestMapStatus_DeliveredVsMerchantReturn(t *testing.T) {
	got, ok := MapStatus("Package Delivered to customer")
	require.True(t, ok)
	require.Equal(t, models.OrderStatusDelivered, got)

	got, ok = MapStatus("delivered to merchant")
	require.True(t, ok)
	require.Equal(t, models.OrderStatusRTOVerificationPending, got)

	got, ok = MapStatus("Delivered back to vendor warehouse")
	require.True(t, ok)
	require.Equal(t, models.OrderStatusRTOVerificationPending, got)
}

func TestMapStatus_Heuristics(t *testing.T) {
	cases := []struct {
		raw  string
		want models.OrderStatus
	}{
		{"  customer rejected the package  ", models.OrderStatusRTOInitiated},
		{"marked undelivered, retry tomorrow", models.OrderStatusRTOInitiated},
		{"RTO in progress", models.OrderStatusRTOInitiated},
		{"return complete at branch", models.OrderStatusRTOVerificationPending},
		{"cancellation requested", models.OrderStatusCancelled},
		{"package picked from seller", models.OrderStatusInTransit},
		{"shipment in transit to hub", models.OrderStatusInTransit},
		{"kept on hold at branch", models.OrderStatusHold},
		{"shipment created", models.OrderStatusHandoverToCourier},
		{"OFD - rider assigned", models.OrderStatusOutForDelivery},
	}
	for _, c := range cases {
		got, ok := MapStatus(c.raw)
		require.True(t, ok, c.raw)
		require.Equal(t, c.want, got, c.raw)
	}
}

func TestMapStatus_Unrecognized(t *testing.T) {
	for _, raw := range []string{"", "   ", "weigh-in at hub", "label printed"} {
		_, ok := MapStatus(raw)
		require.False(t, ok, raw)
	}
}

// A completed return must always land in the holding state; only manual
// verification may produce returned.
func TestMapStatus_NeverReturned(t *testing.T) {
	inputs := []string{
		"Returned", "Return Completed", "Returned to Vendor", "RTO Delivered",
		"return", "package returned to origin", "Delivered", "random text",
	}
	for raw := range exactVocabulary {
		inputs = append(inputs, raw)
	}
	for _, raw := range inputs {
		got, _ := MapStatus(raw)
		require.NotEqual(t, models.OrderStatusReturned, got, raw)
	}
}
