package fake

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFakeClient_DeterministicStatus(t *testing.T) {
	f := New()
	ctx := context.Background()

	a, err := f.PullStatus(ctx, "GBL-1001")
	require.NoError(t, err)
	require.NotNil(t, a)
	require.NotEmpty(t, a.Status)

	b, err := f.PullStatus(ctx, "GBL-1001")
	require.NoError(t, err)
	require.Equal(t, a.Status, b.Status)
}

func TestFakeClient_Comments(t *testing.T) {
	f := New()
	got, err := f.GetOrderComments(context.Background(), "GBL-1001")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.NotEmpty(t, got[0].Text)
	require.Equal(t, "fake-GBL-1001", got[0].ExternalID)
}
