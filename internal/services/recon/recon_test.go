package recon

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/seetara/ReconBox/internal/integrations/courier"
	"github.com/seetara/ReconBox/internal/models"
	"github.com/stretchr/testify/require"
)

type fakeOrderStore struct {
	orders      []*models.Order
	findErr     error
	updates     map[string][]models.OrderUpdate
	updateErr   error
	timeline    []models.TimelineEntry
	timelineErr error
}

func newFakeOrderStore(orders ...*models.Order) *fakeOrderStore {
	return &fakeOrderStore{orders: orders, updates: map[string][]models.OrderUpdate{}}
}

func (s *fakeOrderStore) FindEligibleOrders(ctx context.Context, providers []string) ([]*models.Order, error) {
	return s.orders, s.findErr
}

func (s *fakeOrderStore) UpdateOrder(ctx context.Context, id string, upd models.OrderUpdate) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	s.updates[id] = append(s.updates[id], upd)
	return nil
}

func (s *fakeOrderStore) AppendTimelineEntry(ctx context.Context, orderID, st, note string) error {
	if s.timelineErr != nil {
		return s.timelineErr
	}
	s.timeline = append(s.timeline, models.TimelineEntry{OrderID: orderID, Status: st, Note: note})
	return nil
}

type fakeCommentStore struct {
	stored    []*models.LogisticsComment
	findErr   error
	insertErr error
}

func (s *fakeCommentStore) FindExistingComment(ctx context.Context, orderID, provider, externalID, text string) (*models.LogisticsComment, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	for _, c := range s.stored {
		if c.OrderID != orderID || c.Provider != provider {
			continue
		}
		if externalID != "" && c.ExternalID == externalID {
			return c, nil
		}
		if c.Comment == text {
			return c, nil
		}
	}
	return nil, nil
}

func (s *fakeCommentStore) InsertComment(ctx context.Context, c *models.LogisticsComment) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.stored = append(s.stored, c)
	return nil
}

type fakeCourier struct {
	status      *courier.StatusResult
	statusErr   error
	comments    []courier.Comment
	commentsErr error
}

func (c *fakeCourier) PullStatus(ctx context.Context, externalOrderID string) (*courier.StatusResult, error) {
	return c.status, c.statusErr
}

func (c *fakeCourier) GetOrderComments(ctx context.Context, externalOrderID string) ([]courier.Comment, error) {
	return c.comments, c.commentsErr
}

func strPtr(s string) *string { return &s }

func inTransitOrder() *models.Order {
	return &models.Order{
		ID:                "ord-1",
		ExternalOrderID:   strPtr("GBL-1"),
		Status:            models.OrderStatusInTransit,
		LogisticsStatus:   "Package in Transit",
		LogisticsProvider: "Gaaubesi",
		IsSynced:          true,
	}
}

func TestReconcileOrderStatus_NoCourierData_NoOp(t *testing.T) {
	st := newFakeOrderStore()
	rec := New(st, &fakeCommentStore{}, &fakeCourier{status: nil})

	out, err := rec.ReconcileOrderStatus(context.Background(), inTransitOrder())
	require.NoError(t, err)
	require.False(t, out.Changed)
	require.Empty(t, st.updates)
}

func TestReconcileOrderStatus_SameStatusCaseInsensitive_NoOp(t *testing.T) {
	st := newFakeOrderStore()
	rec := New(st, &fakeCommentStore{}, &fakeCourier{status: &courier.StatusResult{Status: "PACKAGE IN TRANSIT"}})

	out, err := rec.ReconcileOrderStatus(context.Background(), inTransitOrder())
	require.NoError(t, err)
	require.False(t, out.Changed)
	require.Empty(t, st.updates)
}

// Unrecognized courier text still refreshes the verbatim mirror fields but
// never touches the internal status.
func TestReconcileOrderStatus_UnrecognizedText_MirrorOnly(t *testing.T) {
	st := newFakeOrderStore()
	rec := New(st, &fakeCommentStore{}, &fakeCourier{status: &courier.StatusResult{Status: "weigh-in at sorting hub"}})

	o := inTransitOrder()
	out, err := rec.ReconcileOrderStatus(context.Background(), o)
	require.NoError(t, err)
	require.False(t, out.Changed)

	require.Len(t, st.updates["ord-1"], 1)
	upd := st.updates["ord-1"][0]
	require.Nil(t, upd.Status)
	require.Equal(t, "weigh-in at sorting hub", *upd.LogisticsStatus)
	require.Equal(t, "weigh-in at sorting hub", *upd.CourierRawStatus)
	require.Equal(t, "weigh-in at sorting hub", o.LogisticsStatus)
}

// Returned-to-vendor end to end: mirror updated, status moves to the holding
// state via the RTO-always-allowed rule, rto_initiated_at stays unset, a
// timeline entry is appended.
func TestReconcileOrderStatus_ReturnedToVendor(t *testing.T) {
	st := newFakeOrderStore()
	rec := New(st, &fakeCommentStore{}, &fakeCourier{status: &courier.StatusResult{Status: "Returned to Vendor"}})

	o := inTransitOrder()
	out, err := rec.ReconcileOrderStatus(context.Background(), o)
	require.NoError(t, err)
	require.True(t, out.Changed)
	require.Equal(t, models.OrderStatusRTOVerificationPending, out.NewStatus)

	require.Len(t, st.updates["ord-1"], 1)
	upd := st.updates["ord-1"][0]
	require.Equal(t, "Returned to Vendor", *upd.LogisticsStatus)
	require.Equal(t, models.OrderStatusRTOVerificationPending, *upd.Status)
	require.Nil(t, upd.RTOInitiatedAt) // only rto_initiated sets it
	require.Nil(t, upd.RTOReason)

	require.Len(t, st.timeline, 1)
	require.Equal(t, "rto_verification_pending", st.timeline[0].Status)
	require.Contains(t, st.timeline[0].Note, "Returned to Vendor")

	require.Equal(t, models.OrderStatusRTOVerificationPending, o.Status)
}

func TestReconcileOrderStatus_RTOTimestampWriteOnce(t *testing.T) {
	fixed := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)

	// First rto_initiated mapping captures timestamp and verbatim reason.
	st := newFakeOrderStore()
	rec := New(st, &fakeCommentStore{}, &fakeCourier{status: &courier.StatusResult{Status: "Rejected by Customer"}}).
		withNow(func() time.Time { return fixed })

	o := inTransitOrder()
	out, err := rec.ReconcileOrderStatus(context.Background(), o)
	require.NoError(t, err)
	require.True(t, out.Changed)
	require.Equal(t, models.OrderStatusRTOInitiated, out.NewStatus)

	upd := st.updates["ord-1"][0]
	require.NotNil(t, upd.RTOInitiatedAt)
	require.Equal(t, fixed, *upd.RTOInitiatedAt)
	require.Equal(t, "Rejected by Customer", *upd.RTOReason)

	// A later rto_initiated mapping must not touch the fields again.
	st2 := newFakeOrderStore()
	rec2 := New(st2, &fakeCommentStore{}, &fakeCourier{status: &courier.StatusResult{Status: "RTO Initiated"}})

	earlier := fixed.Add(-24 * time.Hour)
	o2 := inTransitOrder()
	o2.Status = models.OrderStatusRTOInitiated
	o2.LogisticsStatus = "Rejected by Customer"
	o2.RTOInitiatedAt = &earlier
	o2.RTOReason = strPtr("Rejected by Customer")

	_, err = rec2.ReconcileOrderStatus(context.Background(), o2)
	require.NoError(t, err)
	upd2 := st2.updates["ord-1"][0]
	require.Nil(t, upd2.RTOInitiatedAt)
	require.Nil(t, upd2.RTOReason)
	require.Equal(t, earlier, *o2.RTOInitiatedAt)
}

func TestReconcileOrderStatus_NoRegressionFromStaleUpdate(t *testing.T) {
	st := newFakeOrderStore()
	rec := New(st, &fakeCommentStore{}, &fakeCourier{status: &courier.StatusResult{Status: "In Transit"}})

	o := inTransitOrder()
	o.Status = models.OrderStatusDelivered
	o.LogisticsStatus = "Delivered"

	out, err := rec.ReconcileOrderStatus(context.Background(), o)
	require.NoError(t, err)
	require.False(t, out.Changed)

	// Mirror still refreshed, internal status untouched.
	upd := st.updates["ord-1"][0]
	require.Nil(t, upd.Status)
	require.Equal(t, "In Transit", *upd.LogisticsStatus)
	require.Equal(t, models.OrderStatusDelivered, o.Status)
}

// Timeline writes are best-effort; their failure never fails the reconciliation.
func TestReconcileOrderStatus_TimelineFailureSwallowed(t *testing.T) {
	st := newFakeOrderStore()
	st.timelineErr = errors.New("timeline down")
	rec := New(st, &fakeCommentStore{}, &fakeCourier{status: &courier.StatusResult{Status: "Out For Delivery"}})

	out, err := rec.ReconcileOrderStatus(context.Background(), inTransitOrder())
	require.NoError(t, err)
	require.True(t, out.Changed)
}

func TestSyncOrderComments_InsertsAndClassifies(t *testing.T) {
	created := time.Date(2026, 8, 1, 10, 30, 0, 0, time.UTC)
	cs := &fakeCommentStore{}
	rec := New(newFakeOrderStore(), cs, &fakeCourier{comments: []courier.Comment{
		{ExternalID: "77", Text: "Rider assigned", Author: "Gaaubesi Staff", CreatedAt: &created},
		{ExternalID: "78", Text: "Please reattempt", Author: "Seetara"},
		{ExternalID: "79", Text: ""},
	}})

	n, err := rec.SyncOrderComments(context.Background(), inTransitOrder())
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Len(t, cs.stored, 2)

	require.Equal(t, models.SenderLogisticsProvider, cs.stored[0].Sender)
	require.Equal(t, "Gaaubesi Staff", cs.stored[0].SenderName)
	require.Equal(t, created, cs.stored[0].CreatedAt)
	require.Equal(t, "Gaaubesi", cs.stored[0].Provider)

	require.Equal(t, models.SenderERPUser, cs.stored[1].Sender)
	require.False(t, cs.stored[1].CreatedAt.IsZero()) // ingestion-time fallback
}

// Re-polling the same feed inserts nothing: dedup matches by external id or by
// exact text.
func TestSyncOrderComments_Idempotent(t *testing.T) {
	cs := &fakeCommentStore{}
	cour := &fakeCourier{comments: []courier.Comment{
		{ExternalID: "77", Text: "Rider assigned", Author: "Gaaubesi Staff"},
		{Text: "No id but same text", Author: "Gaaubesi Staff"},
	}}
	rec := New(newFakeOrderStore(), cs, cour)

	o := inTransitOrder()
	n, err := rec.SyncOrderComments(context.Background(), o)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	n, err = rec.SyncOrderComments(context.Background(), o)
	require.NoError(t, err)
	require.Equal(t, 0, n)
	require.Len(t, cs.stored, 2)
}

// One failing insert must not stop the remaining comments.
func TestSyncOrderComments_InsertFaultIsolation(t *testing.T) {
	cs := &fakeCommentStore{insertErr: errors.New("db down")}
	rec := New(newFakeOrderStore(), cs, &fakeCourier{comments: []courier.Comment{
		{ExternalID: "1", Text: "a"},
		{ExternalID: "2", Text: "b"},
	}})

	n, err := rec.SyncOrderComments(context.Background(), inTransitOrder())
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

type capturingProducer struct {
	topics []string
	values [][]byte
	err    error
}

func (p *capturingProducer) Publish(ctx context.Context, topic string, key, value []byte) error {
	if p.err != nil {
		return p.err
	}
	p.topics = append(p.topics, topic)
	p.values = append(p.values, value)
	return nil
}

func TestReconcileOrderStatus_PublishesStatusChanged(t *testing.T) {
	fp := &capturingProducer{}
	rec := New(newFakeOrderStore(), &fakeCommentStore{}, &fakeCourier{status: &courier.StatusResult{Status: "Delivered"}}).
		WithProducer(fp, "order.status.changed")

	out, err := rec.ReconcileOrderStatus(context.Background(), inTransitOrder())
	require.NoError(t, err)
	require.True(t, out.Changed)
	require.Equal(t, []string{"order.status.changed"}, fp.topics)
	require.Contains(t, string(fp.values[0]), `"new_status":"delivered"`)
	require.Contains(t, string(fp.values[0]), `"old_status":"in_transit"`)
}
