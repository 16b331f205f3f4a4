package billing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/t2tlabs/t2t-backend/internal/models"
	"github.com/t2tlabs/t2t-backend/internal/storage"
	"go.uber.org/zap"
)

type recordingCRM struct {
	tags []string
	err  error
}

func (c *recordingCRM) CreateContact(ctx context.Context, name, email, phone string) (string, error) {
	return "contact-1", c.err
}

func (c *recordingCRM) TagContact(ctx context.Context, contactRef, tag string) error {
	c.tags = append(c.tags, tag)
	return c.err
}

func newTestReconciler(t *testing.T) (*Reconciler, *storage.MemoryStorage, *recordingCRM, *models.Account) {
	t.Helper()
	store := storage.NewMemoryStorage()
	account := &models.Account{
		Email:        "coach@example.com",
		Name:         "Test Coach",
		CRMContactID: "contact-1",
	}
	require.NoError(t, store.CreateAccount(context.Background(), account))
	crmClient := &recordingCRM{}
	return NewReconciler(store, crmClient, zap.NewNop()), store, crmClient, account
}

func tierOf(t *testing.T, store *storage.MemoryStorage, accountID string) models.Tier {
	t.Helper()
	tier, err := store.GetTier(context.Background(), accountID)
	require.NoError(t, err)
	return tier
}

func TestCheckoutCompletedGrantsBasic(t *testing.T) {
	r, store, crmClient, account := newTestReconciler(t)

	err := r.Apply(context.Background(), &Event{
		Kind:         EventCheckoutCompleted,
		AccountRef:   account.ID,
		CustomerID:   "cus_1",
		PurchaseKind: PurchaseOneTime,
	})
	require.NoError(t, err)
	require.Equal(t, models.TierBasic, tierOf(t, store, account.ID))
	require.Equal(t, []string{"t2t-basic"}, crmClient.tags)

	linked, err := store.GetAccountByCustomerID(context.Background(), "cus_1")
	require.NoError(t, err)
	require.Equal(t, account.ID, linked.ID)
}

func TestCheckoutCompletedResolvesByEmail(t *testing.T) {
	r, store, _, account := newTestReconciler(t)

	err := r.Apply(context.Background(), &Event{
		Kind:         EventCheckoutCompleted,
		AccountRef:   "coach@example.com",
		CustomerID:   "cus_1",
		PurchaseKind: PurchaseRecurring,
	})
	require.NoError(t, err)
	require.Equal(t, models.TierSubscription, tierOf(t, store, account.ID))
}

func TestRecurringCheckoutIsIdempotent(t *testing.T) {
	r, store, _, account := newTestReconciler(t)

	evt := &Event{
		Kind:         EventCheckoutCompleted,
		AccountRef:   account.ID,
		CustomerID:   "cus_1",
		PurchaseKind: PurchaseRecurring,
	}
	require.NoError(t, r.Apply(context.Background(), evt))
	require.NoError(t, r.Apply(context.Background(), evt))
	require.Equal(t, models.TierSubscription, tierOf(t, store, account.ID))
}

func TestReplayedOneTimeNeverDemotesSubscription(t *testing.T) {
	r, store, _, account := newTestReconciler(t)

	require.NoError(t, r.Apply(context.Background(), &Event{
		Kind:         EventCheckoutCompleted,
		AccountRef:   account.ID,
		CustomerID:   "cus_1",
		PurchaseKind: PurchaseRecurring,
	}))
	require.NoError(t, r.Apply(context.Background(), &Event{
		Kind:         EventCheckoutCompleted,
		AccountRef:   account.ID,
		CustomerID:   "cus_1",
		PurchaseKind: PurchaseOneTime,
	}))
	require.Equal(t, models.TierSubscription, tierOf(t, store, account.ID))
}

func TestBasicUpgradesToSubscription(t *testing.T) {
	r, store, _, account := newTestReconciler(t)

	require.NoError(t, r.Apply(context.Background(), &Event{
		Kind:         EventCheckoutCompleted,
		AccountRef:   account.ID,
		CustomerID:   "cus_1",
		PurchaseKind: PurchaseOneTime,
	}))
	require.NoError(t, r.Apply(context.Background(), &Event{
		Kind:         EventCheckoutCompleted,
		AccountRef:   account.ID,
		CustomerID:   "cus_1",
		PurchaseKind: PurchaseRecurring,
	}))
	require.Equal(t, models.TierSubscription, tierOf(t, store, account.ID))
}

func TestUnresolvableAccountIsAcknowledged(t *testing.T) {
	r, _, crmClient, _ := newTestReconciler(t)

	err := r.Apply(context.Background(), &Event{
		Kind:         EventCheckoutCompleted,
		AccountRef:   "nobody@example.com",
		CustomerID:   "cus_9",
		PurchaseKind: PurchaseOneTime,
	})
	require.NoError(t, err)
	require.Empty(t, crmClient.tags)
}

func TestSubscriptionEndedClearsTier(t *testing.T) {
	r, store, crmClient, account := newTestReconciler(t)

	require.NoError(t, r.Apply(context.Background(), &Event{
		Kind:         EventCheckoutCompleted,
		AccountRef:   account.ID,
		CustomerID:   "cus_1",
		PurchaseKind: PurchaseRecurring,
	}))
	require.NoError(t, r.Apply(context.Background(), &Event{
		Kind:       EventSubscriptionEnded,
		CustomerID: "cus_1",
	}))
	require.Equal(t, models.TierNone, tierOf(t, store, account.ID))
	require.Equal(t, []string{"t2t-subscription", "t2t-cancelled"}, crmClient.tags)
}

func TestSubscriptionEndedIsNoOpWhenNotSubscribed(t *testing.T) {
	r, store, _, account := newTestReconciler(t)

	// Unknown customer: nothing linked yet.
	require.NoError(t, r.Apply(context.Background(), &Event{
		Kind:       EventSubscriptionEnded,
		CustomerID: "cus_unknown",
	}))
	require.Equal(t, models.TierNone, tierOf(t, store, account.ID))

	// Linked customer on a basic account: still a no-op.
	require.NoError(t, r.Apply(context.Background(), &Event{
		Kind:         EventCheckoutCompleted,
		AccountRef:   account.ID,
		CustomerID:   "cus_1",
		PurchaseKind: PurchaseOneTime,
	}))
	require.NoError(t, r.Apply(context.Background(), &Event{
		Kind:       EventSubscriptionEnded,
		CustomerID: "cus_1",
	}))
	require.Equal(t, models.TierBasic, tierOf(t, store, account.ID))
}

func TestCRMFailureDoesNotFailReconciliation(t *testing.T) {
	r, store, crmClient, account := newTestReconciler(t)
	crmClient.err = errors.New("crm is down")

	err := r.Apply(context.Background(), &Event{
		Kind:         EventCheckoutCompleted,
		AccountRef:   account.ID,
		CustomerID:   "cus_1",
		PurchaseKind: PurchaseRecurring,
	})
	require.NoError(t, err)
	require.Equal(t, models.TierSubscription, tierOf(t, store, account.ID))
}

func TestParseEventRejectsUnknownKinds(t *testing.T) {
	_, err := ParseEvent([]byte(`{"kind":"invoice.paid"}`))
	require.Error(t, err)

	_, err = ParseEvent([]byte(`{"kind":"checkout.completed","purchase_kind":"lifetime"}`))
	require.Error(t, err)

	evt, err := ParseEvent([]byte(`{"kind":"checkout.completed","account_ref":"a","customer_id":"c","purchase_kind":"recurring"}`))
	require.NoError(t, err)
	require.Equal(t, EventCheckoutCompleted, evt.Kind)
	require.Equal(t, PurchaseRecurring, evt.PurchaseKind)
}

func TestVerifySignature(t *testing.T) {
	payload := []byte(`{"kind":"subscription.ended","customer_id":"cus_1"}`)
	sig := Sign(payload, "whsec_test")

	require.True(t, VerifySignature(payload, sig, "whsec_test"))
	require.False(t, VerifySignature(payload, sig, "whsec_other"))
	require.False(t, VerifySignature([]byte(`tampered`), sig, "whsec_test"))
	require.False(t, VerifySignature(payload, "", "whsec_test"))
}
