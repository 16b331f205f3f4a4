// Package billing converges stored entitlement state with payment-processor
// events. Events are applied idempotently by construction: replaying any
// event, in any order, cannot demote a subscribed account or error on an
// already-consistent state.
package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/t2tlabs/t2t-backend/internal/crm"
	"github.com/t2tlabs/t2t-backend/internal/models"
	"github.com/t2tlabs/t2t-backend/internal/storage"
	"go.uber.org/zap"
)

// crmTimeout bounds the advisory CRM notification so a slow CRM cannot hold
// up the webhook response.
const crmTimeout = 10 * time.Second

type Reconciler struct {
	store  storage.Storage
	crm    crm.Client
	logger *zap.Logger
}

func NewReconciler(store storage.Storage, crmClient crm.Client, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		store:  store,
		crm:    crmClient,
		logger: logger,
	}
}

// Apply processes one verified payment event. A nil return acknowledges the
// event to the processor; an error asks the transport to signal a retryable
// failure. Unresolvable account references are acknowledged and logged so a
// stuck event cannot block the processor's retry queue.
func (r *Reconciler) Apply(ctx context.Context, evt *Event) error {
	switch evt.Kind {
	case EventCheckoutCompleted:
		return r.applyCheckoutCompleted(ctx, evt)
	case EventSubscriptionEnded:
		return r.applySubscriptionEnded(ctx, evt)
	default:
		return fmt.Errorf("unknown event kind %q", evt.Kind)
	}
}

func (r *Reconciler) applyCheckoutCompleted(ctx context.Context, evt *Event) error {
	account, err := r.resolveAccount(ctx, evt.AccountRef)
	if errors.Is(err, storage.ErrNotFound) {
		r.logger.Warn("Acknowledging payment event for unresolvable account",
			zap.String("account_ref", evt.AccountRef),
			zap.String("customer_id", evt.CustomerID))
		return nil
	}
	if err != nil {
		return err
	}

	if account.PaymentCustomerID == "" && evt.CustomerID != "" {
		if err := r.store.LinkPaymentCustomer(ctx, account.ID, evt.CustomerID); err != nil {
			return fmt.Errorf("error linking payment customer: %w", err)
		}
	}

	target := models.TierBasic
	if evt.PurchaseKind == PurchaseRecurring {
		target = models.TierSubscription
	}

	// Upgrade only: a replayed one-time purchase must not demote an
	// account that has since subscribed.
	if account.Tier == models.TierSubscription && target == models.TierBasic {
		r.logger.Info("Skipping tier downgrade on replayed checkout event",
			zap.String("account_id", account.ID))
		return nil
	}
	if account.Tier != target {
		if err := r.store.SetTier(ctx, account.ID, target); err != nil {
			return fmt.Errorf("error setting tier: %w", err)
		}
	}

	r.notifyCRM(account, "t2t-"+string(target))
	return nil
}

func (r *Reconciler) applySubscriptionEnded(ctx context.Context, evt *Event) error {
	account, err := r.store.GetAccountByCustomerID(ctx, evt.CustomerID)
	if errors.Is(err, storage.ErrNotFound) {
		// Unlinked customer: already consistent, nothing to do.
		return nil
	}
	if err != nil {
		return err
	}

	if account.Tier != models.TierSubscription {
		return nil
	}
	if err := r.store.SetTier(ctx, account.ID, models.TierNone); err != nil {
		return fmt.Errorf("error clearing tier: %w", err)
	}

	r.notifyCRM(account, "t2t-cancelled")
	return nil
}

// resolveAccount accepts either an account id or an email as the processor's
// account reference.
func (r *Reconciler) resolveAccount(ctx context.Context, ref string) (*models.Account, error) {
	if ref == "" {
		return nil, storage.ErrNotFound
	}
	account, err := r.store.GetAccount(ctx, ref)
	if errors.Is(err, storage.ErrNotFound) {
		return r.store.GetAccountByEmail(ctx, ref)
	}
	return account, err
}

// notifyCRM tags the account's CRM contact with the new entitlement state.
// Advisory only: failures are logged and swallowed, and the call carries its
// own deadline independent of the webhook request.
func (r *Reconciler) notifyCRM(account *models.Account, tag string) {
	if account.CRMContactID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), crmTimeout)
	defer cancel()
	if err := r.crm.TagContact(ctx, account.CRMContactID, tag); err != nil {
		r.logger.Warn("CRM tag failed",
			zap.Error(err),
			zap.String("account_id", account.ID),
			zap.String("tag", tag))
	}
}
