package application

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voltmesh/satchel/internal/payments/domain"
	"github.com/voltmesh/satchel/pkg/observability"
)

// Dispatcher is the approve/deny entry point. It keeps an explicit
// registry of pending requests and routes resolutions to the per-type
// handlers. A request resolves exactly once; resolving removes it from the
// registry immediately, regardless of how long settlement takes afterward.
type Dispatcher struct {
	mu      sync.Mutex
	pending map[string]*domain.PendingRequest

	markers       domain.RequestMarkerRepository
	activities    domain.ActivityRepository
	subscriptions domain.SubscriptionRepository
	writer        *ActivityWriter
	executor      *Executor
	normalizer    *Normalizer
	wallet        domain.Wallet
	wallets       domain.WalletRegistry
	grants        domain.PermissionGrants
	notifier      domain.Notifier
	events        Notifications
	logger        *slog.Logger
	now           func() time.Time
}

// DispatcherDeps bundles the dispatcher's collaborators.
type DispatcherDeps struct {
	Markers       domain.RequestMarkerRepository
	Activities    domain.ActivityRepository
	Subscriptions domain.SubscriptionRepository
	Writer        *ActivityWriter
	Executor      *Executor
	Normalizer    *Normalizer
	Wallet        domain.Wallet
	Wallets       domain.WalletRegistry
	Grants        domain.PermissionGrants
	Notifier      domain.Notifier
	Events        Notifications
	Logger        *slog.Logger
	Now           func() time.Time
}

// NewDispatcher creates a request dispatcher.
func NewDispatcher(deps DispatcherDeps) *Dispatcher {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Dispatcher{
		pending:       make(map[string]*domain.PendingRequest),
		markers:       deps.Markers,
		activities:    deps.Activities,
		subscriptions: deps.Subscriptions,
		writer:        deps.Writer,
		executor:      deps.Executor,
		normalizer:    deps.Normalizer,
		wallet:        deps.Wallet,
		wallets:       deps.Wallets,
		grants:        deps.Grants,
		notifier:      deps.Notifier,
		events:        deps.Events,
		logger:        deps.Logger,
		now:           deps.Now,
	}
}

// Register admits an inbound request into the pending set. Re-deliveries
// of an already-resolved protocol event are dropped.
func (d *Dispatcher) Register(ctx context.Context, req *domain.PendingRequest) error {
	resolved, err := d.markers.IsResolved(ctx, req.ID)
	if err != nil {
		return fmt.Errorf("check resolution marker: %w", err)
	}
	if resolved {
		d.logger.Info("dropping re-delivered request", "request_id", req.ID)
		return nil
	}

	duplicate, err := d.activities.HasRequestID(ctx, req.ID)
	if err != nil {
		return fmt.Errorf("check request dedup: %w", err)
	}
	if duplicate {
		d.logger.Info("dropping request with existing activity", "request_id", req.ID)
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.pending[req.ID]; exists {
		return nil
	}
	if req.ReceivedAt.IsZero() {
		req.ReceivedAt = d.now()
	}
	d.pending[req.ID] = req
	return nil
}

// Pending returns the number of unresolved requests.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Approve resolves a pending request affirmatively and routes it to the
// matching handler.
func (d *Dispatcher) Approve(ctx context.Context, requestID string) error {
	req, err := d.resolve(ctx, requestID, true)
	if err != nil {
		return err
	}
	ctx = observability.WithRequestID(ctx, req.ID)

	switch req.Type {
	case domain.RequestLogin:
		return d.approveLogin(ctx, req)
	case domain.RequestPayment:
		return d.approvePayment(ctx, req)
	case domain.RequestSubscription:
		return d.approveSubscription(ctx, req)
	case domain.RequestTicket:
		return d.approveTicket(ctx, req)
	case domain.RequestSignerConnect:
		return d.approveSignerConnect(ctx, req)
	default:
		return fmt.Errorf("unknown request type %q", req.Type)
	}
}

// Deny resolves a pending request negatively. Every denial still yields a
// terminal activity so the ledger records the outcome.
func (d *Dispatcher) Deny(ctx context.Context, requestID string) error {
	req, err := d.resolve(ctx, requestID, false)
	if err != nil {
		return err
	}
	ctx = observability.WithRequestID(ctx, req.ID)

	reason := "denied by user"
	typ := activityTypeForDenial(req.Type)
	d.writeOutcome(ctx, req, typ, domain.ActivityNegative, reason)

	if err := d.notifier.Declined(ctx, req, reason); err != nil {
		d.logger.Warn("decline notification failed", "request_id", req.ID, "error", err)
	}
	return nil
}

// resolve removes the request from the pending set and persists the
// resolution marker. The removal happens before any handler runs, so a
// second resolution of the same id always fails fast.
func (d *Dispatcher) resolve(ctx context.Context, requestID string, approved bool) (*domain.PendingRequest, error) {
	d.mu.Lock()
	req, exists := d.pending[requestID]
	if exists {
		delete(d.pending, requestID)
	}
	d.mu.Unlock()

	if !exists {
		resolved, err := d.markers.IsResolved(ctx, requestID)
		if err == nil && resolved {
			return nil, domain.ErrRequestResolved
		}
		return nil, domain.ErrRequestNotFound
	}

	if err := d.markers.MarkResolved(ctx, requestID, approved); err != nil {
		d.logger.Error("failed to persist resolution marker",
			"request_id", requestID,
			"error", err,
		)
	}
	return req, nil
}

func (d *Dispatcher) approveLogin(ctx context.Context, req *domain.PendingRequest) error {
	d.writeOutcome(ctx, req, domain.ActivityTypeAuth, domain.ActivityPositive, "login approved")
	if err := d.notifier.Approved(ctx, req, nil); err != nil {
		d.logger.Warn("approval notification failed", "request_id", req.ID, "error", err)
	}
	return nil
}

func (d *Dispatcher) approvePayment(ctx context.Context, req *domain.PendingRequest) error {
	var outcome SettlementOutcome
	var err error
	if req.Recurring != nil {
		outcome, err = d.executor.ExecuteSubscriptionPayment(ctx, req, d.wallet)
	} else {
		outcome, err = d.executor.ExecutePayment(ctx, req, d.wallet)
	}
	if err != nil {
		return err
	}
	d.logger.Info("payment resolved", "request_id", req.ID, "outcome", outcome)
	return nil
}

func (d *Dispatcher) approveSubscription(ctx context.Context, req *domain.PendingRequest) error {
	meta := req.Subscribe

	sub := &domain.Subscription{
		ID:              uuid.New(),
		ServiceKey:      req.ServiceKey,
		ServiceName:     req.ServiceName,
		Amount:          meta.Amount,
		Currency:        meta.Currency,
		Recurrence:      meta.Recurrence,
		MaxPayments:     meta.MaxPayments,
		Until:           meta.Until,
		FirstPaymentDue: meta.FirstPaymentDue,
		Status:          domain.SubscriptionActive,
		CreatedAt:       d.now(),
		UpdatedAt:       d.now(),
	}
	if _, err := sub.Calendar(); err != nil {
		reason := "invalid recurrence rule"
		d.writeOutcome(ctx, req, domain.ActivityTypeSubscriptionCreated, domain.ActivityNegative, reason)
		if nerr := d.notifier.Declined(ctx, req, reason); nerr != nil {
			d.logger.Warn("decline notification failed", "request_id", req.ID, "error", nerr)
		}
		return err
	}

	if err := d.subscriptions.Add(ctx, sub); err != nil {
		return fmt.Errorf("persist subscription: %w", err)
	}

	detail := fmt.Sprintf("subscribed to %s for %g %s", req.ServiceName, meta.Amount, meta.Currency)
	d.writeOutcome(ctx, req, domain.ActivityTypeSubscriptionCreated, domain.ActivityPositive, detail)

	confirmation := domain.SubscriptionConfirmation{
		SubscriptionID:  sub.ID,
		Amount:          meta.Amount,
		Currency:        meta.Currency,
		Recurrence:      meta.Recurrence,
		FirstPaymentDue: meta.FirstPaymentDue,
		MaxPayments:     meta.MaxPayments,
		Until:           meta.Until,
	}
	if err := d.notifier.Approved(ctx, req, confirmation); err != nil {
		d.logger.Warn("approval notification failed", "request_id", req.ID, "error", err)
	}
	return nil
}

func (d *Dispatcher) approveTicket(ctx context.Context, req *domain.PendingRequest) error {
	meta := req.Ticket

	if d.wallets == nil {
		return d.declineTicket(ctx, req, "no wallet available", domain.ErrNoWalletAvailable)
	}
	wallet, found := d.wallets.ResolveEcash(meta.MintURL, meta.Unit)
	if !found {
		return d.declineTicket(ctx, req,
			fmt.Sprintf("no %s wallet for mint %s", meta.Unit, meta.MintURL),
			domain.ErrNoWalletAvailable,
		)
	}

	balance, err := wallet.Balance(ctx)
	if err != nil {
		return d.declineTicket(ctx, req, "could not determine wallet balance", err)
	}
	// Equality succeeds: the wallet may be drained to exactly zero.
	if balance.Cmp(meta.Amount) < 0 {
		return d.declineTicket(ctx, req,
			fmt.Sprintf("insufficient funds: have %s, need %s %s", balance, meta.Amount, meta.Unit),
			domain.ErrInsufficientFunds,
		)
	}

	token, err := wallet.SendToken(ctx, meta.Amount)
	if err != nil {
		return d.declineTicket(ctx, req, "token send failed", err)
	}

	amount, _ := new(big.Float).SetInt(meta.Amount).Float64()
	full := func() *domain.Activity {
		return &domain.Activity{
			ID:          uuid.New(),
			Type:        domain.ActivityTypeTicketApproved,
			ServiceKey:  req.ServiceKey,
			ServiceName: req.ServiceName,
			Detail:      fmt.Sprintf("ticket %q paid with %s %s", meta.TicketTitle, meta.Amount, meta.Unit),
			Date:        d.now(),
			Amount:      amount,
			Currency:    meta.Unit,
			RequestID:   req.ID,
			Status:      domain.ActivityPositive,
		}
	}
	minimal := func() *domain.Activity {
		return &domain.Activity{
			ID:         uuid.New(),
			Type:       domain.ActivityTypeTicketApproved,
			ServiceKey: req.ServiceKey,
			Detail:     "ticket approved",
			Date:       d.now(),
			Amount:     amount,
			Currency:   meta.Unit,
			RequestID:  req.ID,
			Status:     domain.ActivityPositive,
		}
	}
	bare := func() *domain.Activity {
		return &domain.Activity{
			ID:        uuid.New(),
			Type:      domain.ActivityTypeTicketApproved,
			Date:      d.now(),
			RequestID: req.ID,
			Status:    domain.ActivityPositive,
		}
	}
	if _, err := d.writer.Write(ctx, full, minimal, bare); err != nil {
		d.logger.Error("failed to record ticket activity", "request_id", req.ID, "error", err)
	}

	if err := d.notifier.Approved(ctx, req, token); err != nil {
		d.logger.Warn("approval notification failed", "request_id", req.ID, "error", err)
	}
	return nil
}

func (d *Dispatcher) declineTicket(ctx context.Context, req *domain.PendingRequest, reason string, cause error) error {
	d.writeOutcome(ctx, req, domain.ActivityTypeTicketDenied, domain.ActivityNegative, reason)
	if err := d.notifier.Declined(ctx, req, reason); err != nil {
		d.logger.Warn("decline notification failed", "request_id", req.ID, "error", err)
	}
	d.logger.Info("ticket declined", "request_id", req.ID, "reason", reason, "cause", cause)
	return nil
}

func (d *Dispatcher) approveSignerConnect(ctx context.Context, req *domain.PendingRequest) error {
	meta := req.Signer

	granted, err := d.grants.Granted(ctx, meta.ClientPubKey)
	if err != nil {
		return fmt.Errorf("load granted permissions: %w", err)
	}

	allowed := false
	for _, p := range granted {
		if p.Matches(meta.Requested) {
			allowed = true
			break
		}
	}
	if !allowed {
		reason := fmt.Sprintf("capability %q not granted", meta.Requested.Capability)
		if meta.Requested.EventKind != nil {
			reason = fmt.Sprintf("capability %q for event kind %d not granted",
				meta.Requested.Capability, *meta.Requested.EventKind)
		}
		d.writeOutcome(ctx, req, domain.ActivityTypeAuth, domain.ActivityNegative, reason)
		if err := d.notifier.Declined(ctx, req, reason); err != nil {
			d.logger.Warn("decline notification failed", "request_id", req.ID, "error", err)
		}
		return nil
	}

	d.writeOutcome(ctx, req, domain.ActivityTypeAuth, domain.ActivityPositive, "signer connection approved")
	if err := d.notifier.Approved(ctx, req, nil); err != nil {
		d.logger.Warn("approval notification failed", "request_id", req.ID, "error", err)
	}
	return nil
}

// CancelSubscription handles an external close-subscription event.
func (d *Dispatcher) CancelSubscription(ctx context.Context, subscriptionID uuid.UUID) error {
	sub, err := d.subscriptions.FindByID(ctx, subscriptionID)
	if err != nil {
		return fmt.Errorf("load subscription %s: %w", subscriptionID, err)
	}
	if sub == nil {
		return domain.ErrSubscriptionNotFound
	}
	if sub.Status != domain.SubscriptionActive {
		return nil
	}

	if err := d.subscriptions.UpdateStatus(ctx, subscriptionID, domain.SubscriptionCancelled); err != nil {
		return fmt.Errorf("cancel subscription %s: %w", subscriptionID, err)
	}
	d.events.subscriptionStatusChanged(ctx, subscriptionID, domain.SubscriptionCancelled)
	return nil
}

// writeOutcome persists a directly-terminal activity with a tiered
// fallback.
func (d *Dispatcher) writeOutcome(ctx context.Context, req *domain.PendingRequest, typ domain.ActivityType, status domain.ActivityStatus, detail string) {
	full := func() *domain.Activity {
		return &domain.Activity{
			ID:          uuid.New(),
			Type:        typ,
			ServiceKey:  req.ServiceKey,
			ServiceName: req.ServiceName,
			Detail:      detail,
			Date:        d.now(),
			RequestID:   req.ID,
			Status:      status,
		}
	}
	bare := func() *domain.Activity {
		return &domain.Activity{
			ID:        uuid.New(),
			Type:      typ,
			Detail:    detail,
			Date:      d.now(),
			RequestID: req.ID,
			Status:    status,
		}
	}
	if _, err := d.writer.Write(ctx, full, bare); err != nil {
		d.logger.Error("failed to record outcome activity", "request_id", req.ID, "error", err)
	}
}

func activityTypeForDenial(typ domain.RequestType) domain.ActivityType {
	switch typ {
	case domain.RequestLogin, domain.RequestSignerConnect:
		return domain.ActivityTypeAuth
	case domain.RequestSubscription:
		return domain.ActivityTypeSubscriptionCreated
	case domain.RequestTicket:
		return domain.ActivityTypeTicketDenied
	default:
		return domain.ActivityTypePayment
	}
}
