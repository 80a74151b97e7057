package application

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voltmesh/satchel/internal/payments/domain"
)

type memActivityRepo struct {
	mu         sync.Mutex
	activities map[uuid.UUID]*domain.Activity
	failAdds   int
}

func newMemActivityRepo() *memActivityRepo {
	return &memActivityRepo{activities: make(map[uuid.UUID]*domain.Activity)}
}

func (r *memActivityRepo) Add(ctx context.Context, a *domain.Activity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAdds > 0 {
		r.failAdds--
		return errors.New("storage full")
	}
	clone := *a
	r.activities[a.ID] = &clone
	return nil
}

func (r *memActivityRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Activity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.activities[id]
	if !ok {
		return nil, nil
	}
	clone := *a
	return &clone, nil
}

func (r *memActivityRepo) FindPendingWithInvoice(ctx context.Context) ([]*domain.Activity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.Activity, 0)
	for _, a := range r.activities {
		if a.Status == domain.ActivityPending && a.Invoice != "" {
			clone := *a
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *memActivityRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ActivityStatus, detail string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.activities[id]
	if !ok {
		return domain.ErrActivityNotFound
	}
	if a.Status != domain.ActivityPending {
		return domain.ErrActivityTerminal
	}
	a.Status = status
	a.Detail = detail
	return nil
}

func (r *memActivityRepo) HasRequestID(ctx context.Context, requestID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.activities {
		if a.RequestID == requestID {
			return true, nil
		}
	}
	return false, nil
}

func (r *memActivityRepo) byRequestID(requestID string) *domain.Activity {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.activities {
		if a.RequestID == requestID {
			clone := *a
			return &clone
		}
	}
	return nil
}

type memSubscriptionRepo struct {
	mu            sync.Mutex
	subscriptions map[uuid.UUID]*domain.Subscription
}

func newMemSubscriptionRepo() *memSubscriptionRepo {
	return &memSubscriptionRepo{subscriptions: make(map[uuid.UUID]*domain.Subscription)}
}

func (r *memSubscriptionRepo) Add(ctx context.Context, s *domain.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *s
	r.subscriptions[s.ID] = &clone
	return nil
}

func (r *memSubscriptionRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subscriptions[id]
	if !ok {
		return nil, nil
	}
	clone := *s
	return &clone, nil
}

func (r *memSubscriptionRepo) UpdateLastPayment(ctx context.Context, id uuid.UUID, paidAt time.Time, next *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subscriptions[id]
	if !ok {
		return domain.ErrSubscriptionNotFound
	}
	paid := paidAt
	s.LastPaymentDate = &paid
	s.NextPaymentDate = next
	s.PaymentCount++
	return nil
}

func (r *memSubscriptionRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.SubscriptionStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subscriptions[id]
	if !ok {
		return domain.ErrSubscriptionNotFound
	}
	s.Status = status
	return nil
}

type memStatusRepo struct {
	mu      sync.Mutex
	entries []domain.PaymentStatusEntry
}

func (r *memStatusRepo) Append(ctx context.Context, entry domain.PaymentStatusEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return nil
}

func (r *memStatusRepo) ListByInvoice(ctx context.Context, invoice string) ([]domain.PaymentStatusEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.PaymentStatusEntry, 0)
	for _, e := range r.entries {
		if e.Invoice == invoice {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memStatusRepo) actions(invoice string) []domain.PaymentActionType {
	entries, _ := r.ListByInvoice(context.Background(), invoice)
	out := make([]domain.PaymentActionType, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.ActionType)
	}
	return out
}

type memLockRepo struct {
	mu   sync.Mutex
	held map[uuid.UUID]bool
}

func newMemLockRepo() *memLockRepo {
	return &memLockRepo{held: make(map[uuid.UUID]bool)}
}

func (r *memLockRepo) TryAcquire(ctx context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.held[id] {
		return false, nil
	}
	r.held[id] = true
	return true, nil
}

func (r *memLockRepo) Release(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.held, id)
	return nil
}

type memMarkerRepo struct {
	mu       sync.Mutex
	resolved map[string]bool
}

func newMemMarkerRepo() *memMarkerRepo {
	return &memMarkerRepo{resolved: make(map[string]bool)}
}

func (r *memMarkerRepo) MarkResolved(ctx context.Context, requestID string, approved bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolved[requestID] = approved
	return nil
}

func (r *memMarkerRepo) IsResolved(ctx context.Context, requestID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.resolved[requestID]
	return ok, nil
}

type fakeWallet struct {
	mu        sync.Mutex
	balance   int64
	sendErr   error
	sent      []string
	lookup    func(invoice string) (domain.InvoiceStatus, error)
	lookupErr error
	settledAt *time.Time
}

func (w *fakeWallet) GetBalance(ctx context.Context) (int64, error) {
	return w.balance, nil
}

func (w *fakeWallet) GetWalletInfo(ctx context.Context) (domain.WalletInfo, error) {
	return domain.WalletInfo{BalanceSats: w.balance}, nil
}

func (w *fakeWallet) SendPayment(ctx context.Context, invoice string, amountMsat int64) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.sendErr != nil {
		return "", w.sendErr
	}
	w.sent = append(w.sent, invoice)
	return "settlement-" + invoice, nil
}

func (w *fakeWallet) LookupInvoice(ctx context.Context, invoice string) (domain.InvoiceStatus, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.lookup != nil {
		return w.lookup(invoice)
	}
	if w.lookupErr != nil {
		return domain.InvoiceStatus{}, w.lookupErr
	}
	return domain.InvoiceStatus{SettledAt: w.settledAt}, nil
}

func (w *fakeWallet) sentInvoices() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.sent...)
}

type notifierCall struct {
	kind    string
	request string
	reason  string
	payload any
	result  domain.SettlementResult
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []notifierCall
}

func (n *fakeNotifier) Approved(ctx context.Context, req *domain.PendingRequest, payload any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, notifierCall{kind: "approved", request: req.ID, payload: payload})
	return nil
}

func (n *fakeNotifier) Declined(ctx context.Context, req *domain.PendingRequest, reason string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, notifierCall{kind: "declined", request: req.ID, reason: reason})
	return nil
}

func (n *fakeNotifier) Settled(ctx context.Context, req *domain.PendingRequest, result domain.SettlementResult) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, notifierCall{kind: "settled", request: req.ID, result: result})
	return nil
}

func (n *fakeNotifier) kinds() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.calls))
	for _, c := range n.calls {
		out = append(out, c.kind)
	}
	return out
}

func (n *fakeNotifier) last() notifierCall {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.calls) == 0 {
		return notifierCall{}
	}
	return n.calls[len(n.calls)-1]
}

type fakeRates struct {
	rate float64
	err  error
}

func (r fakeRates) ConvertAmount(ctx context.Context, amount float64, from, to string) (float64, error) {
	if r.err != nil {
		return 0, r.err
	}
	return amount * r.rate, nil
}

type fakeEcashWallet struct {
	mintURL string
	unit    string
	balance *big.Int
	balErr  error
	sendErr error
	sent    []*big.Int
}

func (w *fakeEcashWallet) MintURL() string { return w.mintURL }
func (w *fakeEcashWallet) Unit() string    { return w.unit }

func (w *fakeEcashWallet) Balance(ctx context.Context) (*big.Int, error) {
	if w.balErr != nil {
		return nil, w.balErr
	}
	return w.balance, nil
}

func (w *fakeEcashWallet) SendToken(ctx context.Context, amount *big.Int) (string, error) {
	if w.sendErr != nil {
		return "", w.sendErr
	}
	w.sent = append(w.sent, amount)
	return "token-" + amount.String(), nil
}

type fakeRegistry struct {
	wallets map[string]domain.EcashWallet
}

func (r fakeRegistry) ResolveEcash(mintURL, unit string) (domain.EcashWallet, bool) {
	w, ok := r.wallets[mintURL+"|"+unit]
	return w, ok
}

type fakeGrants struct {
	granted []domain.Permission
	err     error
}

func (g fakeGrants) Granted(ctx context.Context, clientPubKey string) ([]domain.Permission, error) {
	if g.err != nil {
		return nil, g.err
	}
	return g.granted, nil
}
