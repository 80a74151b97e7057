package domain

import (
	"math/big"
	"time"

	"github.com/google/uuid"
)

// RequestType classifies an inbound request from the transport layer.
type RequestType string

const (
	RequestLogin         RequestType = "login"
	RequestPayment       RequestType = "payment"
	RequestSubscription  RequestType = "subscription"
	RequestTicket        RequestType = "ticket"
	RequestSignerConnect RequestType = "external_signer_connect"
)

// PendingRequest is a transient request awaiting approval or denial. It is
// held in process memory only and removed from the pending set the instant
// it is resolved, regardless of how long settlement takes afterward.
type PendingRequest struct {
	ID          string
	Type        RequestType
	ReceivedAt  time.Time
	Login       *LoginMeta
	Payment     *PaymentMeta
	Recurring   *RecurringPaymentMeta
	Subscribe   *SubscribeMeta
	Ticket      *TicketMeta
	Signer      *SignerConnectMeta
	ServiceKey  string
	ServiceName string
}

// LoginMeta carries a login challenge.
type LoginMeta struct {
	Domain string
}

// PaymentMeta carries a one-off payment request.
type PaymentMeta struct {
	Invoice     string
	AmountMsat  int64
	Description string
}

// RecurringPaymentMeta carries a payment request tied to an existing
// subscription. Amount and Currency are the declared terms; the invoice
// amount is checked against them within tolerance.
type RecurringPaymentMeta struct {
	SubscriptionID uuid.UUID
	Invoice        string
	AmountMsat     int64
	Amount         float64
	Currency       string
}

// SubscribeMeta carries a request to establish a new subscription.
type SubscribeMeta struct {
	Amount          float64
	Currency        string
	Recurrence      string
	FirstPaymentDue time.Time
	MaxPayments     *int
	Until           *time.Time
}

// TicketMeta carries an ecash send request against a mint.
type TicketMeta struct {
	MintURL     string
	Unit        string
	Amount      *big.Int
	TicketTitle string
}

// SignerConnectMeta carries an external-signer connect request.
type SignerConnectMeta struct {
	ClientPubKey string
	Requested    Permission
}

// Permission names a capability an external signer client may be granted.
// EventKind narrows event-signing permissions to a single kind.
type Permission struct {
	Capability string
	EventKind  *int
}

// Matches reports whether the granted permission covers the requested one.
func (p Permission) Matches(requested Permission) bool {
	if p.Capability != requested.Capability {
		return false
	}
	if requested.EventKind == nil {
		return p.EventKind == nil
	}
	return p.EventKind != nil && *p.EventKind == *requested.EventKind
}

// SubscriptionConfirmation is the structured payload returned to the
// counterparty when a subscription request is approved. It carries the new
// subscription id plus the originally authorized terms, so the counterparty
// learns the id synchronously, decoupled from any future payment execution.
type SubscriptionConfirmation struct {
	SubscriptionID  uuid.UUID  `json:"subscription_id"`
	Amount          float64    `json:"amount"`
	Currency        string     `json:"currency"`
	Recurrence      string     `json:"recurrence"`
	FirstPaymentDue time.Time  `json:"first_payment_due"`
	MaxPayments     *int       `json:"max_payments,omitempty"`
	Until           *time.Time `json:"until,omitempty"`
}

// SettlementResult is the asynchronous final outcome of a payment,
// delivered after the approval response.
type SettlementResult struct {
	Settled      bool
	SettlementID string
	Detail       string
}
