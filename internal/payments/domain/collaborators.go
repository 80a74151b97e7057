package domain

import (
	"context"
	"math/big"
	"time"
)

// Wallet is the capability used to execute Lightning payments.
// Implementations are external to this core.
type Wallet interface {
	// GetBalance returns the spendable balance in satoshis.
	GetBalance(ctx context.Context) (int64, error)
	GetWalletInfo(ctx context.Context) (WalletInfo, error)
	// SendPayment pays the invoice and returns a settlement id.
	SendPayment(ctx context.Context, invoice string, amountMsat int64) (string, error)
	LookupInvoice(ctx context.Context, invoice string) (InvoiceStatus, error)
}

// WalletInfo describes a wallet's current state.
type WalletInfo struct {
	BalanceSats int64
	Alias       string
}

// InvoiceStatus is the result of an invoice lookup.
type InvoiceStatus struct {
	SettledAt *time.Time
}

// Settled reports whether the invoice has been paid.
func (s InvoiceStatus) Settled() bool {
	return s.SettledAt != nil
}

// EcashWallet is the capability used to send ecash tokens against a mint.
type EcashWallet interface {
	MintURL() string
	Unit() string
	Balance(ctx context.Context) (*big.Int, error)
	SendToken(ctx context.Context, amount *big.Int) (string, error)
}

// WalletRegistry resolves ecash wallets by mint URL and unit.
type WalletRegistry interface {
	ResolveEcash(mintURL, unit string) (EcashWallet, bool)
}

// RateService converts amounts between currencies. It may fail on network
// errors or unsupported pairs; callers must never approve on uncertain data.
type RateService interface {
	ConvertAmount(ctx context.Context, amount float64, from, to string) (float64, error)
}

// Notifier delivers typed responses back to the original requester through
// the transport layer. The approval response unblocks the protocol
// round-trip; the settlement result follows asynchronously once known.
type Notifier interface {
	Approved(ctx context.Context, req *PendingRequest, payload any) error
	Declined(ctx context.Context, req *PendingRequest, reason string) error
	Settled(ctx context.Context, req *PendingRequest, result SettlementResult) error
}

// PermissionGrants is the local allow-list of capabilities granted to
// external signer clients, keyed by client public key.
type PermissionGrants interface {
	Granted(ctx context.Context, clientPubKey string) ([]Permission, error)
}
