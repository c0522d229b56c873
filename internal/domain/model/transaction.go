package model

import (
	"strings"
	"time"
)

type TransactionStatus string

const (
	TransactionStatusPending TransactionStatus = "pending" // created at the gateway; awaiting payment
	TransactionStatusPaid    TransactionStatus = "paid"    // confirmed; terminal
	TransactionStatusExpired TransactionStatus = "expired" // TTL elapsed or gateway cancelled; terminal
	TransactionStatusFailed  TransactionStatus = "failed"  // gateway reported a definitive failure; terminal
)

// Terminal reports whether no further transition is allowed out of s.
func (s TransactionStatus) Terminal() bool {
	return s == TransactionStatusPaid || s == TransactionStatusExpired || s == TransactionStatusFailed
}

// ReportedStatus is a gateway status after normalization. It is what a trigger observed,
// not what we have stored.
type ReportedStatus string

const (
	ReportedPending  ReportedStatus = "pending"
	ReportedPaid     ReportedStatus = "paid"
	ReportedExpired  ReportedStatus = "expired"
	ReportedFailed   ReportedStatus = "failed"
	ReportedRefunded ReportedStatus = "refunded"
)

// NormalizeReportedStatus maps the free-form status strings gateways send to a ReportedStatus.
// Anything unrecognized is treated as still pending.
func NormalizeReportedStatus(raw string) ReportedStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "paid", "approved", "completed", "concluida", "confirmed", "settled":
		return ReportedPaid
	case "expired", "canceled", "cancelled":
		return ReportedExpired
	case "failed", "error", "refused", "rejected":
		return ReportedFailed
	case "refunded", "chargeback", "returned":
		return ReportedRefunded
	default:
		return ReportedPending
	}
}

// Settlement holds the gateway correlation fields known once a payment settles.
type Settlement struct {
	EndToEndID string
	PayerName  string
	PayerTaxID string
}

// Attribution is opaque analytics metadata captured at checkout.
type Attribution struct {
	Source   string `json:"source,omitempty"`
	Campaign string `json:"campaign,omitempty"`
	URL      string `json:"url,omitempty"`
}

// Transaction is one instant-payment attempt. ID is assigned by the gateway and is the
// idempotency key for reconciliation.
type Transaction struct {
	ID          string
	UserID      *string // nil when created before the user existed
	PayerEmail  string
	PlanID      string
	GrossAmount int64 // minor units (cents), immutable
	Status      TransactionStatus
	Settlement  Settlement // populated only on transition to paid
	Code        string     // renderable copy-and-paste code returned by the gateway
	CreatedAt   time.Time
	ExpiresAt   time.Time
	PaidAt      *time.Time
	UpdatedAt   time.Time
	Attribution Attribution
}

func (t *Transaction) IsZero() bool { return t == nil || t.ID == "" }

// Expired reports whether the TTL has elapsed for a transaction that is still pending.
func (t *Transaction) Expired(now time.Time) bool {
	return t.Status == TransactionStatusPending && !t.ExpiresAt.IsZero() && now.After(t.ExpiresAt)
}
