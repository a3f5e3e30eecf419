package domain

import (
	"errors"
	"time"
)

var (
	ErrNoSecrets        = errors.New("no webhook secrets configured")
	ErrNoSignature      = errors.New("missing stripe signature header")
	ErrInvalidSignature = errors.New("invalid stripe signature")
	ErrInvalidJSON      = errors.New("invalid webhook payload")
)

const (
	EventPaymentIntentSucceeded  = "payment_intent.succeeded"
	EventPaymentIntentFailed     = "payment_intent.payment_failed"
	EventCheckoutSessionComplete = "checkout.session.completed"
	EventInvoicePaid             = "invoice.paid"
	EventSubscriptionUpdated     = "customer.subscription.updated"
	EventSubscriptionDeleted     = "customer.subscription.deleted"
	EventPayoutPaid              = "payout.paid"
	EventAccountUpdated          = "account.updated"
)

// Event is a verified provider event decoded into a typed payload. Exactly
// one payload pointer is set for a handled event type; all are nil for
// unknown types, which the router acknowledges as no-ops.
type Event struct {
	ID         string
	Type       string
	Account    string // connected account the event originated from, if any
	OccurredAt time.Time

	PaymentIntent   *PaymentIntent
	CheckoutSession *CheckoutSession
	Invoice         *Invoice
	Subscription    *Subscription
	Payout          *Payout
	AccountStatus   *AccountStatus
}

type PaymentIntent struct {
	ID                   string
	Amount               int64
	Currency             string
	ApplicationFeeAmount int64
	ReceiptEmail         string
	LatestCharge         string
	OnBehalfOf           string
	Metadata             map[string]string
}

type CheckoutSession struct {
	ID           string
	Mode         string
	Subscription string
	Customer     string
	Metadata     map[string]string
}

type Invoice struct {
	ID            string
	Subscription  string
	Charge        string
	AmountPaid    int64
	Currency      string
	CustomerEmail string
	CustomerName  string
}

type Subscription struct {
	ID       string
	Status   string
	Customer string
}

type Payout struct {
	ID       string
	Amount   int64
	Currency string
}

type AccountStatus struct {
	ID               string
	ChargesEnabled   bool
	PayoutsEnabled   bool
	DetailsSubmitted bool
}
