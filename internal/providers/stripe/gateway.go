package stripe

import "context"

// Transfer moves money from a connected account (or the platform when
// SourceAccount is empty) to another connected account.
type Transfer struct {
	AmountCents   int64
	Currency      string
	Destination   string
	TransferGroup string
	SourceAccount string
}

// Payout sends a connected account's balance to one of its external bank
// accounts.
type Payout struct {
	AmountCents int64
	Currency    string
	Destination string
	Method      string
	Account     string
}

type Subscription struct {
	ID          string
	CustomerID  string
	Status      string
	Currency    string
	Interval    string
	AmountCents int64
	Metadata    map[string]string
}

type Invoice struct {
	ID             string
	SubscriptionID string
	ChargeID       string
	CustomerEmail  string
	CustomerName   string
	Currency       string
	AmountPaid     int64
	ProductIDs     []string
}

type Product struct {
	ID       string
	Metadata map[string]string
}

// Gateway is the outbound payment-provider surface used by the event
// processor. All calls are blocking; the processor awaits each before
// proceeding except where it explicitly parallelizes.
type Gateway interface {
	CreateTransfer(ctx context.Context, transfer Transfer) error
	CreatePayout(ctx context.Context, payout Payout) error
	GetSubscription(ctx context.Context, id string) (*Subscription, error)
	SearchInvoicesByPaymentIntent(ctx context.Context, paymentIntentID string) ([]Invoice, error)
	GetProduct(ctx context.Context, id string) (*Product, error)
}
