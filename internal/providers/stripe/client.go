package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/givebridge/givebridge/internal/config"
	stripego "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/client"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrMissingSecretKey = errors.New("stripe secret key not configured")

// apiGateway implements Gateway on the Stripe REST API. The underlying
// client is created lazily and lives for the process lifetime; connected
// accounts are scoped per request via the Stripe-Account header, so a single
// client serves all accounts.
type apiGateway struct {
	log       *zap.Logger
	secretKey string

	mu  sync.Mutex
	api *client.API
}

func NewGateway(cfg config.Config, log *zap.Logger) Gateway {
	return &apiGateway{
		log:       log.Named("stripe.gateway"),
		secretKey: cfg.StripeSecretKey,
	}
}

func (g *apiGateway) clientAPI() (*client.API, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.api != nil {
		return g.api, nil
	}
	if strings.TrimSpace(g.secretKey) == "" {
		return nil, ErrMissingSecretKey
	}
	api := &client.API{}
	api.Init(g.secretKey, nil)
	g.api = api
	return g.api, nil
}

func (g *apiGateway) CreateTransfer(ctx context.Context, transfer Transfer) error {
	api, err := g.clientAPI()
	if err != nil {
		return err
	}

	params := &stripego.TransferParams{
		Amount:        stripego.Int64(transfer.AmountCents),
		Currency:      stripego.String(transfer.Currency),
		Destination:   stripego.String(transfer.Destination),
		TransferGroup: stripego.String(transfer.TransferGroup),
	}
	params.Context = ctx
	if transfer.SourceAccount != "" {
		params.SetStripeAccount(transfer.SourceAccount)
	}

	created, err := api.Transfers.New(params)
	if err != nil {
		return fmt.Errorf("create transfer to %s: %w", transfer.Destination, err)
	}
	g.log.Info("transfer created",
		zap.String("transfer_id", created.ID),
		zap.String("destination", transfer.Destination),
		zap.Int64("amount_cents", transfer.AmountCents),
		zap.String("transfer_group", transfer.TransferGroup),
	)
	return nil
}

func (g *apiGateway) CreatePayout(ctx context.Context, payout Payout) error {
	api, err := g.clientAPI()
	if err != nil {
		return err
	}

	params := &stripego.PayoutParams{
		Amount:      stripego.Int64(payout.AmountCents),
		Currency:    stripego.String(payout.Currency),
		Destination: stripego.String(payout.Destination),
	}
	params.Context = ctx
	if payout.Method != "" {
		params.Method = stripego.String(payout.Method)
	}
	if payout.Account != "" {
		params.SetStripeAccount(payout.Account)
	}

	created, err := api.Payouts.New(params)
	if err != nil {
		return fmt.Errorf("create payout to %s: %w", payout.Destination, err)
	}
	g.log.Info("payout created",
		zap.String("payout_id", created.ID),
		zap.String("destination", payout.Destination),
		zap.Int64("amount_cents", payout.AmountCents),
	)
	return nil
}

func (g *apiGateway) GetSubscription(ctx context.Context, id string) (*Subscription, error) {
	api, err := g.clientAPI()
	if err != nil {
		return nil, err
	}

	params := &stripego.SubscriptionParams{}
	params.Context = ctx
	sub, err := api.Subscriptions.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("retrieve subscription %s: %w", id, err)
	}

	out := &Subscription{
		ID:       sub.ID,
		Status:   string(sub.Status),
		Metadata: sub.Metadata,
	}
	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		price := sub.Items.Data[0].Price
		out.AmountCents = price.UnitAmount
		out.Currency = string(price.Currency)
		if price.Recurring != nil {
			out.Interval = string(price.Recurring.Interval)
		}
	}
	return out, nil
}

func (g *apiGateway) SearchInvoicesByPaymentIntent(ctx context.Context, paymentIntentID string) ([]Invoice, error) {
	api, err := g.clientAPI()
	if err != nil {
		return nil, err
	}

	params := &stripego.InvoiceSearchParams{
		SearchParams: stripego.SearchParams{
			Query:   fmt.Sprintf("payment_intent:'%s'", paymentIntentID),
			Context: ctx,
		},
	}
	params.AddExpand("data.lines.data.price")

	var invoices []Invoice
	iter := api.Invoices.Search(params)
	for iter.Next() {
		invoices = append(invoices, fromStripeInvoice(iter.Invoice()))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("search invoices for %s: %w", paymentIntentID, err)
	}
	return invoices, nil
}

func fromStripeInvoice(inv *stripego.Invoice) Invoice {
	out := Invoice{
		ID:            inv.ID,
		CustomerEmail: inv.CustomerEmail,
		CustomerName:  inv.CustomerName,
		Currency:      string(inv.Currency),
		AmountPaid:    inv.AmountPaid,
	}
	if inv.Subscription != nil {
		out.SubscriptionID = inv.Subscription.ID
	}
	if inv.Charge != nil {
		out.ChargeID = inv.Charge.ID
	}
	if inv.Lines != nil {
		for _, line := range inv.Lines.Data {
			if line == nil || line.Price == nil || line.Price.Product == nil {
				continue
			}
			out.ProductIDs = append(out.ProductIDs, line.Price.Product.ID)
		}
	}
	return out
}

func (g *apiGateway) GetProduct(ctx context.Context, id string) (*Product, error) {
	api, err := g.clientAPI()
	if err != nil {
		return nil, err
	}

	params := &stripego.ProductParams{}
	params.Context = ctx
	product, err := api.Products.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("retrieve product %s: %w", id, err)
	}
	return &Product{ID: product.ID, Metadata: product.Metadata}, nil
}

var Module = fx.Module("providers.stripe",
	fx.Provide(NewGateway),
)
