package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/givebridge/givebridge/internal/config"
	"github.com/givebridge/givebridge/internal/webhook/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log *zap.Logger
	Cfg config.Config
}

// Verifier authenticates raw webhook bodies and decodes them into typed
// events. Several signing secrets can be valid at once (platform endpoint
// plus Connect endpoint sharing one URL); they are tried in order.
type Verifier struct {
	log     *zap.Logger
	secrets []string
	skip    bool
}

func NewVerifier(p Params) *Verifier {
	return &Verifier{
		log:     p.Log.Named("webhook.verifier"),
		secrets: p.Cfg.StripeWebhookSecrets,
		skip:    p.Cfg.SkipWebhookVerification,
	}
}

// VerifyAndDecode checks the signature header against each configured secret
// in order and decodes the body into a typed event. With verification
// disabled it only requires a syntactically complete envelope.
func (v *Verifier) VerifyAndDecode(body []byte, sigHeader string) (*domain.Event, error) {
	if v.skip {
		v.log.Warn("webhook signature verification bypassed; do not enable outside test environments")
		return decodeEvent(body)
	}

	if len(v.secrets) == 0 {
		return nil, domain.ErrNoSecrets
	}

	sigHeader = strings.TrimSpace(sigHeader)
	if sigHeader == "" {
		return nil, domain.ErrNoSignature
	}

	timestamp, signatures, err := parseSignatureHeader(sigHeader)
	if err != nil {
		return nil, domain.ErrInvalidSignature
	}

	signedPayload := fmt.Sprintf("%s.%s", timestamp, string(body))
	for idx, secret := range v.secrets {
		mac := hmac.New(sha256.New, []byte(secret))
		_, _ = mac.Write([]byte(signedPayload))
		expected := hex.EncodeToString(mac.Sum(nil))

		for _, signature := range signatures {
			if hmac.Equal([]byte(signature), []byte(expected)) {
				if idx > 0 {
					v.log.Debug("webhook verified with fallback secret", zap.Int("secret_index", idx))
				}
				return decodeEvent(body)
			}
		}
	}

	return nil, domain.ErrInvalidSignature
}

func parseSignatureHeader(header string) (string, []string, error) {
	parts := strings.Split(header, ",")
	var timestamp string
	signatures := []string{}
	for _, part := range parts {
		piece := strings.TrimSpace(part)
		if piece == "" {
			continue
		}
		keyValue := strings.SplitN(piece, "=", 2)
		if len(keyValue) != 2 {
			continue
		}
		key := strings.TrimSpace(keyValue[0])
		value := strings.TrimSpace(keyValue[1])
		if key == "t" {
			timestamp = value
		}
		if key == "v1" {
			signatures = append(signatures, value)
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return "", nil, errors.New("invalid_signature")
	}
	return timestamp, signatures, nil
}

type eventEnvelope struct {
	ID      string            `json:"id"`
	Type    string            `json:"type"`
	Account string            `json:"account"`
	Created int64             `json:"created"`
	Data    eventEnvelopeData `json:"data"`
}

type eventEnvelopeData struct {
	Object json.RawMessage `json:"object"`
}

func decodeEvent(body []byte) (*domain.Event, error) {
	var envelope eventEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, domain.ErrInvalidJSON
	}
	if strings.TrimSpace(envelope.Type) == "" || len(envelope.Data.Object) == 0 {
		return nil, domain.ErrInvalidJSON
	}

	event := &domain.Event{
		ID:         envelope.ID,
		Type:       strings.TrimSpace(envelope.Type),
		Account:    strings.TrimSpace(envelope.Account),
		OccurredAt: eventTime(envelope.Created),
	}

	if err := decodeObject(event, envelope.Data.Object); err != nil {
		return nil, err
	}
	return event, nil
}

func decodeObject(event *domain.Event, object json.RawMessage) error {
	switch event.Type {
	case domain.EventPaymentIntentSucceeded, domain.EventPaymentIntentFailed:
		var payload struct {
			ID                   string            `json:"id"`
			Amount               int64             `json:"amount"`
			Currency             string            `json:"currency"`
			ApplicationFeeAmount int64             `json:"application_fee_amount"`
			ReceiptEmail         string            `json:"receipt_email"`
			LatestCharge         string            `json:"latest_charge"`
			OnBehalfOf           string            `json:"on_behalf_of"`
			Metadata             map[string]string `json:"metadata"`
		}
		if err := json.Unmarshal(object, &payload); err != nil {
			return domain.ErrInvalidJSON
		}
		event.PaymentIntent = &domain.PaymentIntent{
			ID:                   payload.ID,
			Amount:               payload.Amount,
			Currency:             strings.ToLower(strings.TrimSpace(payload.Currency)),
			ApplicationFeeAmount: payload.ApplicationFeeAmount,
			ReceiptEmail:         strings.TrimSpace(payload.ReceiptEmail),
			LatestCharge:         payload.LatestCharge,
			OnBehalfOf:           payload.OnBehalfOf,
			Metadata:             payload.Metadata,
		}
	case domain.EventCheckoutSessionComplete:
		var payload struct {
			ID           string            `json:"id"`
			Mode         string            `json:"mode"`
			Subscription string            `json:"subscription"`
			Customer     string            `json:"customer"`
			Metadata     map[string]string `json:"metadata"`
		}
		if err := json.Unmarshal(object, &payload); err != nil {
			return domain.ErrInvalidJSON
		}
		event.CheckoutSession = &domain.CheckoutSession{
			ID:           payload.ID,
			Mode:         payload.Mode,
			Subscription: payload.Subscription,
			Customer:     payload.Customer,
			Metadata:     payload.Metadata,
		}
	case domain.EventInvoicePaid:
		var payload struct {
			ID            string `json:"id"`
			Subscription  string `json:"subscription"`
			Charge        string `json:"charge"`
			AmountPaid    int64  `json:"amount_paid"`
			Currency      string `json:"currency"`
			CustomerEmail string `json:"customer_email"`
			CustomerName  string `json:"customer_name"`
		}
		if err := json.Unmarshal(object, &payload); err != nil {
			return domain.ErrInvalidJSON
		}
		event.Invoice = &domain.Invoice{
			ID:            payload.ID,
			Subscription:  payload.Subscription,
			Charge:        payload.Charge,
			AmountPaid:    payload.AmountPaid,
			Currency:      strings.ToLower(strings.TrimSpace(payload.Currency)),
			CustomerEmail: strings.TrimSpace(payload.CustomerEmail),
			CustomerName:  strings.TrimSpace(payload.CustomerName),
		}
	case domain.EventSubscriptionUpdated, domain.EventSubscriptionDeleted:
		var payload struct {
			ID       string `json:"id"`
			Status   string `json:"status"`
			Customer string `json:"customer"`
		}
		if err := json.Unmarshal(object, &payload); err != nil {
			return domain.ErrInvalidJSON
		}
		event.Subscription = &domain.Subscription{
			ID:       payload.ID,
			Status:   payload.Status,
			Customer: payload.Customer,
		}
	case domain.EventPayoutPaid:
		var payload struct {
			ID       string `json:"id"`
			Amount   int64  `json:"amount"`
			Currency string `json:"currency"`
		}
		if err := json.Unmarshal(object, &payload); err != nil {
			return domain.ErrInvalidJSON
		}
		event.Payout = &domain.Payout{
			ID:       payload.ID,
			Amount:   payload.Amount,
			Currency: strings.ToLower(strings.TrimSpace(payload.Currency)),
		}
	case domain.EventAccountUpdated:
		var payload struct {
			ID               string `json:"id"`
			ChargesEnabled   bool   `json:"charges_enabled"`
			PayoutsEnabled   bool   `json:"payouts_enabled"`
			DetailsSubmitted bool   `json:"details_submitted"`
		}
		if err := json.Unmarshal(object, &payload); err != nil {
			return domain.ErrInvalidJSON
		}
		event.AccountStatus = &domain.AccountStatus{
			ID:               payload.ID,
			ChargesEnabled:   payload.ChargesEnabled,
			PayoutsEnabled:   payload.PayoutsEnabled,
			DetailsSubmitted: payload.DetailsSubmitted,
		}
	}
	// Unhandled event types keep an empty payload; the router treats them
	// as acknowledged no-ops for forward compatibility.
	return nil
}

func eventTime(created int64) time.Time {
	if created == 0 {
		return time.Now().UTC()
	}
	return time.Unix(created, 0).UTC()
}

var Module = fx.Module("webhook",
	fx.Provide(NewVerifier),
)
