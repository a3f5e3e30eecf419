package webhook_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/givebridge/givebridge/internal/config"
	"github.com/givebridge/givebridge/internal/webhook"
	"github.com/givebridge/givebridge/internal/webhook/domain"
	"go.uber.org/zap"
)

func newVerifier(secrets []string, skip bool) *webhook.Verifier {
	return webhook.NewVerifier(webhook.Params{
		Log: zap.NewNop(),
		Cfg: config.Config{
			StripeWebhookSecrets:    secrets,
			SkipWebhookVerification: skip,
		},
	})
}

func validPayload() []byte {
	return []byte(`{"id":"evt_1","type":"payment_intent.succeeded","data":{"object":{"id":"pi_1","amount":2000,"currency":"usd"}}}`)
}

func TestVerifyAndDecodeAcceptsPrimarySecret(t *testing.T) {
	v := newVerifier([]string{"whsec_a"}, false)
	payload := validPayload()
	header := buildStripeSignatureHeader("whsec_a", payload, time.Now().Unix())

	event, err := v.VerifyAndDecode(payload, header)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if event.Type != domain.EventPaymentIntentSucceeded {
		t.Fatalf("expected payment_intent.succeeded, got %s", event.Type)
	}
	if event.PaymentIntent == nil || event.PaymentIntent.ID != "pi_1" {
		t.Fatalf("expected decoded payment intent pi_1")
	}
}

func TestVerifyAndDecodeFallsBackToLaterSecret(t *testing.T) {
	v := newVerifier([]string{"whsec_a", "whsec_b", "whsec_c"}, false)
	payload := validPayload()
	header := buildStripeSignatureHeader("whsec_b", payload, time.Now().Unix())

	event, err := v.VerifyAndDecode(payload, header)
	if err != nil {
		t.Fatalf("expected second secret to verify: %v", err)
	}
	if event.ID != "evt_1" {
		t.Fatalf("expected evt_1, got %s", event.ID)
	}
}

func TestVerifyAndDecodeRejectsUnknownSecret(t *testing.T) {
	v := newVerifier([]string{"whsec_a", "whsec_b"}, false)
	payload := validPayload()
	header := buildStripeSignatureHeader("whsec_other", payload, time.Now().Unix())

	if _, err := v.VerifyAndDecode(payload, header); !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestVerifyAndDecodeRejectsTamperedPayload(t *testing.T) {
	v := newVerifier([]string{"whsec_a"}, false)
	payload := validPayload()
	header := buildStripeSignatureHeader("whsec_a", payload, time.Now().Unix())

	tampered := append([]byte{}, payload...)
	tampered[len(tampered)-2] = 'x'

	if _, err := v.VerifyAndDecode(tampered, header); !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestVerifyAndDecodeMissingSignature(t *testing.T) {
	v := newVerifier([]string{"whsec_a"}, false)

	if _, err := v.VerifyAndDecode(validPayload(), ""); !errors.Is(err, domain.ErrNoSignature) {
		t.Fatalf("expected ErrNoSignature, got %v", err)
	}
}

func TestVerifyAndDecodeMalformedSignatureHeader(t *testing.T) {
	v := newVerifier([]string{"whsec_a"}, false)

	if _, err := v.VerifyAndDecode(validPayload(), "not-a-signature"); !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestVerifyAndDecodeNoSecretsConfigured(t *testing.T) {
	v := newVerifier(nil, false)
	payload := validPayload()
	header := buildStripeSignatureHeader("whsec_a", payload, time.Now().Unix())

	if _, err := v.VerifyAndDecode(payload, header); !errors.Is(err, domain.ErrNoSecrets) {
		t.Fatalf("expected ErrNoSecrets, got %v", err)
	}
}

func TestVerifyAndDecodeMalformedBody(t *testing.T) {
	v := newVerifier([]string{"whsec_a"}, false)

	cases := []struct {
		name    string
		payload []byte
	}{
		{name: "not json", payload: []byte("not json")},
		{name: "missing type", payload: []byte(`{"id":"evt_1","data":{"object":{"id":"pi_1"}}}`)},
		{name: "missing object", payload: []byte(`{"id":"evt_1","type":"payment_intent.succeeded","data":{}}`)},
	}

	for _, tc := range cases {
		header := buildStripeSignatureHeader("whsec_a", tc.payload, time.Now().Unix())
		if _, err := v.VerifyAndDecode(tc.payload, header); !errors.Is(err, domain.ErrInvalidJSON) {
			t.Fatalf("%s: expected ErrInvalidJSON, got %v", tc.name, err)
		}
	}
}

func TestVerifyAndDecodeSkipMode(t *testing.T) {
	v := newVerifier(nil, true)

	event, err := v.VerifyAndDecode(validPayload(), "")
	if err != nil {
		t.Fatalf("expected skip mode to accept unsigned payload: %v", err)
	}
	if event.PaymentIntent == nil {
		t.Fatalf("expected decoded payment intent")
	}

	// Skip mode still rejects bodies that cannot be decoded.
	if _, err := v.VerifyAndDecode([]byte("not json"), ""); !errors.Is(err, domain.ErrInvalidJSON) {
		t.Fatalf("expected ErrInvalidJSON in skip mode, got %v", err)
	}
}

func TestVerifyAndDecodeUnknownEventType(t *testing.T) {
	v := newVerifier([]string{"whsec_a"}, false)
	payload := []byte(`{"id":"evt_2","type":"charge.refunded","data":{"object":{"id":"ch_1"}}}`)
	header := buildStripeSignatureHeader("whsec_a", payload, time.Now().Unix())

	event, err := v.VerifyAndDecode(payload, header)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if event.PaymentIntent != nil || event.Invoice != nil || event.Payout != nil {
		t.Fatalf("expected empty payload for unknown event type")
	}
}

func buildStripeSignatureHeader(secret string, payload []byte, timestamp int64) string {
	signedPayload := fmt.Sprintf("%d.%s", timestamp, string(payload))
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(signedPayload))
	signature := hex.EncodeToString(mac.Sum(nil))
	return fmt.Sprintf("t=%d,v1=%s", timestamp, signature)
}
