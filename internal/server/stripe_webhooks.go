package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	webhookdomain "github.com/givebridge/givebridge/internal/webhook/domain"
	"go.uber.org/zap"
)

// HandleStripeWebhook is the single provider-facing endpoint. The response
// code is the contract with the provider's retry loop: any non-2xx answer
// schedules a redelivery of the same event, so only failures we want retried
// may answer 5xx, and permanently-bad requests must answer 4xx.
func (s *Server) HandleStripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body"})
		return
	}

	event, err := s.verifier.VerifyAndDecode(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		s.respondVerificationError(c, err)
		return
	}

	if err := s.donationSvc.ProcessEvent(c.Request.Context(), event); err != nil {
		s.log.Error("webhook processing failed",
			zap.String("event_id", event.ID),
			zap.String("event_type", event.Type),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Webhook processing failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (s *Server) respondVerificationError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, webhookdomain.ErrNoSecrets):
		s.log.Error("webhook rejected: no secrets configured")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Webhook secret not configured"})
	case errors.Is(err, webhookdomain.ErrNoSignature):
		c.JSON(http.StatusBadRequest, gin.H{"error": "No signature"})
	case errors.Is(err, webhookdomain.ErrInvalidSignature):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid signature"})
	case errors.Is(err, webhookdomain.ErrInvalidJSON):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body"})
	default:
		s.log.Error("webhook verification failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Webhook processing failed"})
	}
}
