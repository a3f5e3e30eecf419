package service

import (
	"context"
	"time"

	"github.com/givebridge/givebridge/internal/donation/domain"
	webhookdomain "github.com/givebridge/givebridge/internal/webhook/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// handleCheckoutCompleted registers a recurring donation. One-off checkout
// sessions are settled by the payment-intent flow, so only subscription-mode
// sessions are handled here.
func (s *Service) handleCheckoutCompleted(ctx context.Context, event *webhookdomain.Event) error {
	session := event.CheckoutSession
	if session == nil || session.ID == "" {
		return domain.ErrInvalidEvent
	}
	if session.Mode != "subscription" || session.Subscription == "" {
		s.log.Debug("ignoring non-subscription checkout session", zap.String("session", session.ID))
		return nil
	}

	sub, err := s.gateway.GetSubscription(ctx, session.Subscription)
	if err != nil {
		return err
	}

	// Session metadata takes precedence; a subscription created through our
	// checkout carries the same keys either way.
	metadata := map[string]string{}
	for key, value := range sub.Metadata {
		metadata[key] = value
	}
	for key, value := range session.Metadata {
		metadata[key] = value
	}

	orgID := parseMetadataID(metadata, "organization_id")
	if orgID == nil {
		s.log.Warn("subscription checkout without organization metadata",
			zap.String("session", session.ID),
			zap.String("subscription", sub.ID),
		)
		return nil
	}

	now := time.Now().UTC()
	record := &domain.DonorSubscription{
		ID:                   s.genID.Generate(),
		UserID:               parseMetadataID(metadata, "user_id"),
		OrganizationID:       *orgID,
		CampaignID:           parseMetadataID(metadata, "campaign_id"),
		StripeSubscriptionID: sub.ID,
		StripeCustomerID:     sub.CustomerID,
		AmountCents:          sub.AmountCents,
		Currency:             sub.Currency,
		Interval:             sub.Interval,
		Status:               sub.Status,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := s.repo.UpsertDonorSubscription(ctx, s.db, record); err != nil {
		return err
	}

	if record.UserID != nil {
		s.nonCritical("saved organization upsert", func() error {
			return s.repo.UpsertSavedOrganization(ctx, s.db, *record.UserID, record.OrganizationID)
		})
	}

	s.log.Info("donor subscription registered",
		zap.String("subscription", sub.ID),
		zap.Int64("organization", int64(record.OrganizationID)),
	)
	return nil
}

// handleInvoicePaid books a subscription renewal as a donation. The invoice
// carries no custom metadata of its own, so the subscription behind it is
// fetched for the organization/campaign attribution.
func (s *Service) handleInvoicePaid(ctx context.Context, event *webhookdomain.Event) error {
	invoice := event.Invoice
	if invoice == nil || invoice.ID == "" {
		return domain.ErrInvalidEvent
	}
	if invoice.Subscription == "" {
		s.log.Debug("ignoring non-subscription invoice", zap.String("invoice", invoice.ID))
		return nil
	}

	// Two dedup keys: the charge when the invoice has one, and the invoice id
	// recorded in donation metadata either way.
	if invoice.Charge != "" {
		existing, err := s.repo.FindDonationByCharge(ctx, s.db, invoice.Charge)
		if err != nil {
			return err
		}
		if existing != nil {
			s.log.Info("invoice charge already processed", zap.String("invoice", invoice.ID))
			return nil
		}
	}
	existing, err := s.repo.FindDonationByInvoiceMarker(ctx, s.db, invoice.ID)
	if err != nil {
		return err
	}
	if existing != nil {
		s.log.Info("invoice already processed", zap.String("invoice", invoice.ID))
		return nil
	}

	sub, err := s.gateway.GetSubscription(ctx, invoice.Subscription)
	if err != nil {
		return err
	}

	orgID := parseMetadataID(sub.Metadata, "organization_id")
	if orgID == nil {
		s.log.Warn("subscription invoice without organization metadata",
			zap.String("invoice", invoice.ID),
			zap.String("subscription", sub.ID),
		)
		return nil
	}

	donation := &domain.Donation{
		ID:             s.genID.Generate(),
		OrganizationID: *orgID,
		CampaignID:     parseMetadataID(sub.Metadata, "campaign_id"),
		UserID:         parseMetadataID(sub.Metadata, "user_id"),
		AmountCents:    invoice.AmountPaid,
		Currency:       invoice.Currency,
		DonorEmail:     invoice.CustomerEmail,
		DonorName:      invoice.CustomerName,
		StripeChargeID: invoice.Charge,
		Status:         domain.DonationStatusSucceeded,
		ReceiptToken:   uuid.NewString(),
		Metadata:       metadataJSON(sub.Metadata),
		CreatedAt:      time.Now().UTC(),
	}
	donation.Metadata["stripe_invoice_id"] = invoice.ID

	inserted, err := s.insertDonation(ctx, donation)
	if err != nil {
		return err
	}
	if !inserted {
		return nil
	}

	if donation.CampaignID != nil {
		s.nonCritical("campaign total increment", func() error {
			return s.repo.IncrementCampaignTotal(ctx, s.db, *donation.CampaignID, donation.AmountCents)
		})
	}

	s.sendDonationNotifications(ctx, donation)
	return nil
}

// handleSubscriptionChanged mirrors provider-side status changes onto the
// donor subscription row. Unknown subscriptions are acknowledged no-ops.
func (s *Service) handleSubscriptionChanged(ctx context.Context, event *webhookdomain.Event) error {
	sub := event.Subscription
	if sub == nil || sub.ID == "" {
		return domain.ErrInvalidEvent
	}

	status := sub.Status
	if event.Type == webhookdomain.EventSubscriptionDeleted && status == "" {
		status = "canceled"
	}
	if status == "" {
		s.log.Debug("subscription update without status", zap.String("subscription", sub.ID))
		return nil
	}
	return s.repo.UpdateDonorSubscriptionStatus(ctx, s.db, sub.ID, status)
}
