package service

import (
	"context"
	"time"

	"github.com/givebridge/givebridge/internal/donation/domain"
	webhookdomain "github.com/givebridge/givebridge/internal/webhook/domain"
	"github.com/givebridge/givebridge/pkg/db"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// handlePaymentSucceeded is the main settlement path. Proceeds either flow
// to peer Connect accounts (split payment) or are booked as a platform
// donation with campaign, fund-request, endowment, and internal-split side
// effects. The donation row itself is the primary idempotency record: a
// redelivered event short-circuits on the payment-intent lookup.
func (s *Service) handlePaymentSucceeded(ctx context.Context, event *webhookdomain.Event) error {
	pi := event.PaymentIntent
	if pi == nil || pi.ID == "" {
		return domain.ErrInvalidEvent
	}

	existing, err := s.repo.FindDonationByPaymentIntent(ctx, s.db, pi.ID)
	if err != nil {
		return err
	}
	if existing != nil {
		s.log.Info("payment already processed", zap.String("payment_intent", pi.ID))
		return nil
	}

	splits := s.resolveSplits(ctx, pi)
	if len(splits) > 0 {
		return s.settleSplitPayment(ctx, event, pi, splits)
	}
	return s.settleDirectDonation(ctx, pi)
}

// settleSplitPayment executes the peer transfers and records a minimal
// donation row. The split variant is a direct peer-to-peer transaction, not
// a platform-fee-bearing donation, so campaign, fund-request, and endowment
// bookkeeping are skipped.
func (s *Service) settleSplitPayment(ctx context.Context, event *webhookdomain.Event, pi *webhookdomain.PaymentIntent, splits []splitEntry) error {
	transferred, err := s.repo.HasSplitTransferRecord(ctx, s.db, pi.ID)
	if err != nil {
		return err
	}
	if transferred {
		s.log.Info("split transfers already executed", zap.String("payment_intent", pi.ID))
	} else {
		if err := s.executePeerTransfers(ctx, event, pi, splits); err != nil {
			// Any failed transfer fails the whole batch; no partial-success
			// marker is written so the provider retries the full event.
			return err
		}
		if err := s.repo.InsertSplitTransferRecord(ctx, s.db, pi.ID); err != nil {
			return err
		}
	}

	donation := s.buildDonation(pi)
	donation.Metadata["split_mode"] = domain.SplitModeStripeConnect
	_, err = s.insertDonation(ctx, donation)
	return err
}

func (s *Service) settleDirectDonation(ctx context.Context, pi *webhookdomain.PaymentIntent) error {
	donation := s.buildDonation(pi)
	inserted, err := s.insertDonation(ctx, donation)
	if err != nil {
		return err
	}
	if !inserted {
		// No ledger row, no side effects: a skipped insert must not move
		// money or send receipts for a donation that was never booked.
		return nil
	}

	if donation.UserID != nil {
		s.nonCritical("saved organization upsert", func() error {
			return s.repo.UpsertSavedOrganization(ctx, s.db, *donation.UserID, donation.OrganizationID)
		})
	}
	if donation.CampaignID != nil {
		s.nonCritical("campaign total increment", func() error {
			return s.repo.IncrementCampaignTotal(ctx, s.db, *donation.CampaignID, donation.AmountCents)
		})
	}
	if donation.FundRequestID != nil {
		s.nonCritical("fund request fulfillment", func() error {
			return s.repo.ApplyFundRequestFulfillment(ctx, s.db, *donation.FundRequestID, donation.AmountCents)
		})
	}
	s.nonCritical("endowment share transfer", func() error {
		return s.transferEndowmentShare(ctx, pi, donation)
	})
	s.nonCritical("internal organization splits", func() error {
		return s.executeInternalSplits(ctx, pi, donation)
	})

	s.sendDonationNotifications(ctx, donation)
	return nil
}

// insertDonation writes the donation row and reports whether it was actually
// stored. A foreign-key violation is acked rather than errored: test events
// reference fixture organizations that do not exist, and answering with an
// error would make the provider retry the event forever. Callers must treat
// inserted=false as "nothing was booked" and skip all follow-up effects.
func (s *Service) insertDonation(ctx context.Context, donation *domain.Donation) (bool, error) {
	err := s.repo.InsertDonation(ctx, s.db, donation)
	if err == nil {
		return true, nil
	}
	if db.IsForeignKeyErr(err) {
		s.log.Warn("donation references unknown entity, skipping",
			zap.String("payment_intent", donation.StripePaymentIntentID),
			zap.Error(err),
		)
		return false, nil
	}
	return false, err
}

func (s *Service) buildDonation(pi *webhookdomain.PaymentIntent) *domain.Donation {
	amount := metadataAmount(pi.Metadata, "donation_amount")
	if amount == 0 {
		amount = pi.Amount
	}

	donorEmail := pi.ReceiptEmail
	if donorEmail == "" {
		donorEmail = pi.Metadata["donor_email"]
	}

	donation := &domain.Donation{
		ID:                    s.genID.Generate(),
		AmountCents:           amount,
		Currency:              pi.Currency,
		DonorEmail:            donorEmail,
		DonorName:             pi.Metadata["donor_name"],
		StripePaymentIntentID: pi.ID,
		StripeChargeID:        pi.LatestCharge,
		Status:                domain.DonationStatusSucceeded,
		ReceiptToken:          uuid.NewString(),
		Metadata:              metadataJSON(pi.Metadata),
		CreatedAt:             time.Now().UTC(),
	}
	if orgID := parseMetadataID(pi.Metadata, "organization_id"); orgID != nil {
		donation.OrganizationID = *orgID
	}
	donation.CampaignID = parseMetadataID(pi.Metadata, "campaign_id")
	donation.FundRequestID = parseMetadataID(pi.Metadata, "fund_request_id")
	donation.EndowmentFundID = parseMetadataID(pi.Metadata, "endowment_fund_id")
	donation.UserID = parseMetadataID(pi.Metadata, "user_id")
	return donation
}

func (s *Service) sendDonationNotifications(ctx context.Context, donation *domain.Donation) {
	org, err := s.repo.FindOrganizationByID(ctx, s.db, donation.OrganizationID)
	if err != nil {
		s.log.Warn("organization lookup for notifications failed",
			zap.String("payment_intent", donation.StripePaymentIntentID),
			zap.Error(err),
		)
		return
	}
	if org == nil {
		return
	}

	s.dispatcher.SendDonationEmails(ctx, donation, org.Name)

	ownerEmail, err := s.repo.FindUserEmail(ctx, s.db, org.OwnerID)
	if err != nil {
		s.log.Warn("owner email lookup failed", zap.Int64("organization", int64(org.ID)), zap.Error(err))
		return
	}
	s.dispatcher.SendOrgNewDonationEmail(ctx, donation, org.Name, ownerEmail)
}

func (s *Service) handlePaymentFailed(ctx context.Context, event *webhookdomain.Event) error {
	pi := event.PaymentIntent
	if pi == nil || pi.ID == "" {
		return domain.ErrInvalidEvent
	}
	// No-op when no donation row exists for this payment intent.
	return s.repo.MarkDonationFailed(ctx, s.db, pi.ID)
}
