package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/givebridge/givebridge/internal/donation/domain"
	stripegw "github.com/givebridge/givebridge/internal/providers/stripe"
	webhookdomain "github.com/givebridge/givebridge/internal/webhook/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// splitEntry is one peer-split instruction carried in payment metadata:
// a percentage of the charge routed to a connected account.
type splitEntry struct {
	Percentage float64 `json:"percentage"`
	AccountID  string  `json:"accountId"`
}

// resolveSplits extracts peer-split instructions for a payment. The primary
// carrier is the payment intent's own "splits" metadata key. Subscription
// renewals lose custom metadata on the intent, so when the key is absent we
// search the invoice behind the payment and read the same key from the
// purchased products' metadata. Resolution failures degrade to "no splits":
// the payment then settles as a regular donation.
func (s *Service) resolveSplits(ctx context.Context, pi *webhookdomain.PaymentIntent) []splitEntry {
	if raw, ok := pi.Metadata["splits"]; ok && raw != "" {
		return parseSplits(s.log, raw)
	}

	invoices, err := s.gateway.SearchInvoicesByPaymentIntent(ctx, pi.ID)
	if err != nil {
		s.log.Warn("invoice search for splits failed",
			zap.String("payment_intent", pi.ID),
			zap.Error(err),
		)
		return nil
	}

	for _, invoice := range invoices {
		for _, productID := range invoice.ProductIDs {
			product, err := s.gateway.GetProduct(ctx, productID)
			if err != nil {
				s.log.Warn("product lookup for splits failed",
					zap.String("product", productID),
					zap.Error(err),
				)
				continue
			}
			if raw := product.Metadata["splits"]; raw != "" {
				return parseSplits(s.log, raw)
			}
		}
	}
	return nil
}

func parseSplits(log *zap.Logger, raw string) []splitEntry {
	var entries []splitEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		log.Warn("malformed splits metadata", zap.Error(err))
		return nil
	}

	valid := entries[:0]
	for _, entry := range entries {
		if entry.Percentage <= 0 || entry.AccountID == "" {
			continue
		}
		valid = append(valid, entry)
	}
	return valid
}

// executePeerTransfers runs one transfer per split entry concurrently. A
// single failed transfer fails the batch so the provider redelivers the
// event; transfers that did land are absorbed by Stripe's own idempotent
// transfer-group semantics on retry.
func (s *Service) executePeerTransfers(ctx context.Context, event *webhookdomain.Event, pi *webhookdomain.PaymentIntent, splits []splitEntry) error {
	source := event.Account
	if source == "" {
		source = pi.OnBehalfOf
	}
	if source == "" {
		if orgID := parseMetadataID(pi.Metadata, "organization_id"); orgID != nil {
			org, err := s.repo.FindOrganizationByID(ctx, s.db, *orgID)
			if err != nil {
				return err
			}
			if org != nil {
				source = org.StripeAccountID
			}
		}
	}

	group, groupCtx := errgroup.WithContext(ctx)
	for _, split := range splits {
		amount := shareOf(split.Percentage, pi.Amount)
		if amount < 1 {
			s.log.Debug("skipping sub-cent split share",
				zap.String("payment_intent", pi.ID),
				zap.String("destination", split.AccountID),
				zap.Float64("percentage", split.Percentage),
			)
			continue
		}

		transfer := stripegw.Transfer{
			AmountCents:   amount,
			Currency:      pi.Currency,
			Destination:   split.AccountID,
			TransferGroup: pi.ID,
			SourceAccount: source,
		}
		group.Go(func() error {
			if err := s.gateway.CreateTransfer(groupCtx, transfer); err != nil {
				return fmt.Errorf("transfer to %s: %w", transfer.Destination, err)
			}
			s.metrics.RecordTransfer(groupCtx, "peer_split")
			return nil
		})
	}
	return group.Wait()
}

// transferEndowmentShare routes the configured fraction of the platform's
// application fee to the donation's designated endowment fund.
func (s *Service) transferEndowmentShare(ctx context.Context, pi *webhookdomain.PaymentIntent, donation *domain.Donation) error {
	if donation.EndowmentFundID == nil || pi.ApplicationFeeAmount <= 0 {
		return nil
	}

	rate := s.giving.Get().EndowmentShareRate
	share := int64(math.Round(rate * float64(pi.ApplicationFeeAmount)))
	if share < 1 {
		s.log.Debug("endowment share below one cent, skipping",
			zap.String("payment_intent", pi.ID),
			zap.Int64("application_fee", pi.ApplicationFeeAmount),
		)
		return nil
	}

	fund, err := s.repo.FindEndowmentFund(ctx, s.db, *donation.EndowmentFundID)
	if err != nil {
		return err
	}
	if fund == nil || fund.StripeAccountID == "" {
		s.log.Warn("endowment fund missing or has no connected account",
			zap.String("payment_intent", pi.ID),
		)
		return nil
	}

	err = s.gateway.CreateTransfer(ctx, stripegw.Transfer{
		AmountCents:   share,
		Currency:      pi.Currency,
		Destination:   fund.StripeAccountID,
		TransferGroup: pi.ID,
	})
	if err != nil {
		return err
	}
	s.metrics.RecordTransfer(ctx, "endowment_share")
	s.log.Info("endowment share transferred",
		zap.String("payment_intent", pi.ID),
		zap.Int64("amount_cents", share),
		zap.String("fund_account", fund.StripeAccountID),
	)
	return nil
}

// executeInternalSplits pays out an organization's configured bank-account
// split table for one donation. The whole table is applied or none of it:
// percentages must sum to exactly 100, and a marker row makes the batch
// at-most-once per payment intent.
func (s *Service) executeInternalSplits(ctx context.Context, pi *webhookdomain.PaymentIntent, donation *domain.Donation) error {
	splits, err := s.repo.ListOrganizationSplits(ctx, s.db, donation.OrganizationID)
	if err != nil {
		return err
	}
	if len(splits) == 0 {
		return nil
	}

	var total float64
	for _, split := range splits {
		total += split.Percentage
	}
	if total != 100 {
		s.log.Warn("organization split percentages do not sum to 100, skipping",
			zap.Int64("organization", int64(donation.OrganizationID)),
			zap.Float64("total", total),
		)
		return nil
	}

	done, err := s.repo.HasInternalSplitPayoutRecord(ctx, s.db, pi.ID)
	if err != nil {
		return err
	}
	if done {
		return nil
	}

	org, err := s.repo.FindOrganizationByID(ctx, s.db, donation.OrganizationID)
	if err != nil {
		return err
	}
	if org == nil || org.StripeAccountID == "" {
		s.log.Warn("organization has no connected account for internal splits",
			zap.Int64("organization", int64(donation.OrganizationID)),
		)
		return nil
	}

	for _, split := range splits {
		amount := shareOf(split.Percentage, donation.AmountCents)
		if amount < 1 {
			continue
		}
		err := s.gateway.CreatePayout(ctx, stripegw.Payout{
			AmountCents: amount,
			Currency:    donation.Currency,
			Destination: split.ExternalAccountID,
			Account:     org.StripeAccountID,
		})
		if err != nil {
			return fmt.Errorf("payout to %s: %w", split.ExternalAccountID, err)
		}
		s.metrics.RecordTransfer(ctx, "internal_split")
	}

	return s.repo.InsertInternalSplitPayoutRecord(ctx, s.db, pi.ID)
}

// shareOf converts a percentage of a cent amount into whole cents, rounding
// half away from zero.
func shareOf(percentage float64, totalCents int64) int64 {
	return int64(math.Round(percentage / 100 * float64(totalCents)))
}
