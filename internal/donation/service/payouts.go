package service

import (
	"context"

	"github.com/givebridge/givebridge/internal/donation/domain"
	webhookdomain "github.com/givebridge/givebridge/internal/webhook/domain"
	"go.uber.org/zap"
)

// handlePayoutPaid notifies the owner of the connected account a payout was
// paid from. Payouts for accounts we do not track are acknowledged no-ops.
func (s *Service) handlePayoutPaid(ctx context.Context, event *webhookdomain.Event) error {
	payout := event.Payout
	if payout == nil || payout.ID == "" {
		return domain.ErrInvalidEvent
	}
	if event.Account == "" {
		s.log.Debug("payout event without connected account", zap.String("payout", payout.ID))
		return nil
	}

	org, err := s.repo.FindOrganizationByAccountID(ctx, s.db, event.Account)
	if err != nil {
		return err
	}
	if org == nil {
		s.log.Debug("payout for untracked account",
			zap.String("payout", payout.ID),
			zap.String("account", event.Account),
		)
		return nil
	}

	ownerEmail, err := s.repo.FindUserEmail(ctx, s.db, org.OwnerID)
	if err != nil {
		return err
	}
	s.dispatcher.SendPayoutProcessedEmail(ctx, payout.ID, payout.Amount, payout.Currency, org.Name, ownerEmail)
	return nil
}

// handleAccountUpdated tracks Connect onboarding: an organization is
// onboarded once charges, payouts, and details submission are all enabled.
func (s *Service) handleAccountUpdated(ctx context.Context, event *webhookdomain.Event) error {
	account := event.AccountStatus
	if account == nil || account.ID == "" {
		return domain.ErrInvalidEvent
	}

	completed := account.ChargesEnabled && account.PayoutsEnabled && account.DetailsSubmitted
	if err := s.repo.UpdateOrganizationOnboarding(ctx, s.db, account.ID, completed); err != nil {
		return err
	}
	s.log.Info("organization onboarding state updated",
		zap.String("account", account.ID),
		zap.Bool("completed", completed),
	)
	return nil
}
