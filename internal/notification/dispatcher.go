package notification

import (
	"context"
	"errors"
	"time"

	"github.com/givebridge/givebridge/internal/config"
	donationdomain "github.com/givebridge/givebridge/internal/donation/domain"
	obsmetrics "github.com/givebridge/givebridge/internal/observability/metrics"
	"github.com/givebridge/givebridge/internal/providers/email"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	EntityDonation = "donation"
	EntityPayout   = "payout"

	EmailTypeDonorDonationReceived = "donor_donation_received"
	EmailTypeDonorReceipt          = "donor_receipt"
	EmailTypeOrgNewDonation        = "org_new_donation"
	EmailTypeOrgPayoutProcessed    = "org_payout_processed"
)

// Outcome reports what Send did for one logical email.
type Outcome int

const (
	OutcomeSent Outcome = iota
	OutcomeSkippedAlreadySent
	OutcomeSkippedNoRecipient
	OutcomeSkippedNotConfigured
	OutcomeFailed
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Repo     donationdomain.Repository
	Provider email.Provider
	Cfg      config.Config
	Giving   *config.GivingConfigHolder
	Metrics  *obsmetrics.Metrics `optional:"true"`
}

// Dispatcher sends at-most-once transactional emails keyed by
// (entity type, entity id, email type). A send failure is logged and
// swallowed: notification delivery never fails the triggering business
// event, and the missing EmailSendRecord lets a retried event attempt the
// send again.
type Dispatcher struct {
	db       *gorm.DB
	log      *zap.Logger
	repo     donationdomain.Repository
	provider email.Provider
	from     string
	baseURL  string
	giving   *config.GivingConfigHolder
	metrics  *obsmetrics.Metrics

	// sleep is swapped in tests to observe pacing without waiting.
	sleep func(time.Duration)
}

func NewDispatcher(p Params) *Dispatcher {
	return &Dispatcher{
		db:       p.DB,
		log:      p.Log.Named("notification"),
		repo:     p.Repo,
		provider: p.Provider,
		from:     p.Cfg.EmailFrom,
		baseURL:  p.Cfg.AppBaseURL,
		giving:   p.Giving,
		metrics:  p.Metrics,
		sleep:    time.Sleep,
	}
}

// Send delivers one email at most once per (entityType, entityID, emailType).
// The send record is written only after a successful provider call so a
// future retry of the same logical event can still attempt delivery.
func (d *Dispatcher) Send(ctx context.Context, entityType, entityID, emailType, to, subject, htmlBody string) Outcome {
	if to == "" {
		return OutcomeSkippedNoRecipient
	}

	sent, err := d.repo.HasEmailSendRecord(ctx, d.db, entityType, entityID, emailType)
	if err != nil {
		d.log.Warn("email dedup lookup failed",
			zap.String("entity_type", entityType),
			zap.String("entity_id", entityID),
			zap.String("email_type", emailType),
			zap.Error(err),
		)
		return OutcomeFailed
	}
	if sent {
		return OutcomeSkippedAlreadySent
	}

	messageID, err := d.provider.Send(ctx, d.from, to, subject, htmlBody)
	if errors.Is(err, email.ErrNotConfigured) {
		// No record is written: the email was never delivered and must not
		// be suppressed once a provider key is configured.
		d.log.Debug("email provider not configured, skipping send",
			zap.String("email_type", emailType),
			zap.String("entity_id", entityID),
		)
		return OutcomeSkippedNotConfigured
	}
	if err != nil {
		d.log.Warn("email send failed",
			zap.String("email_type", emailType),
			zap.String("entity_id", entityID),
			zap.Error(err),
		)
		return OutcomeFailed
	}

	if err := d.repo.InsertEmailSendRecord(ctx, d.db, entityType, entityID, emailType); err != nil {
		d.log.Warn("email send record write failed",
			zap.String("email_type", emailType),
			zap.String("entity_id", entityID),
			zap.Error(err),
		)
	}

	d.metrics.RecordEmailSent(ctx, emailType)
	d.log.Info("email sent",
		zap.String("email_type", emailType),
		zap.String("entity_id", entityID),
		zap.String("message_id", messageID),
	)
	return OutcomeSent
}

// pause spaces out dependent sends to the same recipient to stay under the
// provider's request-rate ceiling.
func (d *Dispatcher) pause() {
	d.sleep(d.giving.Get().EmailSendDelay())
}

var Module = fx.Module("notification",
	fx.Provide(NewDispatcher),
)
