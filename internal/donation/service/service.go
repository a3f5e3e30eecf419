package service

import (
	"context"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/givebridge/givebridge/internal/config"
	"github.com/givebridge/givebridge/internal/donation/domain"
	"github.com/givebridge/givebridge/internal/notification"
	obsmetrics "github.com/givebridge/givebridge/internal/observability/metrics"
	stripegw "github.com/givebridge/givebridge/internal/providers/stripe"
	webhookdomain "github.com/givebridge/givebridge/internal/webhook/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Repo       domain.Repository
	Gateway    stripegw.Gateway
	Dispatcher *notification.Dispatcher
	Giving     *config.GivingConfigHolder
	Metrics    *obsmetrics.Metrics `optional:"true"`
}

// Service routes verified payment events to per-type handlers. Handlers are
// idempotent: the provider redelivers any event answered with an error, and
// redelivery is the only retry mechanism, so every mutation is guarded by a
// dedup lookup or a marker row.
type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	repo       domain.Repository
	gateway    stripegw.Gateway
	dispatcher *notification.Dispatcher
	giving     *config.GivingConfigHolder
	metrics    *obsmetrics.Metrics
}

func NewService(p Params) *Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("donation.service"),
		genID:      p.GenID,
		repo:       p.Repo,
		gateway:    p.Gateway,
		dispatcher: p.Dispatcher,
		giving:     p.Giving,
		metrics:    p.Metrics,
	}
}

// ProcessEvent dispatches a verified event to exactly one handler. Unknown
// event types are acknowledged as no-ops for forward compatibility. A
// returned error answers the provider with a retryable failure for the whole
// event.
func (s *Service) ProcessEvent(ctx context.Context, event *webhookdomain.Event) error {
	if event == nil {
		return domain.ErrInvalidEvent
	}

	var err error
	switch event.Type {
	case webhookdomain.EventPaymentIntentSucceeded:
		err = s.handlePaymentSucceeded(ctx, event)
	case webhookdomain.EventPaymentIntentFailed:
		err = s.handlePaymentFailed(ctx, event)
	case webhookdomain.EventCheckoutSessionComplete:
		err = s.handleCheckoutCompleted(ctx, event)
	case webhookdomain.EventInvoicePaid:
		err = s.handleInvoicePaid(ctx, event)
	case webhookdomain.EventSubscriptionUpdated, webhookdomain.EventSubscriptionDeleted:
		err = s.handleSubscriptionChanged(ctx, event)
	case webhookdomain.EventPayoutPaid:
		err = s.handlePayoutPaid(ctx, event)
	case webhookdomain.EventAccountUpdated:
		err = s.handleAccountUpdated(ctx, event)
	default:
		s.log.Debug("ignoring unhandled event type", zap.String("type", event.Type))
		return nil
	}

	if err != nil {
		return err
	}
	s.metrics.RecordWebhookEvent(ctx, event.Type)
	return nil
}

// nonCritical runs one best-effort side effect. Its failure is logged and
// swallowed so secondary bookkeeping can never block or corrupt the primary
// donation record.
func (s *Service) nonCritical(step string, fn func() error) {
	if err := fn(); err != nil {
		s.log.Warn("non-critical step failed", zap.String("step", step), zap.Error(err))
	}
}

func parseMetadataID(metadata map[string]string, key string) *snowflake.ID {
	if metadata == nil {
		return nil
	}
	raw := strings.TrimSpace(metadata[key])
	if raw == "" {
		return nil
	}
	id, err := snowflake.ParseString(raw)
	if err != nil {
		return nil
	}
	return &id
}

func metadataAmount(metadata map[string]string, key string) int64 {
	if metadata == nil {
		return 0
	}
	raw := strings.TrimSpace(metadata[key])
	if raw == "" {
		return 0
	}
	parsed, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || parsed <= 0 {
		return 0
	}
	return parsed
}

func metadataJSON(metadata map[string]string) datatypes.JSONMap {
	out := datatypes.JSONMap{}
	for key, value := range metadata {
		out[key] = value
	}
	return out
}
