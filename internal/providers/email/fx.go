package email

import (
	"github.com/givebridge/givebridge/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("providers.email",
	fx.Provide(NewFromConfig),
)

func NewFromConfig(cfg config.Config, log *zap.Logger) Provider {
	if cfg.ResendAPIKey == "" {
		// Email is not critical to the financial transaction; run fail-safe.
		log.Warn("RESEND_API_KEY not set; email sends are skipped until a key is configured")
		return &NoOpProvider{}
	}
	return NewResend(cfg.ResendAPIKey)
}
