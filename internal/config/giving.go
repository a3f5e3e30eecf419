package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// GivingConfig holds the tunables of the donation pipeline. Defaults match
// the platform's contract with Stripe and Resend; an operator can override
// them through giving.yml without redeploying.
type GivingConfig struct {
	// EndowmentShareRate is the fraction of a payment's application fee
	// forwarded to the referenced endowment fund.
	EndowmentShareRate float64 `mapstructure:"endowmentShareRate"`
	// EmailSendDelayMs spaces out dependent sends to the same recipient to
	// stay under the email provider's ~2 req/s ceiling.
	EmailSendDelayMs int `mapstructure:"emailSendDelayMs"`
}

func DefaultGivingConfig() GivingConfig {
	return GivingConfig{
		EndowmentShareRate: 0.30,
		EmailSendDelayMs:   600,
	}
}

func (c GivingConfig) EmailSendDelay() time.Duration {
	return time.Duration(c.EmailSendDelayMs) * time.Millisecond
}

type GivingConfigHolder struct {
	current atomic.Value // holds GivingConfig
}

func NewGivingConfigHolder() (*GivingConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("giving")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/givebridge")
	v.AddConfigPath(".")

	v.SetEnvPrefix("GIVEBRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultGivingConfig()
	v.SetDefault("giving.endowmentShareRate", defaults.EndowmentShareRate)
	v.SetDefault("giving.emailSendDelayMs", defaults.EmailSendDelayMs)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg GivingConfig
	if err := v.UnmarshalKey("giving", &cfg); err != nil {
		return nil, err
	}
	if err := validateGivingConfig(cfg); err != nil {
		return nil, err
	}

	holder := &GivingConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated GivingConfig
		if err := v.UnmarshalKey("giving", &updated); err != nil {
			log.Printf("[giving-config] reload failed: %v", err)
			return
		}
		if err := validateGivingConfig(updated); err != nil {
			log.Printf("[giving-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[giving-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *GivingConfigHolder) Get() GivingConfig {
	return h.current.Load().(GivingConfig)
}

// NewStaticGivingConfigHolder returns a holder pinned to cfg, for tests.
func NewStaticGivingConfigHolder(cfg GivingConfig) *GivingConfigHolder {
	holder := &GivingConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func validateGivingConfig(cfg GivingConfig) error {
	if cfg.EndowmentShareRate < 0 || cfg.EndowmentShareRate > 1 {
		return errors.New("giving.endowmentShareRate must be between 0 and 1")
	}
	if cfg.EmailSendDelayMs < 0 {
		return errors.New("giving.emailSendDelayMs cannot be negative")
	}
	return nil
}
