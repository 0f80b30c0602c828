package config

import (
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// ReconcilerConfig carries the tunables that may change without a restart.
type ReconcilerConfig struct {
	ClaimLease         time.Duration `mapstructure:"claimLease"`
	GatewayTimeout     time.Duration `mapstructure:"gatewayTimeout"`
	RevalidateInterval time.Duration `mapstructure:"revalidateInterval"`
	RevalidateAfter    time.Duration `mapstructure:"revalidateAfter"`
	RevalidateBatch    int           `mapstructure:"revalidateBatch"`
	SnapshotCacheTTL   time.Duration `mapstructure:"snapshotCacheTTL"`
}

func DefaultReconcilerConfig() ReconcilerConfig {
	return ReconcilerConfig{
		ClaimLease:         5 * time.Minute,
		GatewayTimeout:     5 * time.Second,
		RevalidateInterval: time.Minute,
		RevalidateAfter:    2 * time.Minute,
		RevalidateBatch:    50,
		SnapshotCacheTTL:   30 * time.Second,
	}
}

type ReconcilerConfigHolder struct {
	current atomic.Value // holds ReconcilerConfig
}

// NewStaticReconcilerConfigHolder returns a holder that never reloads.
func NewStaticReconcilerConfigHolder(cfg ReconcilerConfig) *ReconcilerConfigHolder {
	holder := &ReconcilerConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewReconcilerConfigHolder(log *zap.Logger) (*ReconcilerConfigHolder, error) {
	log = log.Named("config.reconciler")
	v := viper.New()

	v.SetConfigName("reconciler")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/coursepay/config")
	v.AddConfigPath("/etc/coursepay")
	v.AddConfigPath(".")

	v.SetEnvPrefix("COURSEPAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultReconcilerConfig()
	v.SetDefault("reconciler.claimLease", defaults.ClaimLease)
	v.SetDefault("reconciler.gatewayTimeout", defaults.GatewayTimeout)
	v.SetDefault("reconciler.revalidateInterval", defaults.RevalidateInterval)
	v.SetDefault("reconciler.revalidateAfter", defaults.RevalidateAfter)
	v.SetDefault("reconciler.revalidateBatch", defaults.RevalidateBatch)
	v.SetDefault("reconciler.snapshotCacheTTL", defaults.SnapshotCacheTTL)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileLoaded = false
	}

	var cfg ReconcilerConfig
	if err := v.UnmarshalKey("reconciler", &cfg); err != nil {
		return nil, err
	}
	if err := validateReconcilerConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticReconcilerConfigHolder(cfg)
	if !fileLoaded {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated ReconcilerConfig
		if err := v.UnmarshalKey("reconciler", &updated); err != nil {
			log.Warn("reload failed", zap.Error(err))
			return
		}
		if err := validateReconcilerConfig(updated); err != nil {
			log.Warn("invalid config ignored", zap.Error(err))
			return
		}
		holder.Set(updated)
		log.Info("reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *ReconcilerConfigHolder) Get() ReconcilerConfig {
	return h.current.Load().(ReconcilerConfig)
}

// Set swaps the tunables seen by every later Get.
func (h *ReconcilerConfigHolder) Set(cfg ReconcilerConfig) {
	h.current.Store(cfg)
}

func validateReconcilerConfig(cfg ReconcilerConfig) error {
	if cfg.ClaimLease <= 0 {
		return errors.New("reconciler.claimLease must be positive")
	}
	if cfg.GatewayTimeout <= 0 {
		return errors.New("reconciler.gatewayTimeout must be positive")
	}
	if cfg.RevalidateInterval <= 0 {
		return errors.New("reconciler.revalidateInterval must be positive")
	}
	if cfg.RevalidateBatch <= 0 {
		return errors.New("reconciler.revalidateBatch must be positive")
	}
	return nil
}
