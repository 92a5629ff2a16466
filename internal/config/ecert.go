package config

import (
	"errors"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// ECertConfig holds the business rules applied while calculating E-Certs.
type ECertConfig struct {
	AnticipationDays        int                       `mapstructure:"anticipationDays"`
	MaxLifetimeBCLoanAmount decimal.Decimal           `mapstructure:"-"`
	CSLPLifetimeMaximum     decimal.Decimal           `mapstructure:"-"`
	DocumentNumberGap       int64                     `mapstructure:"documentNumberGap"`
	Workers                 int                       `mapstructure:"workers"`
	BlockedNotification     BlockedNotificationConfig `mapstructure:"blockedNotification"`
}

type BlockedNotificationConfig struct {
	MaxNotifications int           `mapstructure:"maxNotifications"`
	MinInterval      time.Duration `mapstructure:"minInterval"`
}

// WorkerCount resolves the zero value to the available parallelism.
func (c ECertConfig) WorkerCount() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.GOMAXPROCS(0)
}

func DefaultECertConfig() ECertConfig {
	return ECertConfig{
		AnticipationDays:        5,
		MaxLifetimeBCLoanAmount: decimal.NewFromInt(50000),
		CSLPLifetimeMaximum:     decimal.NewFromInt(10000),
		DocumentNumberGap:       1_000_000,
		BlockedNotification: BlockedNotificationConfig{
			MaxNotifications: 3,
			MinInterval:      7 * 24 * time.Hour,
		},
	}
}

type ECertConfigHolder struct {
	current atomic.Value // holds ECertConfig
}

// NewStaticECertConfigHolder serves cfg without watching any file.
func NewStaticECertConfigHolder(cfg ECertConfig) *ECertConfigHolder {
	holder := &ECertConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewECertConfigHolder(log *zap.Logger) (*ECertConfigHolder, error) {
	log = log.Named("config.ecert")
	v := viper.New()

	v.SetConfigName("ecert")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/sims")
	v.AddConfigPath(".")

	v.SetEnvPrefix("SIMS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultECertConfig()
	v.SetDefault("ecert.anticipationDays", defaults.AnticipationDays)
	v.SetDefault("ecert.maxLifetimeBCLoanAmount", defaults.MaxLifetimeBCLoanAmount.String())
	v.SetDefault("ecert.cslpLifetimeMaximum", defaults.CSLPLifetimeMaximum.String())
	v.SetDefault("ecert.documentNumberGap", defaults.DocumentNumberGap)
	v.SetDefault("ecert.workers", 0)
	v.SetDefault("ecert.blockedNotification.maxNotifications", defaults.BlockedNotification.MaxNotifications)
	v.SetDefault("ecert.blockedNotification.minInterval", defaults.BlockedNotification.MinInterval)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
	}

	cfg, err := readECertConfig(v)
	if err != nil {
		return nil, err
	}

	holder := NewStaticECertConfigHolder(cfg)
	if !fileFound {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := readECertConfig(v)
		if err != nil {
			log.Warn("config.ecert.reload_ignored", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("config.ecert.reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *ECertConfigHolder) Get() ECertConfig {
	return h.current.Load().(ECertConfig)
}

func readECertConfig(v *viper.Viper) (ECertConfig, error) {
	var cfg ECertConfig
	if err := v.UnmarshalKey("ecert", &cfg); err != nil {
		return ECertConfig{}, err
	}
	var err error
	if cfg.MaxLifetimeBCLoanAmount, err = decimal.NewFromString(v.GetString("ecert.maxLifetimeBCLoanAmount")); err != nil {
		return ECertConfig{}, errors.New("ecert.maxLifetimeBCLoanAmount must be a number")
	}
	if cfg.CSLPLifetimeMaximum, err = decimal.NewFromString(v.GetString("ecert.cslpLifetimeMaximum")); err != nil {
		return ECertConfig{}, errors.New("ecert.cslpLifetimeMaximum must be a number")
	}
	cfg.BlockedNotification.MinInterval = v.GetDuration("ecert.blockedNotification.minInterval")
	if err := validateECertConfig(cfg); err != nil {
		return ECertConfig{}, err
	}
	return cfg, nil
}

func validateECertConfig(cfg ECertConfig) error {
	if cfg.AnticipationDays < 0 {
		return errors.New("ecert.anticipationDays cannot be negative")
	}
	if !cfg.MaxLifetimeBCLoanAmount.IsPositive() {
		return errors.New("ecert.maxLifetimeBCLoanAmount must be positive")
	}
	if !cfg.CSLPLifetimeMaximum.IsPositive() {
		return errors.New("ecert.cslpLifetimeMaximum must be positive")
	}
	if cfg.DocumentNumberGap < 0 {
		return errors.New("ecert.documentNumberGap cannot be negative")
	}
	if cfg.Workers < 0 {
		return errors.New("ecert.workers cannot be negative")
	}
	if cfg.BlockedNotification.MaxNotifications <= 0 {
		return errors.New("ecert.blockedNotification.maxNotifications must be positive")
	}
	return nil
}
