package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// CatalogConfig holds catalog tunables that can change without a restart.
type CatalogConfig struct {
	DefaultVariationTitle string `mapstructure:"defaultVariationTitle"`
	MaxBatchEdits         int    `mapstructure:"maxBatchEdits"`
	ImagePrefix           string `mapstructure:"imagePrefix"`
	CacheTTLSeconds       int    `mapstructure:"cacheTTLSeconds"`
}

func DefaultCatalogConfig() CatalogConfig {
	return CatalogConfig{
		DefaultVariationTitle: "Default",
		MaxBatchEdits:         100,
		ImagePrefix:           "products",
		CacheTTLSeconds:       300,
	}
}

type CatalogConfigHolder struct {
	current atomic.Value // holds CatalogConfig
}

func NewCatalogConfigHolder() (*CatalogConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("catalog")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/storefront")
	v.AddConfigPath(".")

	v.SetEnvPrefix("STOREFRONT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultCatalogConfig()
	v.SetDefault("catalog.defaultVariationTitle", defaults.DefaultVariationTitle)
	v.SetDefault("catalog.maxBatchEdits", defaults.MaxBatchEdits)
	v.SetDefault("catalog.imagePrefix", defaults.ImagePrefix)
	v.SetDefault("catalog.cacheTTLSeconds", defaults.CacheTTLSeconds)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileLoaded = false
	}

	var cfg CatalogConfig
	if err := v.UnmarshalKey("catalog", &cfg); err != nil {
		return nil, err
	}
	if err := validateCatalogConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticCatalogConfig(cfg)
	if !fileLoaded {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated CatalogConfig
		if err := v.UnmarshalKey("catalog", &updated); err != nil {
			log.Printf("[catalog-config] reload failed: %v", err)
			return
		}
		if err := validateCatalogConfig(updated); err != nil {
			log.Printf("[catalog-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[catalog-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticCatalogConfig returns a holder that never reloads.
func NewStaticCatalogConfig(cfg CatalogConfig) *CatalogConfigHolder {
	holder := &CatalogConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *CatalogConfigHolder) Get() CatalogConfig {
	if h == nil {
		return DefaultCatalogConfig()
	}
	return h.current.Load().(CatalogConfig)
}

func validateCatalogConfig(cfg CatalogConfig) error {
	if strings.TrimSpace(cfg.DefaultVariationTitle) == "" {
		return errors.New("catalog.defaultVariationTitle cannot be empty")
	}
	if cfg.MaxBatchEdits <= 0 {
		return errors.New("catalog.maxBatchEdits must be positive")
	}
	if strings.Trim(strings.TrimSpace(cfg.ImagePrefix), "/") == "" {
		return errors.New("catalog.imagePrefix cannot be empty")
	}
	if cfg.CacheTTLSeconds < 0 {
		return errors.New("catalog.cacheTTLSeconds cannot be negative")
	}
	return nil
}
