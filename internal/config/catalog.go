package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// ScanKindConfig describes one scan tier in the catalog.
type ScanKindConfig struct {
	Kind        string `mapstructure:"kind" json:"kind"`
	Credits     int64  `mapstructure:"credits" json:"credits"`
	Name        string `mapstructure:"name" json:"name"`
	Description string `mapstructure:"description" json:"description"`
}

// CatalogConfig is the operation-kind catalog plus the admission constants.
// It is configuration external to the accounting core: the quota policy
// treats it as read-only input.
type CatalogConfig struct {
	StarterCredits int64            `mapstructure:"starterCredits" json:"starter_credits"`
	DailyScanLimit int              `mapstructure:"dailyScanLimit" json:"daily_scan_limit"`
	ScanKinds      []ScanKindConfig `mapstructure:"scanKinds" json:"scan_kinds"`
}

func DefaultCatalogConfig() CatalogConfig {
	return CatalogConfig{
		StarterCredits: 3,
		DailyScanLimit: 10,
		ScanKinds: []ScanKindConfig{
			{Kind: "basic", Credits: 1, Name: "Basic Scan", Description: "Red flags and summary"},
			{Kind: "deep", Credits: 3, Name: "Deep Scan", Description: "Detailed analysis with citations"},
			{Kind: "ultra", Credits: 10, Name: "Ultra Scan", Description: "Full report with recommendations"},
		},
	}
}

// CatalogHolder exposes the current catalog and hot-reloads it when the
// underlying catalog.yml changes.
type CatalogHolder struct {
	current atomic.Value // holds CatalogConfig
}

func NewCatalogHolder() (*CatalogHolder, error) {
	v := viper.New()

	v.SetConfigName("catalog")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/complyscan")
	v.AddConfigPath(".")

	v.SetEnvPrefix("COMPLYSCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		defaults := DefaultCatalogConfig()
		v.SetDefault("catalog.starterCredits", defaults.StarterCredits)
		v.SetDefault("catalog.dailyScanLimit", defaults.DailyScanLimit)
		v.SetDefault("catalog.scanKinds", defaults.ScanKinds)
	}

	var cfg CatalogConfig
	if err := v.UnmarshalKey("catalog", &cfg); err != nil {
		return nil, err
	}
	if err := validateCatalogConfig(cfg); err != nil {
		return nil, err
	}

	holder := &CatalogHolder{}
	holder.current.Store(cfg)

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

// NewStaticCatalogHolder wraps a fixed catalog with no file watching.
func NewStaticCatalogHolder(cfg CatalogConfig) *CatalogHolder {
	holder := &CatalogHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *CatalogHolder) Get() CatalogConfig {
	return h.current.Load().(CatalogConfig)
}

// Lookup returns the catalog entry for a scan kind. The catalog is the only
// authority on valid kinds; a miss means the kind is unknown.
func (c CatalogConfig) Lookup(kind string) (ScanKindConfig, bool) {
	for _, k := range c.ScanKinds {
		if k.Kind == kind {
			return k, true
		}
	}
	return ScanKindConfig{}, false
}

func validateCatalogConfig(cfg CatalogConfig) error {
	if cfg.StarterCredits < 0 {
		return errors.New("catalog.starterCredits cannot be negative")
	}
	if cfg.DailyScanLimit <= 0 {
		return errors.New("catalog.dailyScanLimit must be positive")
	}
	if len(cfg.ScanKinds) == 0 {
		return errors.New("catalog.scanKinds cannot be empty")
	}
	for _, kind := range cfg.ScanKinds {
		if strings.TrimSpace(kind.Kind) == "" {
			return errors.New("catalog.scanKinds entries require a kind")
		}
		if kind.Credits <= 0 {
			return errors.New("catalog.scanKinds entries require positive credits")
		}
	}
	return nil
}
