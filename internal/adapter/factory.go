package adapter

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/orderhub/orderhub/internal/config"
	"github.com/orderhub/orderhub/internal/domain"
)

// NewRegistryFromConfig registers one adapter per supported platform. A
// platform without configured credentials, or any platform in demo mode,
// gets the demo generator.
func NewRegistryFromConfig(cfg *config.Config, logger *zap.Logger) *Registry {
	httpClient := &http.Client{Timeout: cfg.Sync.CallTimeout}
	anchor := time.Now().UTC().Truncate(time.Hour)

	opts := []Option{
		WithRateLimit(cfg.Sync.RequestsPerSecond, 1),
		WithPageSize(cfg.Sync.PageSize),
		WithLogger(logger),
	}

	registry := NewRegistry()
	for _, platform := range domain.AllPlatforms() {
		if cfg.DemoMode || !cfg.HasCredentials(string(platform)) {
			logger.Info("Using demo adapter", zap.String("platform", string(platform)))
			registry.Register(New(platform, NewDemoFetcher(platform, anchor), MapDemoOrder, opts...))
			continue
		}

		var fetcher Fetcher
		var mapper Mapper
		switch platform {
		case domain.PlatformShopify:
			fetcher, mapper = NewShopifyFetcher(cfg.Shopify, logger), MapShopifyOrder
		case domain.PlatformAmazon:
			fetcher, mapper = NewAmazonFetcher(cfg.Amazon, httpClient), MapAmazonOrder
		case domain.PlatformEbay:
			fetcher, mapper = NewEbayFetcher(cfg.Ebay, httpClient), MapEbayOrder
		case domain.PlatformEtsy:
			fetcher, mapper = NewEtsyFetcher(cfg.Etsy, httpClient), MapEtsyReceipt
		}
		registry.Register(New(platform, fetcher, mapper, opts...))
	}
	return registry
}
